package livesession

import (
	"time"

	"github.com/mentora/mentora/core/meeting"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// Session is a scheduled live video meeting tied to a course or lesson.
type Session struct {
	ID                 string           `json:"id"`
	MentorID           string           `json:"mentor_id"`
	CourseID           string           `json:"course_id"`
	LessonID           string           `json:"lesson_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	StartTime          time.Time        `json:"start_time"` // UTC
	EndTime            time.Time        `json:"end_time"`   // UTC
	Duration           int              `json:"duration"`   // minutes
	Timezone           string           `json:"timezone"`
	Provider           meeting.Provider `json:"provider"`
	WaitingRoomEnabled bool             `json:"waiting_room_enabled"`
	AutoRecord         bool             `json:"auto_record"`
	Status             Status           `json:"status"`

	MeetingURL      string `json:"meeting_url"`
	MeetingID       string `json:"meeting_id"`
	MeetingPassword string `json:"meeting_password,omitempty"`
	HostKey         string `json:"host_key,omitempty"`
	HostURL         string `json:"host_url,omitempty"`

	RecordingURL      string `json:"recording_url,omitempty"`
	RecordingID       string `json:"recording_id,omitempty"`
	RecordingPassword string `json:"recording_password,omitempty"`
	RecordingSize     int64  `json:"recording_size,omitempty"`
	RecordingDuration int    `json:"recording_duration,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// MeetingDescription returns what the meeting providers need to know about the session.
func (s Session) MeetingDescription() meeting.Description {
	return meeting.Description{
		Title:              s.Title,
		Description:        s.Description,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		Duration:           s.Duration,
		Timezone:           s.Timezone,
		Provider:           s.Provider,
		WaitingRoomEnabled: s.WaitingRoomEnabled,
		AutoRecord:         s.AutoRecord,
	}
}

func (s Session) Credentials() meeting.Credentials {
	return meeting.Credentials{
		MeetingURL:      s.MeetingURL,
		MeetingID:       s.MeetingID,
		MeetingPassword: s.MeetingPassword,
		HostKey:         s.HostKey,
		HostURL:         s.HostURL,
	}
}

func (s *Session) SetCredentials(creds meeting.Credentials) {
	s.MeetingURL = creds.MeetingURL
	s.MeetingID = creds.MeetingID
	s.MeetingPassword = creds.MeetingPassword
	s.HostKey = creds.HostKey
	s.HostURL = creds.HostURL
}

// Recording returns the cached recording, nil when none was found yet.
func (s Session) Recording() *meeting.Recording {
	if s.RecordingURL == "" {
		return nil
	}
	return &meeting.Recording{
		RecordingURL:      s.RecordingURL,
		RecordingID:       s.RecordingID,
		RecordingPassword: s.RecordingPassword,
		RecordingSize:     s.RecordingSize,
		RecordingDuration: s.RecordingDuration,
	}
}

func (s *Session) SetRecording(rec *meeting.Recording) {
	if rec == nil {
		return
	}
	s.RecordingURL = rec.RecordingURL
	s.RecordingID = rec.RecordingID
	s.RecordingPassword = rec.RecordingPassword
	s.RecordingSize = rec.RecordingSize
	s.RecordingDuration = rec.RecordingDuration
}

func (s Session) CalendarEvent() meeting.CalendarEvent {
	return meeting.CreateCalendarEvent(s.ID, s.MeetingDescription(), s.MeetingURL)
}

// WithoutHostFields strips what only the mentor and admins may see.
func (s Session) WithoutHostFields() Session {
	s.HostKey = ""
	s.HostURL = ""
	return s
}

// JoinInfo is what a user receives when joining a session.
type JoinInfo struct {
	SessionID       string     `json:"session_id"`
	MeetingURL      string     `json:"meeting_url"`
	MeetingID       string     `json:"meeting_id"`
	MeetingPassword string     `json:"meeting_password,omitempty"`
	HostKey         string     `json:"host_key,omitempty"`
	HostURL         string     `json:"host_url,omitempty"`
	Status          Status     `json:"status"`
	Attendance      Attendance `json:"attendance"`
}

type Attendance struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	UserName        string     `json:"user_name,omitempty"`
	JoinedAt        *time.Time `json:"joined_at"` // last join, UTC
	LeftAt          *time.Time `json:"left_at"`   // UTC
	DurationMinutes int        `json:"duration_minutes"`
	Present         bool       `json:"present"`
}

// RollCallEntry marks a student present or absent.
type RollCallEntry struct {
	UserID  string `json:"user_id" validate:"required"`
	Present bool   `json:"present"`
}

type RollCall struct {
	Entries []RollCallEntry `json:"entries" validate:"required,min=1,dive"`
}

// ProviderSettings holds the credentials a mentor registered for a video provider.
type ProviderSettings struct {
	MentorID    string           `json:"mentor_id"`
	Provider    meeting.Provider `json:"provider"`
	AccessToken string           `json:"-"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (ps ProviderSettings) Settings() meeting.Settings {
	return meeting.Settings{Provider: ps.Provider, AccessToken: ps.AccessToken}
}

// MaskedToken returns the access token with all but its last 4 characters hidden.
func (ps ProviderSettings) MaskedToken() string {
	const visible = 4
	n := len(ps.AccessToken)
	if n == 0 {
		return ""
	}
	if n <= visible {
		return "****"
	}
	return "****" + ps.AccessToken[n-visible:]
}

type SaveProviderSettings struct {
	AccessToken string `json:"access_token" validate:"required,notblank"`
}

type Question struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	UserID     string     `json:"user_id"`
	Body       string     `json:"body"`
	Answer     string     `json:"answer,omitempty"`
	AnsweredBy string     `json:"answered_by,omitempty"`
	AnsweredAt *time.Time `json:"answered_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (q Question) Answered() bool { return q.AnsweredAt != nil }

type NewQuestion struct {
	Body string `json:"body" validate:"required,notblank,max=2000"`
}

type AnswerQuestion struct {
	Answer string `json:"answer" validate:"required,notblank,max=5000"`
}

type Poll struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	CreatedBy string    `json:"created_by"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
}

type NewPoll struct {
	Question string   `json:"question" validate:"required,notblank,max=500"`
	Options  []string `json:"options" validate:"required,min=2,max=10,dive,required,notblank,max=200"`
}

type Vote struct {
	PollID string `json:"-"`
	UserID string `json:"-"`
	Option *int   `json:"option" validate:"required,min=0"`
}

type OptionResult struct {
	Option string `json:"option"`
	Votes  int    `json:"votes"`
}

type PollResults struct {
	PollID     string         `json:"poll_id"`
	Question   string         `json:"question"`
	Closed     bool           `json:"closed"`
	Options    []OptionResult `json:"options"`
	TotalVotes int            `json:"total_votes"`
}

type Analytics struct {
	SessionID      string  `json:"session_id"`
	EnrolledCount  int     `json:"enrolled_count"`
	AttendeeCount  int     `json:"attendee_count"`
	AttendanceRate float64 `json:"attendance_rate"` // attendees / enrolled, 0..1
	AverageMinutes float64 `json:"average_minutes"`
	QuestionCount  int     `json:"question_count"`
	AnsweredCount  int     `json:"answered_count"`
	PollCount      int     `json:"poll_count"`
	VoteCount      int     `json:"vote_count"`
}

type Enrollment struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
}

type QueryFilter struct {
	MentorID string    `query:"mentor_id"`
	CourseID string    `query:"course_id"`
	Status   string    `query:"status"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`

	// EnrolledUserID restricts the results to the sessions a student is enrolled in.
	EnrolledUserID string `query:"-"`
}
