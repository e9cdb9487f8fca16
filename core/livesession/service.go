package livesession

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/meeting"
	"github.com/mentora/mentora/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("not found")
	ErrNotJoined          = errors.New("user has not joined this session")
	ErrSessionClosed      = errors.New("session is over")
	ErrPollClosed         = errors.New("poll is closed")
	ErrInvalidPollOption  = errors.New("invalid poll option")
	ErrAlreadyAnswered    = errors.New("question already answered")
	ErrMissingCredentials = errors.New("no access token configured for this video provider")
)

type (
	// Repository is the Session Lifecycle Store.
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		QuerySessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSession(ctx context.Context, id string) error

		// RecordAttendance creates or replaces the attendance of a user.
		RecordAttendance(ctx context.Context, att Attendance) (Attendance, error)
		GetAttendance(ctx context.Context, sessionID string) ([]Attendance, error)
		GetUserAttendance(ctx context.Context, sessionID, userID string) (Attendance, error)

		// EnrollStudents returns the ids of the users that were not enrolled yet.
		EnrollStudents(ctx context.Context, sessionID string, userIDs ...string) ([]string, error)
		IsEnrolled(ctx context.Context, sessionID, userID string) (bool, error)
		GetEnrolledStudents(ctx context.Context, sessionID string) ([]string, error)

		GetVideoProviderSettings(ctx context.Context, mentorID string, provider meeting.Provider) (ProviderSettings, error)
		SaveVideoProviderSettings(ctx context.Context, ps ProviderSettings) (ProviderSettings, error)

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, sessionID, id string) (Question, error)
		QueryQuestions(ctx context.Context, sessionID string) ([]Question, error)
		AnswerQuestion(ctx context.Context, q Question) (Question, error)

		CreatePoll(ctx context.Context, p Poll) (Poll, error)
		GetPoll(ctx context.Context, sessionID, id string) (Poll, error)
		QueryPolls(ctx context.Context, sessionID string) ([]Poll, error)
		ClosePoll(ctx context.Context, p Poll) (Poll, error)
		// CastVote creates or replaces the vote of a user.
		CastVote(ctx context.Context, v Vote) error
		GetPollResults(ctx context.Context, p Poll) (PollResults, error)

		GetAnalytics(ctx context.Context, sessionID string) (Analytics, error)
	}

	// Meetings is the meeting provider adapter.
	Meetings interface {
		CreateMeeting(ctx context.Context, desc meeting.Description, settings meeting.Settings) meeting.Credentials
		UpdateMeeting(ctx context.Context, meetingID string, desc meeting.Description, settings meeting.Settings) (meeting.Credentials, error)
		DeleteMeeting(ctx context.Context, meetingID string, provider meeting.Provider, settings meeting.Settings)
		GetMeetingRecording(ctx context.Context, meetingID string, provider meeting.Provider, settings meeting.Settings) *meeting.Recording
	}

	Users interface {
		GetMany(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Service struct {
		repo     Repository
		meetings Meetings
		users    Users
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Meetings = (*meeting.Adapter)(nil)

func NewService(repo Repository, meetings Meetings, users Users, mailSvc core.EmailService, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(meetings, "meetings"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		repo:     repo,
		meetings: meetings,
		users:    users,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// providerSettings returns the mentor's settings for provider; empty settings when none were saved.
func (svc *Service) providerSettings(ctx context.Context, mentorID string, provider meeting.Provider) (meeting.Settings, error) {
	ps, err := svc.repo.GetVideoProviderSettings(ctx, mentorID, provider)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return meeting.Settings{Provider: provider}, nil
		}
		return meeting.Settings{}, errors.Wrap(err, "getting video provider settings")
	}
	return ps.Settings(), nil
}

// CanManage reports whether usr may modify sess.
func (svc *Service) CanManage(sess Session, usr user.User) bool {
	return usr.IsAdmin() || sess.MentorID == usr.ID
}

// CanAccess reports whether usr may read, join or leave sess.
func (svc *Service) CanAccess(ctx context.Context, sess Session, usr user.User) (bool, error) {
	if svc.CanManage(sess, usr) {
		return true, nil
	}
	ok, err := svc.repo.IsEnrolled(ctx, sess.ID, usr.ID)
	return ok, errors.Wrap(err, "checking enrollment")
}

func (svc *Service) Create(ctx context.Context, mentorID string, ns NewSession) (Session, error) {
	sched, err := ns.Schedule()
	if err != nil {
		return Session{}, err
	}
	provider, err := ParseProvider(ns.Provider)
	if err != nil {
		return Session{}, err
	}
	settings, err := svc.providerSettings(ctx, mentorID, provider)
	if err != nil {
		return Session{}, err
	}

	now := NowFunc().UTC()
	sess := Session{
		MentorID:           mentorID,
		CourseID:           ns.CourseID,
		LessonID:           ns.LessonID,
		Title:              ns.Title,
		Description:        ns.Description,
		StartTime:          sched.StartTime,
		EndTime:            sched.EndTime,
		Duration:           sched.Duration,
		Timezone:           sched.Timezone,
		Provider:           provider,
		WaitingRoomEnabled: ns.WaitingRoomEnabled,
		AutoRecord:         ns.AutoRecord,
		Status:             StatusScheduled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	sess.SetCredentials(svc.meetings.CreateMeeting(ctx, sess.MeetingDescription(), settings))

	sess, err = svc.repo.CreateSession(ctx, sess)
	return sess, errors.Wrap(err, "creating session")
}

func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error) {
	if filter != nil && filter.Status != "" && !Status(filter.Status).Valid() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status"})
	}
	return svc.repo.QuerySessions(ctx, filter, ordering)
}

// Update applies us to sess. Provider meetings are rescheduled first; provider failures are returned.
func (svc *Service) Update(ctx context.Context, sess Session, us UpdateSession) (Session, error) {
	updated, meetingChanged, err := us.Apply(sess)
	if err != nil {
		return Session{}, err
	}

	if meetingChanged && !meeting.IsFallbackMeeting(sess.MeetingID) {
		settings, err := svc.providerSettings(ctx, sess.MentorID, sess.Provider)
		if err != nil {
			return Session{}, err
		}
		creds, err := svc.meetings.UpdateMeeting(ctx, sess.MeetingID, updated.MeetingDescription(), settings)
		if err != nil {
			if errors.Cause(err) == meeting.ErrMissingAccessToken {
				return Session{}, core.NewValidationError(err, core.FieldError{Field: "provider", Error: ErrMissingCredentials.Error()})
			}
			return Session{}, errors.Wrap(err, "updating provider meeting")
		}
		updated.SetCredentials(creds)
	}

	updated.UpdatedAt = NowFunc().UTC()
	updated, err = svc.repo.UpdateSession(ctx, updated)
	return updated, errors.Wrap(err, "updating session")
}

// Delete removes the provider meeting on a best effort basis, then the session.
func (svc *Service) Delete(ctx context.Context, sess Session) error {
	settings, err := svc.providerSettings(ctx, sess.MentorID, sess.Provider)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("livesession: deleting session %s: %v", sess.ID, err), err)
	} else {
		svc.meetings.DeleteMeeting(ctx, sess.MeetingID, sess.Provider, settings)
	}
	return errors.Wrap(svc.repo.DeleteSession(ctx, sess.ID), "deleting session")
}

// Join records usr as present. Host credentials are only returned to the mentor and admins.
// The mentor joining a scheduled session starts it.
func (svc *Service) Join(ctx context.Context, sess Session, usr user.User) (JoinInfo, error) {
	if sess.Status == StatusEnded || sess.Status == StatusCancelled {
		return JoinInfo{}, core.NewValidationError(ErrSessionClosed)
	}

	now := NowFunc().UTC()
	if sess.MentorID == usr.ID && sess.Status == StatusScheduled {
		sess.Status = StatusLive
		sess.UpdatedAt = now
		var err error
		if sess, err = svc.repo.UpdateSession(ctx, sess); err != nil {
			return JoinInfo{}, errors.Wrap(err, "starting session")
		}
	}

	att, err := svc.repo.GetUserAttendance(ctx, sess.ID, usr.ID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return JoinInfo{}, errors.Wrap(err, "getting attendance")
		}
		att = Attendance{SessionID: sess.ID, UserID: usr.ID}
	}
	att.JoinedAt = &now
	att.LeftAt = nil
	att.Present = true
	if att, err = svc.repo.RecordAttendance(ctx, att); err != nil {
		return JoinInfo{}, errors.Wrap(err, "recording attendance")
	}

	info := JoinInfo{
		SessionID:       sess.ID,
		MeetingURL:      sess.MeetingURL,
		MeetingID:       sess.MeetingID,
		MeetingPassword: sess.MeetingPassword,
		Status:          sess.Status,
		Attendance:      att,
	}
	if svc.CanManage(sess, usr) {
		info.HostKey = sess.HostKey
		info.HostURL = sess.HostURL
	}
	return info, nil
}

// Leave closes the current attendance span of usr.
func (svc *Service) Leave(ctx context.Context, sess Session, usr user.User) (Attendance, error) {
	att, err := svc.repo.GetUserAttendance(ctx, sess.ID, usr.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Attendance{}, core.NewValidationError(ErrNotJoined)
		}
		return Attendance{}, errors.Wrap(err, "getting attendance")
	}
	if att.JoinedAt == nil || att.LeftAt != nil {
		return att, nil // already left
	}

	now := NowFunc().UTC()
	att.LeftAt = &now
	if span := now.Sub(*att.JoinedAt); span > 0 {
		att.DurationMinutes += int(span / time.Minute)
	}
	att, err = svc.repo.RecordAttendance(ctx, att)
	return att, errors.Wrap(err, "recording attendance")
}

// Recording returns the session recording, fetching it from the provider the first time it is available.
// A nil recording means there is none (yet).
func (svc *Service) Recording(ctx context.Context, sess Session) (*meeting.Recording, error) {
	if rec := sess.Recording(); rec != nil {
		return rec, nil
	}

	settings, err := svc.providerSettings(ctx, sess.MentorID, sess.Provider)
	if err != nil {
		return nil, err
	}
	rec := svc.meetings.GetMeetingRecording(ctx, sess.MeetingID, sess.Provider, settings)
	if rec == nil {
		return nil, nil
	}

	sess.SetRecording(rec)
	sess.UpdatedAt = NowFunc().UTC()
	if _, err = svc.repo.UpdateSession(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "caching recording")
	}
	return rec, nil
}

func (svc *Service) CalendarURLs(sess Session) meeting.CalendarURLs {
	return meeting.GenerateCalendarURLs(sess.CalendarEvent())
}

func (svc *Service) CalendarICS(sess Session) ([]byte, error) {
	return meeting.EncodeICS(sess.CalendarEvent())
}

func (svc *Service) Analytics(ctx context.Context, sess Session) (Analytics, error) {
	an, err := svc.repo.GetAnalytics(ctx, sess.ID)
	if err != nil {
		return Analytics{}, errors.Wrap(err, "getting analytics")
	}
	an.SessionID = sess.ID
	if an.EnrolledCount > 0 {
		an.AttendanceRate = float64(an.AttendeeCount) / float64(an.EnrolledCount)
	}
	return an, nil
}

// Enroll enrolls existing users in sess and emails an invitation to the newly enrolled ones.
func (svc *Service) Enroll(ctx context.Context, sess Session, enr Enrollment) ([]string, error) {
	users, err := svc.users.GetMany(ctx, enr.UserIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "getting users")
	}
	if len(users) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "user_ids", Error: "no such users"})
	}

	ids := make([]string, 0, len(users))
	byID := make(map[string]user.User, len(users))
	for _, usr := range users {
		ids = append(ids, usr.ID)
		byID[usr.ID] = usr
	}

	added, err := svc.repo.EnrollStudents(ctx, sess.ID, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "enrolling students")
	}

	invited := make([]user.User, 0, len(added))
	for _, id := range added {
		invited = append(invited, byID[id])
	}
	svc.sendInvitations(sess, invited)
	return added, nil
}

func (svc *Service) Attendance(ctx context.Context, sess Session) ([]Attendance, error) {
	return svc.repo.GetAttendance(ctx, sess.ID)
}

// MarkAttendance records a roll call. Only enrolled students can be marked, and nothing is
// recorded when one of the entries is not enrolled.
func (svc *Service) MarkAttendance(ctx context.Context, sess Session, rc RollCall) ([]Attendance, error) {
	ids, err := svc.repo.GetEnrolledStudents(ctx, sess.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting enrolled students")
	}
	enrolled := make(map[string]bool, len(ids))
	for _, id := range ids {
		enrolled[id] = true
	}
	for _, entry := range rc.Entries {
		if !enrolled[entry.UserID] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "entries", Error: fmt.Sprintf("user %s is not enrolled", entry.UserID)})
		}
	}

	for _, entry := range rc.Entries {
		att, err := svc.repo.GetUserAttendance(ctx, sess.ID, entry.UserID)
		if err != nil {
			if errors.Cause(err) != ErrNotFound {
				return nil, errors.Wrap(err, "getting attendance")
			}
			att = Attendance{SessionID: sess.ID, UserID: entry.UserID}
		}
		att.Present = entry.Present
		if _, err = svc.repo.RecordAttendance(ctx, att); err != nil {
			return nil, errors.Wrap(err, "recording attendance")
		}
	}
	return svc.repo.GetAttendance(ctx, sess.ID)
}

func (svc *Service) AskQuestion(ctx context.Context, sess Session, usr user.User, nq NewQuestion) (Question, error) {
	q, err := svc.repo.CreateQuestion(ctx, Question{
		SessionID: sess.ID,
		UserID:    usr.ID,
		Body:      core.CleanString(nq.Body),
		CreatedAt: NowFunc().UTC(),
	})
	return q, errors.Wrap(err, "creating question")
}

func (svc *Service) Questions(ctx context.Context, sess Session) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, sess.ID)
}

func (svc *Service) AnswerQuestion(ctx context.Context, sess Session, questionID string, usr user.User, aq AnswerQuestion) (Question, error) {
	q, err := svc.repo.GetQuestion(ctx, sess.ID, questionID)
	if err != nil {
		return Question{}, err
	}
	if q.Answered() {
		return Question{}, core.NewValidationError(ErrAlreadyAnswered)
	}

	now := NowFunc().UTC()
	q.Answer = core.CleanString(aq.Answer)
	q.AnsweredBy = usr.ID
	q.AnsweredAt = &now
	q, err = svc.repo.AnswerQuestion(ctx, q)
	return q, errors.Wrap(err, "answering question")
}

func (svc *Service) CreatePoll(ctx context.Context, sess Session, usr user.User, np NewPoll) (Poll, error) {
	opts := make([]string, 0, len(np.Options))
	for _, opt := range np.Options {
		opts = append(opts, core.CleanString(opt))
	}
	p, err := svc.repo.CreatePoll(ctx, Poll{
		SessionID: sess.ID,
		Question:  core.CleanString(np.Question),
		Options:   opts,
		CreatedBy: usr.ID,
		CreatedAt: NowFunc().UTC(),
	})
	return p, errors.Wrap(err, "creating poll")
}

func (svc *Service) Polls(ctx context.Context, sess Session) ([]Poll, error) {
	return svc.repo.QueryPolls(ctx, sess.ID)
}

func (svc *Service) ClosePoll(ctx context.Context, sess Session, pollID string) (Poll, error) {
	p, err := svc.repo.GetPoll(ctx, sess.ID, pollID)
	if err != nil {
		return Poll{}, err
	}
	if p.Closed {
		return p, nil
	}
	p.Closed = true
	p, err = svc.repo.ClosePoll(ctx, p)
	return p, errors.Wrap(err, "closing poll")
}

// Vote records the choice of usr; voting again replaces the previous choice.
func (svc *Service) Vote(ctx context.Context, sess Session, pollID string, usr user.User, v Vote) (PollResults, error) {
	p, err := svc.repo.GetPoll(ctx, sess.ID, pollID)
	if err != nil {
		return PollResults{}, err
	}
	if p.Closed {
		return PollResults{}, core.NewValidationError(ErrPollClosed)
	}
	if v.Option == nil || *v.Option < 0 || *v.Option >= len(p.Options) {
		return PollResults{}, core.NewValidationError(ErrInvalidPollOption, core.FieldError{Field: "option", Error: ErrInvalidPollOption.Error()})
	}

	v.PollID = p.ID
	v.UserID = usr.ID
	if err = svc.repo.CastVote(ctx, v); err != nil {
		return PollResults{}, errors.Wrap(err, "casting vote")
	}
	return svc.repo.GetPollResults(ctx, p)
}

func (svc *Service) PollResults(ctx context.Context, sess Session, pollID string) (PollResults, error) {
	p, err := svc.repo.GetPoll(ctx, sess.ID, pollID)
	if err != nil {
		return PollResults{}, err
	}
	return svc.repo.GetPollResults(ctx, p)
}

func (svc *Service) ProviderSettings(ctx context.Context, mentorID string, provider meeting.Provider) (ProviderSettings, error) {
	return svc.repo.GetVideoProviderSettings(ctx, mentorID, provider)
}

func (svc *Service) SaveProviderSettings(ctx context.Context, mentorID string, provider meeting.Provider, sps SaveProviderSettings) (ProviderSettings, error) {
	ps, err := svc.repo.SaveVideoProviderSettings(ctx, ProviderSettings{
		MentorID:    mentorID,
		Provider:    provider,
		AccessToken: core.CleanString(sps.AccessToken),
		UpdatedAt:   NowFunc().UTC(),
	})
	return ps, errors.Wrap(err, "saving video provider settings")
}

type invitationData struct {
	SessionID       string
	Name            string
	Title           string
	StartTime       string
	EndTime         string
	Timezone        string
	MeetingURL      string
	MeetingPassword string
	GoogleURL       string
	OutlookURL      string
}

func (svc *Service) sendInvitations(sess Session, users []user.User) {
	if len(users) == 0 {
		return
	}
	urls := svc.CalendarURLs(sess)
	loc := loadLocation(sess.Timezone)
	const layout = "Mon, 02 Jan 2006 15:04 MST"

	messages := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		if usr.Email == "" {
			continue
		}
		name := usr.Name
		if name == "" {
			name = usr.Username
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Invitation: " + sess.Title,
			TemplateName: "session_invitation",
			TemplateData: invitationData{
				SessionID:       sess.ID,
				Name:            name,
				Title:           sess.Title,
				StartTime:       sess.StartTime.In(loc).Format(layout),
				EndTime:         sess.EndTime.In(loc).Format(layout),
				Timezone:        sess.Timezone,
				MeetingURL:      sess.MeetingURL,
				MeetingPassword: sess.MeetingPassword,
				GoogleURL:       urls.Google,
				OutlookURL:      urls.Outlook,
			},
		})
	}
	svc.mailSvc.SendMessages(messages...)
}
