package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/meeting"
)

const sessionColumns = `id, mentor_id, course_id, lesson_id, title, description, start_time, end_time, duration,
	timezone, provider, waiting_room_enabled, auto_record, status, meeting_url, meeting_id, meeting_password,
	host_key, host_url, recording_url, recording_id, recording_password, recording_size, recording_duration,
	created_at, updated_at`

var sessionOrderingColumns = map[string]string{
	"start_time": "start_time",
	"end_time":   "end_time",
	"title":      "title",
	"status":     "status",
	"created_at": "created_at",
}

type sessionRow struct {
	ID                 string      `db:"id"`
	MentorID           string      `db:"mentor_id"`
	CourseID           string      `db:"course_id"`
	LessonID           string      `db:"lesson_id"`
	Title              string      `db:"title"`
	Description        string      `db:"description"`
	StartTime          time.Time   `db:"start_time"`
	EndTime            time.Time   `db:"end_time"`
	Duration           int         `db:"duration"`
	Timezone           string      `db:"timezone"`
	Provider           string      `db:"provider"`
	WaitingRoomEnabled bool        `db:"waiting_room_enabled"`
	AutoRecord         bool        `db:"auto_record"`
	Status             string      `db:"status"`
	MeetingURL         string      `db:"meeting_url"`
	MeetingID          string      `db:"meeting_id"`
	MeetingPassword    null.String `db:"meeting_password"`
	HostKey            null.String `db:"host_key"`
	HostURL            null.String `db:"host_url"`
	RecordingURL       null.String `db:"recording_url"`
	RecordingID        null.String `db:"recording_id"`
	RecordingPassword  null.String `db:"recording_password"`
	RecordingSize      null.Int64  `db:"recording_size"`
	RecordingDuration  null.Int    `db:"recording_duration"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

func toSessionRow(sess livesession.Session) sessionRow {
	return sessionRow{
		ID:                 sess.ID,
		MentorID:           sess.MentorID,
		CourseID:           sess.CourseID,
		LessonID:           sess.LessonID,
		Title:              sess.Title,
		Description:        sess.Description,
		StartTime:          sess.StartTime.UTC(),
		EndTime:            sess.EndTime.UTC(),
		Duration:           sess.Duration,
		Timezone:           sess.Timezone,
		Provider:           sess.Provider.String(),
		WaitingRoomEnabled: sess.WaitingRoomEnabled,
		AutoRecord:         sess.AutoRecord,
		Status:             string(sess.Status),
		MeetingURL:         sess.MeetingURL,
		MeetingID:          sess.MeetingID,
		MeetingPassword:    nullString(sess.MeetingPassword),
		HostKey:            nullString(sess.HostKey),
		HostURL:            nullString(sess.HostURL),
		RecordingURL:       nullString(sess.RecordingURL),
		RecordingID:        nullString(sess.RecordingID),
		RecordingPassword:  nullString(sess.RecordingPassword),
		RecordingSize:      null.NewInt64(sess.RecordingSize, sess.RecordingURL != ""),
		RecordingDuration:  null.NewInt(sess.RecordingDuration, sess.RecordingURL != ""),
		CreatedAt:          sess.CreatedAt.UTC(),
		UpdatedAt:          sess.UpdatedAt.UTC(),
	}
}

func (row sessionRow) session() livesession.Session {
	return livesession.Session{
		ID:                 row.ID,
		MentorID:           row.MentorID,
		CourseID:           row.CourseID,
		LessonID:           row.LessonID,
		Title:              row.Title,
		Description:        row.Description,
		StartTime:          utc(row.StartTime),
		EndTime:            utc(row.EndTime),
		Duration:           row.Duration,
		Timezone:           row.Timezone,
		Provider:           meeting.Provider(row.Provider),
		WaitingRoomEnabled: row.WaitingRoomEnabled,
		AutoRecord:         row.AutoRecord,
		Status:             livesession.Status(row.Status),
		MeetingURL:         row.MeetingURL,
		MeetingID:          row.MeetingID,
		MeetingPassword:    row.MeetingPassword.String,
		HostKey:            row.HostKey.String,
		HostURL:            row.HostURL.String,
		RecordingURL:       row.RecordingURL.String,
		RecordingID:        row.RecordingID.String,
		RecordingPassword:  row.RecordingPassword.String,
		RecordingSize:      row.RecordingSize.Int64,
		RecordingDuration:  row.RecordingDuration.Int,
		CreatedAt:          utc(row.CreatedAt),
		UpdatedAt:          utc(row.UpdatedAt),
	}
}

type attendanceRow struct {
	SessionID       string      `db:"session_id"`
	UserID          string      `db:"user_id"`
	UserName        null.String `db:"user_name"`
	JoinedAt        null.Time   `db:"joined_at"`
	LeftAt          null.Time   `db:"left_at"`
	DurationMinutes int         `db:"duration_minutes"`
	Present         bool        `db:"present"`
}

func (row attendanceRow) attendance() livesession.Attendance {
	return livesession.Attendance{
		SessionID:       row.SessionID,
		UserID:          row.UserID,
		UserName:        row.UserName.String,
		JoinedAt:        timePtr(row.JoinedAt),
		LeftAt:          timePtr(row.LeftAt),
		DurationMinutes: row.DurationMinutes,
		Present:         row.Present,
	}
}

const attendanceQuery = `SELECT a.session_id, a.user_id, u.name AS user_name, a.joined_at, a.left_at, a.duration_minutes, a.present
	FROM session_attendance a LEFT JOIN users u ON u.id = a.user_id`

type settingsRow struct {
	MentorID    string    `db:"mentor_id"`
	Provider    string    `db:"provider"`
	AccessToken string    `db:"access_token"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row settingsRow) settings() livesession.ProviderSettings {
	return livesession.ProviderSettings{
		MentorID:    row.MentorID,
		Provider:    meeting.Provider(row.Provider),
		AccessToken: row.AccessToken,
		UpdatedAt:   utc(row.UpdatedAt),
	}
}

type questionRow struct {
	ID         string      `db:"id"`
	SessionID  string      `db:"session_id"`
	UserID     string      `db:"user_id"`
	Body       string      `db:"body"`
	Answer     null.String `db:"answer"`
	AnsweredBy null.String `db:"answered_by"`
	AnsweredAt null.Time   `db:"answered_at"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (row questionRow) question() livesession.Question {
	return livesession.Question{
		ID:         row.ID,
		SessionID:  row.SessionID,
		UserID:     row.UserID,
		Body:       row.Body,
		Answer:     row.Answer.String,
		AnsweredBy: row.AnsweredBy.String,
		AnsweredAt: timePtr(row.AnsweredAt),
		CreatedAt:  utc(row.CreatedAt),
	}
}

const questionColumns = `id, session_id, user_id, body, answer, answered_by, answered_at, created_at`

type pollRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Question  string    `db:"question"`
	Options   string    `db:"options"` // JSON array
	CreatedBy string    `db:"created_by"`
	Closed    bool      `db:"closed"`
	CreatedAt time.Time `db:"created_at"`
}

func (row pollRow) poll() (livesession.Poll, error) {
	var opts []string
	if err := json.Unmarshal([]byte(row.Options), &opts); err != nil {
		return livesession.Poll{}, errors.Wrap(err, "decoding poll options")
	}
	return livesession.Poll{
		ID:        row.ID,
		SessionID: row.SessionID,
		Question:  row.Question,
		Options:   opts,
		CreatedBy: row.CreatedBy,
		Closed:    row.Closed,
		CreatedAt: utc(row.CreatedAt),
	}, nil
}

const pollColumns = `id, session_id, question, options, created_by, closed, created_at`

type sessionRepository struct {
	repository
}

var _ livesession.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{repository{db: db}}
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess livesession.Session) (livesession.Session, error) {
	sess.ID = uuid.New().String()
	row := toSessionRow(sess)
	_, err := repo.exec(ctx,
		`INSERT INTO live_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.MentorID, row.CourseID, row.LessonID, row.Title, row.Description, row.StartTime, row.EndTime,
		row.Duration, row.Timezone, row.Provider, row.WaitingRoomEnabled, row.AutoRecord, row.Status,
		row.MeetingURL, row.MeetingID, row.MeetingPassword, row.HostKey, row.HostURL,
		row.RecordingURL, row.RecordingID, row.RecordingPassword, row.RecordingSize, row.RecordingDuration,
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return livesession.Session{}, errors.Wrap(err, "inserting session")
	}
	return row.session(), nil
}

func (repo sessionRepository) GetSession(ctx context.Context, id string) (livesession.Session, error) {
	var row sessionRow
	if err := repo.get(ctx, &row, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = ?`, id); err != nil {
		return livesession.Session{}, trapNoRowsErr(err, livesession.ErrNotFound, "getting session")
	}
	return row.session(), nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, filter *livesession.QueryFilter, ordering []core.DBOrdering) ([]livesession.Session, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.MentorID != "" {
			where = append(where, `mentor_id = ?`)
			args = append(args, filter.MentorID)
		}
		if filter.CourseID != "" {
			where = append(where, `course_id = ?`)
			args = append(args, filter.CourseID)
		}
		if filter.Status != "" {
			where = append(where, `status = ?`)
			args = append(args, filter.Status)
		}
		if !filter.From.IsZero() {
			where = append(where, `start_time >= ?`)
			args = append(args, filter.From.UTC())
		}
		if !filter.To.IsZero() {
			where = append(where, `start_time <= ?`)
			args = append(args, filter.To.UTC())
		}
		if filter.EnrolledUserID != "" {
			where = append(where, `id IN (SELECT session_id FROM session_enrollments WHERE user_id = ?)`)
			args = append(args, filter.EnrolledUserID)
		}
	}

	query := `SELECT ` + sessionColumns + ` FROM live_sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += core.OrderBy(core.CleanOrderings(ordering, sessionOrderingColumns), "start_time ASC")

	var rows []sessionRow
	if err := repo.selekt(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]livesession.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.session())
	}
	return sessions, nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, sess livesession.Session) (livesession.Session, error) {
	row := toSessionRow(sess)
	res, err := repo.exec(ctx,
		`UPDATE live_sessions SET course_id = ?, lesson_id = ?, title = ?, description = ?, start_time = ?, end_time = ?,
		duration = ?, timezone = ?, waiting_room_enabled = ?, auto_record = ?, status = ?, meeting_url = ?,
		meeting_id = ?, meeting_password = ?, host_key = ?, host_url = ?, recording_url = ?, recording_id = ?,
		recording_password = ?, recording_size = ?, recording_duration = ?, updated_at = ?
		WHERE id = ?`,
		row.CourseID, row.LessonID, row.Title, row.Description, row.StartTime, row.EndTime,
		row.Duration, row.Timezone, row.WaitingRoomEnabled, row.AutoRecord, row.Status, row.MeetingURL,
		row.MeetingID, row.MeetingPassword, row.HostKey, row.HostURL, row.RecordingURL, row.RecordingID,
		row.RecordingPassword, row.RecordingSize, row.RecordingDuration, row.UpdatedAt,
		row.ID,
	)
	if err != nil {
		return livesession.Session{}, errors.Wrap(err, "updating session")
	}
	if err = checkAffected(res, livesession.ErrNotFound); err != nil {
		return livesession.Session{}, err
	}
	return row.session(), nil
}

func (repo sessionRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := repo.exec(ctx, `DELETE FROM live_sessions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return checkAffected(res, livesession.ErrNotFound)
}

func (repo sessionRepository) RecordAttendance(ctx context.Context, att livesession.Attendance) (livesession.Attendance, error) {
	_, err := repo.exec(ctx,
		`INSERT INTO session_attendance (session_id, user_id, joined_at, left_at, duration_minutes, present)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			joined_at = excluded.joined_at,
			left_at = excluded.left_at,
			duration_minutes = excluded.duration_minutes,
			present = excluded.present`,
		att.SessionID, att.UserID, nullTimePtr(att.JoinedAt), nullTimePtr(att.LeftAt), att.DurationMinutes, att.Present,
	)
	if err != nil {
		return livesession.Attendance{}, errors.Wrap(err, "recording attendance")
	}
	return repo.GetUserAttendance(ctx, att.SessionID, att.UserID)
}

func (repo sessionRepository) GetAttendance(ctx context.Context, sessionID string) ([]livesession.Attendance, error) {
	var rows []attendanceRow
	if err := repo.selekt(ctx, &rows, attendanceQuery+` WHERE a.session_id = ? ORDER BY u.name`, sessionID); err != nil {
		return nil, errors.Wrap(err, "getting attendance")
	}
	atts := make([]livesession.Attendance, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, row.attendance())
	}
	return atts, nil
}

func (repo sessionRepository) GetUserAttendance(ctx context.Context, sessionID, userID string) (livesession.Attendance, error) {
	var row attendanceRow
	err := repo.get(ctx, &row, attendanceQuery+` WHERE a.session_id = ? AND a.user_id = ?`, sessionID, userID)
	if err != nil {
		return livesession.Attendance{}, trapNoRowsErr(err, livesession.ErrNotFound, "getting attendance")
	}
	return row.attendance(), nil
}

func (repo sessionRepository) EnrollStudents(ctx context.Context, sessionID string, userIDs ...string) ([]string, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	query := tx.Rebind(`INSERT INTO session_enrollments (session_id, user_id, enrolled_at) VALUES (?, ?, ?)
		ON CONFLICT (session_id, user_id) DO NOTHING`)
	added := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		res, err := tx.ExecContext(ctx, query, sessionID, id, now)
		if err != nil {
			return nil, errors.Wrap(err, "enrolling student")
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			added = append(added, id)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing enrollments")
	}
	return added, nil
}

func (repo sessionRepository) IsEnrolled(ctx context.Context, sessionID, userID string) (bool, error) {
	var count int
	err := repo.get(ctx, &count, `SELECT COUNT(*) FROM session_enrollments WHERE session_id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return count > 0, nil
}

func (repo sessionRepository) GetEnrolledStudents(ctx context.Context, sessionID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.selekt(ctx, &ids, `SELECT user_id FROM session_enrollments WHERE session_id = ? ORDER BY enrolled_at, user_id`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "getting enrolled students")
	}
	return ids, nil
}

func (repo sessionRepository) GetVideoProviderSettings(ctx context.Context, mentorID string, provider meeting.Provider) (livesession.ProviderSettings, error) {
	var row settingsRow
	err := repo.get(ctx, &row,
		`SELECT mentor_id, provider, access_token, updated_at FROM video_provider_settings WHERE mentor_id = ? AND provider = ?`,
		mentorID, provider.String())
	if err != nil {
		return livesession.ProviderSettings{}, trapNoRowsErr(err, livesession.ErrNotFound, "getting video provider settings")
	}
	return row.settings(), nil
}

func (repo sessionRepository) SaveVideoProviderSettings(ctx context.Context, ps livesession.ProviderSettings) (livesession.ProviderSettings, error) {
	ps.UpdatedAt = ps.UpdatedAt.UTC()
	_, err := repo.exec(ctx,
		`INSERT INTO video_provider_settings (mentor_id, provider, access_token, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (mentor_id, provider) DO UPDATE SET access_token = excluded.access_token, updated_at = excluded.updated_at`,
		ps.MentorID, ps.Provider.String(), ps.AccessToken, ps.UpdatedAt,
	)
	if err != nil {
		return livesession.ProviderSettings{}, errors.Wrap(err, "saving video provider settings")
	}
	return ps, nil
}

func (repo sessionRepository) CreateQuestion(ctx context.Context, q livesession.Question) (livesession.Question, error) {
	q.ID = uuid.New().String()
	q.CreatedAt = q.CreatedAt.UTC()
	_, err := repo.exec(ctx,
		`INSERT INTO session_questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.SessionID, q.UserID, q.Body, nullString(q.Answer), nullString(q.AnsweredBy), nullTimePtr(q.AnsweredAt), q.CreatedAt,
	)
	if err != nil {
		return livesession.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo sessionRepository) GetQuestion(ctx context.Context, sessionID, id string) (livesession.Question, error) {
	var row questionRow
	err := repo.get(ctx, &row, `SELECT `+questionColumns+` FROM session_questions WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return livesession.Question{}, trapNoRowsErr(err, livesession.ErrNotFound, "getting question")
	}
	return row.question(), nil
}

func (repo sessionRepository) QueryQuestions(ctx context.Context, sessionID string) ([]livesession.Question, error) {
	var rows []questionRow
	err := repo.selekt(ctx, &rows, `SELECT `+questionColumns+` FROM session_questions WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]livesession.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.question())
	}
	return questions, nil
}

func (repo sessionRepository) AnswerQuestion(ctx context.Context, q livesession.Question) (livesession.Question, error) {
	res, err := repo.exec(ctx,
		`UPDATE session_questions SET answer = ?, answered_by = ?, answered_at = ? WHERE session_id = ? AND id = ?`,
		nullString(q.Answer), nullString(q.AnsweredBy), nullTimePtr(q.AnsweredAt), q.SessionID, q.ID,
	)
	if err != nil {
		return livesession.Question{}, errors.Wrap(err, "answering question")
	}
	if err = checkAffected(res, livesession.ErrNotFound); err != nil {
		return livesession.Question{}, err
	}
	return q, nil
}

func (repo sessionRepository) CreatePoll(ctx context.Context, p livesession.Poll) (livesession.Poll, error) {
	opts, err := json.Marshal(p.Options)
	if err != nil {
		return livesession.Poll{}, errors.Wrap(err, "encoding poll options")
	}
	p.ID = uuid.New().String()
	p.CreatedAt = p.CreatedAt.UTC()
	_, err = repo.exec(ctx,
		`INSERT INTO session_polls (`+pollColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.Question, string(opts), p.CreatedBy, p.Closed, p.CreatedAt,
	)
	if err != nil {
		return livesession.Poll{}, errors.Wrap(err, "inserting poll")
	}
	return p, nil
}

func (repo sessionRepository) GetPoll(ctx context.Context, sessionID, id string) (livesession.Poll, error) {
	var row pollRow
	err := repo.get(ctx, &row, `SELECT `+pollColumns+` FROM session_polls WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return livesession.Poll{}, trapNoRowsErr(err, livesession.ErrNotFound, "getting poll")
	}
	return row.poll()
}

func (repo sessionRepository) QueryPolls(ctx context.Context, sessionID string) ([]livesession.Poll, error) {
	var rows []pollRow
	err := repo.selekt(ctx, &rows, `SELECT `+pollColumns+` FROM session_polls WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying polls")
	}
	polls := make([]livesession.Poll, 0, len(rows))
	for _, row := range rows {
		p, err := row.poll()
		if err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}
	return polls, nil
}

func (repo sessionRepository) ClosePoll(ctx context.Context, p livesession.Poll) (livesession.Poll, error) {
	res, err := repo.exec(ctx, `UPDATE session_polls SET closed = ? WHERE session_id = ? AND id = ?`, true, p.SessionID, p.ID)
	if err != nil {
		return livesession.Poll{}, errors.Wrap(err, "closing poll")
	}
	if err = checkAffected(res, livesession.ErrNotFound); err != nil {
		return livesession.Poll{}, err
	}
	p.Closed = true
	return p, nil
}

func (repo sessionRepository) CastVote(ctx context.Context, v livesession.Vote) error {
	_, err := repo.exec(ctx,
		`INSERT INTO poll_votes (poll_id, user_id, option_index, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (poll_id, user_id) DO UPDATE SET option_index = excluded.option_index, created_at = excluded.created_at`,
		v.PollID, v.UserID, *v.Option, time.Now().UTC(),
	)
	return errors.Wrap(err, "casting vote")
}

func (repo sessionRepository) GetPollResults(ctx context.Context, p livesession.Poll) (livesession.PollResults, error) {
	var counts []struct {
		Option int `db:"option_index"`
		Votes  int `db:"votes"`
	}
	err := repo.selekt(ctx, &counts,
		`SELECT option_index, COUNT(*) AS votes FROM poll_votes WHERE poll_id = ? GROUP BY option_index`, p.ID)
	if err != nil {
		return livesession.PollResults{}, errors.Wrap(err, "counting votes")
	}

	res := livesession.PollResults{
		PollID:   p.ID,
		Question: p.Question,
		Closed:   p.Closed,
		Options:  make([]livesession.OptionResult, len(p.Options)),
	}
	for i, opt := range p.Options {
		res.Options[i].Option = opt
	}
	for _, c := range counts {
		if c.Option < 0 || c.Option >= len(res.Options) {
			continue
		}
		res.Options[c.Option].Votes = c.Votes
		res.TotalVotes += c.Votes
	}
	return res, nil
}

func (repo sessionRepository) GetAnalytics(ctx context.Context, sessionID string) (livesession.Analytics, error) {
	var an struct {
		EnrolledCount  int          `db:"enrolled_count"`
		AttendeeCount  int          `db:"attendee_count"`
		AverageMinutes null.Float64 `db:"average_minutes"`
		QuestionCount  int          `db:"question_count"`
		AnsweredCount  int          `db:"answered_count"`
		PollCount      int          `db:"poll_count"`
		VoteCount      int          `db:"vote_count"`
	}
	err := repo.get(ctx, &an,
		`SELECT
			(SELECT COUNT(*) FROM session_enrollments WHERE session_id = ?) AS enrolled_count,
			(SELECT COUNT(*) FROM session_attendance WHERE session_id = ? AND present = ?) AS attendee_count,
			(SELECT AVG(duration_minutes) FROM session_attendance WHERE session_id = ? AND present = ?) AS average_minutes,
			(SELECT COUNT(*) FROM session_questions WHERE session_id = ?) AS question_count,
			(SELECT COUNT(*) FROM session_questions WHERE session_id = ? AND answered_at IS NOT NULL) AS answered_count,
			(SELECT COUNT(*) FROM session_polls WHERE session_id = ?) AS poll_count,
			(SELECT COUNT(*) FROM poll_votes v JOIN session_polls p ON p.id = v.poll_id WHERE p.session_id = ?) AS vote_count`,
		sessionID, sessionID, true, sessionID, true, sessionID, sessionID, sessionID, sessionID,
	)
	if err != nil {
		return livesession.Analytics{}, errors.Wrap(err, "computing analytics")
	}
	return livesession.Analytics{
		SessionID:      sessionID,
		EnrolledCount:  an.EnrolledCount,
		AttendeeCount:  an.AttendeeCount,
		AverageMinutes: an.AverageMinutes.Float64,
		QuestionCount:  an.QuestionCount,
		AnsweredCount:  an.AnsweredCount,
		PollCount:      an.PollCount,
		VoteCount:      an.VoteCount,
	}, nil
}
