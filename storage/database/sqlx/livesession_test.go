package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/meeting"
	"github.com/mentora/mentora/core/user"
	"github.com/mentora/mentora/storage/database/sqlx"
	"github.com/mentora/mentora/tests"
)

var start = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newSession(mentorID, title string, offset time.Duration) livesession.Session {
	return livesession.Session{
		MentorID:        mentorID,
		CourseID:        "course-1",
		Title:           title,
		StartTime:       start.Add(offset),
		EndTime:         start.Add(offset + time.Hour),
		Duration:        60,
		Timezone:        "UTC",
		Provider:        meeting.Zoom,
		Status:          livesession.StatusScheduled,
		MeetingURL:      "https://zoom.us/j/1",
		MeetingID:       "1",
		MeetingPassword: "abc",
		HostURL:         "https://zoom.us/s/1",
		CreatedAt:       start,
		UpdatedAt:       start,
	}
}

func setupSessions(t *testing.T) (*livesession.Session, user.User, user.User, livesession.Repository) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewSessionRepository(db)

	mentor := testutil.CreateUser(t, usrRepo, "Mo Mentor", "mo", "mo@mentora.app", "", []string{user.RoleMentor}, true)
	student := testutil.CreateUser(t, usrRepo, "Sam Student", "sam", "sam@mentora.app", "", nil, true)

	sess, err := repo.CreateSession(context.Background(), newSession(mentor.ID, "Intro to JS", 0))
	require.NoError(t, err)
	return &sess, mentor, student, repo
}

func TestSessionRepository_Sessions(t *testing.T) {
	ctx := context.Background()
	sess, mentor, student, repo := setupSessions(t)

	later, err := repo.CreateSession(ctx, newSession(mentor.ID, "Advanced JS", 48*time.Hour))
	require.NoError(t, err)

	got, err := repo.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(sess.StartTime))
	assert.True(t, got.EndTime.Equal(sess.EndTime))
	got.StartTime, got.EndTime, got.CreatedAt, got.UpdatedAt = sess.StartTime, sess.EndTime, sess.CreatedAt, sess.UpdatedAt
	assert.Equal(t, *sess, got)
	assert.Nil(t, got.Recording())

	_, err = repo.GetSession(ctx, "nope")
	assert.Equal(t, livesession.ErrNotFound, err)

	_, err = repo.EnrollStudents(ctx, later.ID, student.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		filter   *livesession.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all", want: []string{sess.ID, later.ID}},
		{name: "ordered", ordering: []core.DBOrdering{{Field: "start_time"}}, want: []string{later.ID, sess.ID}},
		{name: "mentor", filter: &livesession.QueryFilter{MentorID: mentor.ID}, want: []string{sess.ID, later.ID}},
		{name: "other mentor", filter: &livesession.QueryFilter{MentorID: student.ID}, want: []string{}},
		{name: "from", filter: &livesession.QueryFilter{From: start.Add(time.Hour)}, want: []string{later.ID}},
		{name: "to", filter: &livesession.QueryFilter{To: start.Add(time.Hour)}, want: []string{sess.ID}},
		{name: "enrolled", filter: &livesession.QueryFilter{EnrolledUserID: student.ID}, want: []string{later.ID}},
		{name: "status", filter: &livesession.QueryFilter{Status: "live"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := repo.QuerySessions(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			ids := make([]string, 0, len(sessions))
			for _, s := range sessions {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("update caches the recording", func(t *testing.T) {
		upd := *sess
		upd.Status = livesession.StatusEnded
		upd.SetRecording(&meeting.Recording{RecordingURL: "https://zoom.us/rec/1", RecordingSize: 1024, RecordingDuration: 55})
		_, err := repo.UpdateSession(ctx, upd)
		require.NoError(t, err)

		got, err := repo.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, livesession.StatusEnded, got.Status)
		require.NotNil(t, got.Recording())
		assert.Equal(t, int64(1024), got.Recording().RecordingSize)
		assert.Equal(t, 55, got.Recording().RecordingDuration)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteSession(ctx, later.ID))
		assert.Equal(t, livesession.ErrNotFound, repo.DeleteSession(ctx, later.ID))
		enrolled, err := repo.IsEnrolled(ctx, later.ID, student.ID)
		require.NoError(t, err)
		assert.False(t, enrolled, "enrollments are deleted with the session")
	})
}

func TestSessionRepository_EnrollmentAndAttendance(t *testing.T) {
	ctx := context.Background()
	sess, mentor, student, repo := setupSessions(t)

	added, err := repo.EnrollStudents(ctx, sess.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, added)

	added, err = repo.EnrollStudents(ctx, sess.ID, student.ID, mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mentor.ID}, added, "already enrolled students are skipped")

	ids, err := repo.GetEnrolledStudents(ctx, sess.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{student.ID, mentor.ID}, ids)

	_, err = repo.GetUserAttendance(ctx, sess.ID, student.ID)
	assert.Equal(t, livesession.ErrNotFound, err)

	joined := start.Add(5 * time.Minute)
	att, err := repo.RecordAttendance(ctx, livesession.Attendance{SessionID: sess.ID, UserID: student.ID, JoinedAt: &joined, Present: true})
	require.NoError(t, err)
	assert.Equal(t, "Sam Student", att.UserName)
	require.NotNil(t, att.JoinedAt)
	assert.True(t, att.JoinedAt.Equal(joined))
	assert.Nil(t, att.LeftAt)

	left := joined.Add(40 * time.Minute)
	att.LeftAt = &left
	att.DurationMinutes = 40
	_, err = repo.RecordAttendance(ctx, att)
	require.NoError(t, err)

	atts, err := repo.GetAttendance(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, 40, atts[0].DurationMinutes)
	require.NotNil(t, atts[0].LeftAt)
	assert.True(t, atts[0].LeftAt.Equal(left))
}

func TestSessionRepository_ProviderSettings(t *testing.T) {
	ctx := context.Background()
	_, mentor, _, repo := setupSessions(t)

	_, err := repo.GetVideoProviderSettings(ctx, mentor.ID, meeting.Zoom)
	assert.Equal(t, livesession.ErrNotFound, err)

	for _, token := range []string{"first-token", "second-token"} {
		_, err = repo.SaveVideoProviderSettings(ctx, livesession.ProviderSettings{
			MentorID: mentor.ID, Provider: meeting.Zoom, AccessToken: token, UpdatedAt: start,
		})
		require.NoError(t, err)
	}

	ps, err := repo.GetVideoProviderSettings(ctx, mentor.ID, meeting.Zoom)
	require.NoError(t, err)
	assert.Equal(t, "second-token", ps.AccessToken)
	assert.Equal(t, meeting.Settings{Provider: meeting.Zoom, AccessToken: "second-token"}, ps.Settings())

	_, err = repo.GetVideoProviderSettings(ctx, mentor.ID, meeting.Zoho)
	assert.Equal(t, livesession.ErrNotFound, err)
}

func TestSessionRepository_Interactions(t *testing.T) {
	ctx := context.Background()
	sess, mentor, student, repo := setupSessions(t)

	q, err := repo.CreateQuestion(ctx, livesession.Question{SessionID: sess.ID, UserID: student.ID, Body: "What is a closure?", CreatedAt: start})
	require.NoError(t, err)
	assert.False(t, q.Answered())

	answeredAt := start.Add(time.Minute)
	q.Answer, q.AnsweredBy, q.AnsweredAt = "A function with its scope.", mentor.ID, &answeredAt
	_, err = repo.AnswerQuestion(ctx, q)
	require.NoError(t, err)

	questions, err := repo.QueryQuestions(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.True(t, questions[0].Answered())
	assert.Equal(t, mentor.ID, questions[0].AnsweredBy)

	p, err := repo.CreatePoll(ctx, livesession.Poll{SessionID: sess.ID, Question: "Ready?", Options: []string{"yes", "no"}, CreatedBy: mentor.ID, CreatedAt: start})
	require.NoError(t, err)

	got, err := repo.GetPoll(ctx, sess.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes", "no"}, got.Options)

	yes, no := 0, 1
	require.NoError(t, repo.CastVote(ctx, livesession.Vote{PollID: p.ID, UserID: student.ID, Option: &yes}))
	require.NoError(t, repo.CastVote(ctx, livesession.Vote{PollID: p.ID, UserID: mentor.ID, Option: &yes}))
	require.NoError(t, repo.CastVote(ctx, livesession.Vote{PollID: p.ID, UserID: student.ID, Option: &no}))

	res, err := repo.GetPollResults(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, livesession.PollResults{
		PollID:     p.ID,
		Question:   "Ready?",
		Options:    []livesession.OptionResult{{Option: "yes", Votes: 1}, {Option: "no", Votes: 1}},
		TotalVotes: 2,
	}, res)

	_, err = repo.ClosePoll(ctx, got)
	require.NoError(t, err)
	polls, err := repo.QueryPolls(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.True(t, polls[0].Closed)

	_, err = repo.EnrollStudents(ctx, sess.ID, student.ID)
	require.NoError(t, err)
	_, err = repo.RecordAttendance(ctx, livesession.Attendance{SessionID: sess.ID, UserID: student.ID, DurationMinutes: 30, Present: true})
	require.NoError(t, err)

	an, err := repo.GetAnalytics(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, livesession.Analytics{
		SessionID:      sess.ID,
		EnrolledCount:  1,
		AttendeeCount:  1,
		AverageMinutes: 30,
		QuestionCount:  1,
		AnsweredCount:  1,
		PollCount:      1,
		VoteCount:      2,
	}, an)
}
