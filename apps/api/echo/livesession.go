package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/user"
)

type sessionApi struct {
	svc      *livesession.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerLiveSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *livesession.Service,
	usrSvc *user.Service,
	validate *validator.Validate,
) {
	api := sessionApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	sg := g.Group("/live-sessions", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, mentorOrAdminMiddleware())

	// detail endpoints
	dg := sg.Group("/:id", sessionMiddleware(svc, usrSvc))
	manage := manageSessionMiddleware(svc)

	dg.GET("", api.retrieve)
	dg.PUT("", api.update, manage)
	dg.DELETE("", api.destroy, manage)

	dg.POST("/join", api.join)
	dg.POST("/leave", api.leave)
	dg.GET("/recording", api.recording)
	dg.GET("/calendar", api.calendar)
	dg.GET("/calendar-urls", api.calendarURLs)
	dg.GET("/analytics", api.analytics, manage)

	dg.POST("/enroll", api.enroll, manage)
	dg.GET("/attendance", api.attendance, manage)
	dg.POST("/attendance", api.markAttendance, manage)

	dg.GET("/questions", api.questions)
	dg.POST("/questions", api.askQuestion)
	dg.POST("/questions/:qid/answer", api.answerQuestion, manage)

	dg.GET("/polls", api.polls)
	dg.POST("/polls", api.createPoll, manage)
	dg.POST("/polls/:pid/vote", api.vote)
	dg.GET("/polls/:pid/results", api.pollResults)
	dg.POST("/polls/:pid/close", api.closePoll, manage)
}

// visible hides the host credentials from the users who cannot manage sess.
func (api *sessionApi) visible(sess livesession.Session, usr user.User) livesession.Session {
	if api.svc.CanManage(sess, usr) {
		return sess
	}
	return sess.WithoutHostFields()
}

// Handlers

type sessionQuery struct {
	MentorID string `query:"mentor_id"`
	CourseID string `query:"course_id"`
	Status   string `query:"status"`
	From     string `query:"from"`
	To       string `query:"to"`
}

func (sq sessionQuery) filter() (*livesession.QueryFilter, error) {
	filter := &livesession.QueryFilter{
		MentorID: core.CleanString(sq.MentorID),
		CourseID: core.CleanString(sq.CourseID),
		Status:   core.CleanString(sq.Status, true /* lower */),
	}
	var err error
	if sq.From != "" {
		if filter.From, err = livesession.ParseWireTime(sq.From, nil); err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "from", Error: "invalid date/time"})
		}
	}
	if sq.To != "" {
		if filter.To, err = livesession.ParseWireTime(sq.To, nil); err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "to", Error: "invalid date/time"})
		}
	}
	return filter, nil
}

// query lists all sessions to admins, their own sessions to mentors and the enrolled ones to students.
func (api *sessionApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var sq sessionQuery
	if err = ctx.Bind(&sq); err != nil {
		return errors.Wrap(err, "binding to sessionQuery")
	}
	filter, err := sq.filter()
	if err != nil {
		return err
	}
	switch {
	case usr.IsAdmin():
	case usr.IsMentor():
		filter.MentorID = usr.ID
	default:
		filter.EnrolledUserID = usr.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	res := make([]livesession.Session, 0, len(sessions))
	for _, sess := range sessions {
		res = append(res, api.visible(sess, usr))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data livesession.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.visible(sess, usr))
}

func (api *sessionApi) update(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.UpdateSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err = api.svc.Update(ctx.Request().Context(), sess, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), sess); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) join(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}
	info, err := api.svc.Join(ctx.Request().Context(), sess, usr)
	if err != nil {
		return errors.Wrap(err, "joining session")
	}
	return ctx.JSON(http.StatusOK, info)
}

func (api *sessionApi) leave(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}
	att, err := api.svc.Leave(ctx.Request().Context(), sess, usr)
	if err != nil {
		return errors.Wrap(err, "leaving session")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *sessionApi) recording(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.Recording(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "getting recording")
	}
	if rec == nil {
		return errNoRecording
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *sessionApi) calendar(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	ics, err := api.svc.CalendarICS(sess)
	if err != nil {
		return errors.Wrap(err, "encoding calendar")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="live-session-`+sess.ID+`.ics"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", ics)
}

func (api *sessionApi) calendarURLs(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.CalendarURLs(sess))
}

func (api *sessionApi) analytics(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	an, err := api.svc.Analytics(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "getting analytics")
	}
	return ctx.JSON(http.StatusOK, an)
}

type EnrollResponse struct {
	Enrolled []string `json:"enrolled"`
}

func (api *sessionApi) enroll(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.Enrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	added, err := api.svc.Enroll(ctx.Request().Context(), sess, data)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.JSON(http.StatusOK, EnrollResponse{Enrolled: added})
}

func (api *sessionApi) attendance(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	atts, err := api.svc.Attendance(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "getting attendance")
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *sessionApi) markAttendance(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.RollCall
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RollCall")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	atts, err := api.svc.MarkAttendance(ctx.Request().Context(), sess, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *sessionApi) questions(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	questions, err := api.svc.Questions(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *sessionApi) askQuestion(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	q, err := api.svc.AskQuestion(ctx.Request().Context(), sess, usr, data)
	if err != nil {
		return errors.Wrap(err, "asking question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *sessionApi) answerQuestion(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.AnswerQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerQuestion")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	q, err := api.svc.AnswerQuestion(ctx.Request().Context(), sess, ctx.Param("qid"), usr, data)
	if err != nil {
		return errors.Wrap(err, "answering question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *sessionApi) polls(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	polls, err := api.svc.Polls(ctx.Request().Context(), sess)
	if err != nil {
		return errors.Wrap(err, "querying polls")
	}
	return ctx.JSON(http.StatusOK, polls)
}

func (api *sessionApi) createPoll(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.NewPoll
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPoll")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	p, err := api.svc.CreatePoll(ctx.Request().Context(), sess, usr, data)
	if err != nil {
		return errors.Wrap(err, "creating poll")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *sessionApi) vote(ctx echo.Context) error {
	sess, usr, err := contextSession(ctx)
	if err != nil {
		return err
	}

	var data livesession.Vote
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Vote")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.Vote(ctx.Request().Context(), sess, ctx.Param("pid"), usr, data)
	if err != nil {
		return errors.Wrap(err, "voting")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) pollResults(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.PollResults(ctx.Request().Context(), sess, ctx.Param("pid"))
	if err != nil {
		return errors.Wrap(err, "getting poll results")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) closePoll(ctx echo.Context) error {
	sess, _, err := contextSession(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.ClosePoll(ctx.Request().Context(), sess, ctx.Param("pid"))
	if err != nil {
		return errors.Wrap(err, "closing poll")
	}
	return ctx.JSON(http.StatusOK, p)
}
