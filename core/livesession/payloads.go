package livesession

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/meeting"
)

const maxDuration = 24 * 60 // minutes

var (
	errInvalidTime = errors.New("invalid date/time")

	// layouts of the datetime-local HTML input, interpreted in the session's time zone
	localLayouts = []string{
		"2006-01-02T15:04",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// ParseWireTime parses RFC 3339 timestamps and datetime-local strings; the latter are read in loc.
func ParseWireTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errInvalidTime
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Wrapf(errInvalidTime, "%q", value)
}

func loadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Schedule is a validated session time span.
type Schedule struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  int // minutes
	Timezone  string
}

// buildSchedule completes a schedule from a start and either an end or a duration.
func buildSchedule(start string, end string, duration int, tz string) (Schedule, error) {
	if tz == "" {
		tz = "UTC"
	}
	loc := loadLocation(tz)

	startTime, err := ParseWireTime(start, loc)
	if err != nil {
		return Schedule{}, core.NewValidationError(err, core.FieldError{Field: "start_time", Error: "invalid date/time"})
	}

	var endTime time.Time
	switch {
	case end != "":
		endTime, err = ParseWireTime(end, loc)
		if err != nil {
			return Schedule{}, core.NewValidationError(err, core.FieldError{Field: "end_time", Error: "invalid date/time"})
		}
		if !endTime.After(startTime) {
			return Schedule{}, core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "end_time must be after start_time"})
		}
		duration = int(endTime.Sub(startTime) / time.Minute) // the end time wins over the duration
	case duration > 0:
		endTime = startTime.Add(time.Duration(duration) * time.Minute)
	default:
		return Schedule{}, core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "one of end_time or duration is required"})
	}
	if duration < 1 || duration > maxDuration {
		return Schedule{}, core.NewValidationError(nil, core.FieldError{Field: "duration", Error: "a session lasts between 1 minute and 24 hours"})
	}

	return Schedule{StartTime: startTime, EndTime: endTime, Duration: duration, Timezone: tz}, nil
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	CourseID           string `json:"course_id" validate:"max=64"`
	LessonID           string `json:"lesson_id" validate:"max=64"`
	Title              string `json:"title" validate:"required,notblank,max=200"`
	Description        string `json:"description" validate:"max=5000"`
	StartTime          string `json:"start_time" validate:"required,wiretime"`
	EndTime            string `json:"end_time" validate:"omitempty,wiretime"`
	Duration           int    `json:"duration" validate:"omitempty,min=1,max=1440"`
	Timezone           string `json:"timezone" validate:"omitempty,timezone"`
	Provider           string `json:"provider" validate:"required,provider"`
	WaitingRoomEnabled bool   `json:"waiting_room_enabled"`
	AutoRecord         bool   `json:"auto_record"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.Timezone = core.CleanString(ns.Timezone)
	ns.Provider = core.CleanString(ns.Provider, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	_, err := ns.Schedule()
	return err
}

func (ns NewSession) Schedule() (Schedule, error) {
	return buildSchedule(ns.StartTime, ns.EndTime, ns.Duration, ns.Timezone)
}

// UpdateSession defines what information may be provided to modify an existing Session.
type UpdateSession struct {
	Title              *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description        *string `json:"description" validate:"omitempty,max=5000"`
	StartTime          *string `json:"start_time" validate:"omitempty,wiretime"`
	EndTime            *string `json:"end_time" validate:"omitempty,wiretime"`
	Duration           *int    `json:"duration" validate:"omitempty,min=1,max=1440"`
	Timezone           *string `json:"timezone" validate:"omitempty,timezone"`
	WaitingRoomEnabled *bool   `json:"waiting_room_enabled"`
	AutoRecord         *bool   `json:"auto_record"`
	Status             *string `json:"status" validate:"omitempty,oneof=scheduled live ended cancelled"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

// Apply returns sess with the updates applied.
// meetingChanged reports whether the provider meeting needs to be updated too.
func (us UpdateSession) Apply(sess Session) (updated Session, meetingChanged bool, err error) {
	updated = sess

	if us.Title != nil {
		title := core.CleanString(*us.Title)
		if title == "" {
			return Session{}, false, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field cannot be blank"})
		}
		meetingChanged = meetingChanged || title != sess.Title
		updated.Title = title
	}
	if us.Description != nil {
		desc := core.CleanString(*us.Description)
		meetingChanged = meetingChanged || desc != sess.Description
		updated.Description = desc
	}
	if us.WaitingRoomEnabled != nil {
		meetingChanged = meetingChanged || *us.WaitingRoomEnabled != sess.WaitingRoomEnabled
		updated.WaitingRoomEnabled = *us.WaitingRoomEnabled
	}
	if us.AutoRecord != nil {
		meetingChanged = meetingChanged || *us.AutoRecord != sess.AutoRecord
		updated.AutoRecord = *us.AutoRecord
	}
	if us.Status != nil {
		updated.Status = Status(*us.Status)
	}

	if us.StartTime != nil || us.EndTime != nil || us.Duration != nil || us.Timezone != nil {
		tz := sess.Timezone
		if us.Timezone != nil {
			tz = core.CleanString(*us.Timezone)
		}
		loc := loadLocation(tz)

		start := sess.StartTime.In(loc).Format(time.RFC3339)
		if us.StartTime != nil {
			start = *us.StartTime
		}

		var end string
		duration := 0
		switch {
		case us.EndTime != nil:
			end = *us.EndTime
			if us.Duration != nil {
				duration = *us.Duration
			}
		case us.Duration != nil:
			duration = *us.Duration
		default:
			duration = sess.Duration // keep the length when only the start moves
		}

		sched, err := buildSchedule(start, end, duration, tz)
		if err != nil {
			return Session{}, false, err
		}
		meetingChanged = meetingChanged ||
			!sched.StartTime.Equal(sess.StartTime) ||
			!sched.EndTime.Equal(sess.EndTime) ||
			sched.Timezone != sess.Timezone
		updated.StartTime = sched.StartTime
		updated.EndTime = sched.EndTime
		updated.Duration = sched.Duration
		updated.Timezone = sched.Timezone
	}
	return updated, meetingChanged, nil
}

// ParseProvider is a helper for route params.
func ParseProvider(s string) (meeting.Provider, error) {
	p, err := meeting.ParseProvider(core.CleanString(s, true /* lower */))
	if err != nil {
		return "", core.NewValidationError(err, core.FieldError{Field: "provider", Error: "unknown video provider"})
	}
	return p, nil
}
