package meeting

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	calendarDateLayout = "20060102T150405Z"
	icsProductID       = "-//Mentora//Live Sessions//EN"
	icsUIDDomain       = "mentora"

	googleCalendarURL  = "https://calendar.google.com/calendar/render"
	outlookCalendarURL = "https://outlook.live.com/calendar/0/deeplink/compose"
	appleCalendarURL   = "data:text/calendar;charset=utf8,"
)

type (
	// CalendarEvent is the calendar view of a session.
	CalendarEvent struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		StartTime   time.Time `json:"start_time"`
		EndTime     time.Time `json:"end_time"`
		Timezone    string    `json:"timezone"`
		MeetingURL  string    `json:"meeting_url"`
		Description string    `json:"description"`
		Provider    Provider  `json:"provider"`
	}

	CalendarURLs struct {
		Google  string `json:"google"`
		Outlook string `json:"outlook"`
		Apple   string `json:"apple"`
	}
)

// CreateCalendarEvent packages session fields with their provider; the shape is the same for every provider.
func CreateCalendarEvent(id string, desc Description, meetingURL string) CalendarEvent {
	return CalendarEvent{
		ID:          id,
		Title:       desc.Title,
		StartTime:   desc.StartTime,
		EndTime:     desc.EndTime,
		Timezone:    desc.Timezone,
		MeetingURL:  meetingURL,
		Description: desc.Description,
		Provider:    desc.Provider,
	}
}

// FormatCalendarDate formats t as YYYYMMDDTHHMMSSZ in UTC, dropping sub-second precision.
func FormatCalendarDate(t time.Time) string {
	return t.UTC().Format(calendarDateLayout)
}

// encodeURIComponent percent-encodes s, spaces included.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (ev CalendarEvent) details() string {
	if ev.MeetingURL == "" {
		return ev.Description
	}
	if ev.Description == "" {
		return "Join: " + ev.MeetingURL
	}
	return ev.Description + "\n\nJoin: " + ev.MeetingURL
}

// GenerateCalendarURLs returns "add to calendar" links for the event. The result only depends on ev.
func GenerateCalendarURLs(ev CalendarEvent) CalendarURLs {
	start, end := FormatCalendarDate(ev.StartTime), FormatCalendarDate(ev.EndTime)
	details := encodeURIComponent(ev.details())
	location := encodeURIComponent(ev.MeetingURL)

	google := googleCalendarURL +
		"?action=TEMPLATE" +
		"&text=" + encodeURIComponent(ev.Title) +
		"&dates=" + start + "/" + end +
		"&details=" + details +
		"&location=" + location
	if ev.Timezone != "" {
		google += "&ctz=" + encodeURIComponent(ev.Timezone)
	}

	outlook := outlookCalendarURL +
		"?path=" + encodeURIComponent("/calendar/action/compose") +
		"&rru=addevent" +
		"&subject=" + encodeURIComponent(ev.Title) +
		"&startdt=" + encodeURIComponent(ev.StartTime.UTC().Format(time.RFC3339)) +
		"&enddt=" + encodeURIComponent(ev.EndTime.UTC().Format(time.RFC3339)) +
		"&body=" + details +
		"&location=" + location

	// encoding into memory only fails without VERSION or PRODID, both always set
	ics, _ := EncodeICS(ev)

	return CalendarURLs{
		Google:  google,
		Outlook: outlook,
		Apple:   appleCalendarURL + encodeURIComponent(string(ics)),
	}
}

// EncodeICS renders the event as an iCalendar document.
// DTSTAMP is the event start so that the output only depends on ev.
func EncodeICS(ev CalendarEvent) ([]byte, error) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, eventUID(ev))
	event.Props.SetDateTime(ical.PropDateTimeStamp, ev.StartTime.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, ev.StartTime.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndTime.UTC())
	event.Props.SetText(ical.PropSummary, ev.Title)
	event.Props.SetText(ical.PropDescription, ev.details())
	if ev.MeetingURL != "" {
		event.Props.SetText(ical.PropLocation, ev.MeetingURL)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func eventUID(ev CalendarEvent) string {
	id := ev.ID
	if id == "" {
		id = FormatCalendarDate(ev.StartTime)
	}
	return id + "@" + icsUIDDomain
}
