package meeting

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func introToJS() CalendarEvent {
	return CalendarEvent{
		ID:         "3f1c9a",
		Title:      "Intro to JS",
		StartTime:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		Timezone:   "UTC",
		MeetingURL: "https://meet.example/x",
	}
}

func decodeAppleICS(t *testing.T, apple string) (string, *ical.Calendar) {
	t.Helper()
	require.True(t, strings.HasPrefix(apple, appleCalendarURL), apple)
	raw, err := url.QueryUnescape(strings.TrimPrefix(apple, appleCalendarURL))
	require.NoError(t, err)
	cal, err := ical.NewDecoder(strings.NewReader(raw)).Decode()
	require.NoError(t, err)
	return raw, cal
}

func TestGenerateCalendarURLs(t *testing.T) {
	urls := GenerateCalendarURLs(introToJS())

	assert.Contains(t, urls.Google, "dates=20250601T100000Z/20250601T110000Z")
	assert.Contains(t, urls.Google, "text=Intro%20to%20JS")
	assert.Contains(t, urls.Google, "location=https%3A%2F%2Fmeet.example%2Fx")
	assert.True(t, strings.HasPrefix(urls.Google, googleCalendarURL+"?action=TEMPLATE"))
	assert.NotContains(t, urls.Google, "+")

	assert.Contains(t, urls.Outlook, "subject=Intro%20to%20JS")
	assert.Contains(t, urls.Outlook, "startdt=2025-06-01T10%3A00%3A00Z")
	assert.Contains(t, urls.Outlook, "enddt=2025-06-01T11%3A00%3A00Z")

	_, cal := decodeAppleICS(t, urls.Apple)
	events := cal.Events()
	require.Len(t, events, 1)
	ev := events[0]

	summary, err := ev.Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Intro to JS", summary)

	start, err := ev.DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(introToJS().StartTime))

	end, err := ev.DateTimeEnd(time.UTC)
	require.NoError(t, err)
	assert.True(t, end.Equal(introToJS().EndTime))

	desc, err := ev.Props.Text(ical.PropDescription)
	require.NoError(t, err)
	assert.Equal(t, "Join: https://meet.example/x", desc)
}

func TestGenerateCalendarURLs_deterministic(t *testing.T) {
	ev := introToJS()
	ev.Description = "Bring a laptop, please; we code live.\nQuestions welcome!"

	first := GenerateCalendarURLs(ev)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GenerateCalendarURLs(ev))
	}
}

func TestEncodeICS(t *testing.T) {
	ev := introToJS()
	ev.Description = "Line one\nLine two"

	data, err := EncodeICS(ev)
	require.NoError(t, err)
	raw := string(data)

	for _, line := range []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"DTSTART:20250601T100000Z",
		"DTEND:20250601T110000Z",
		"SUMMARY:Intro to JS",
		`DESCRIPTION:Line one\nLine two\n\nJoin: https://meet.example/x`,
		"UID:3f1c9a@mentora",
		"END:VEVENT",
		"END:VCALENDAR",
	} {
		assert.Contains(t, raw, line)
	}
	assert.NotContains(t, raw, "Line one\nLine two", "raw newlines must be escaped")
}

func TestFormatCalendarDate(t *testing.T) {
	kinshasa := time.FixedZone("WAT", 3600)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "UTC", t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), want: "20250601T100000Z"},
		{name: "drops sub-seconds", t: time.Date(2025, 6, 1, 10, 0, 59, 999999999, time.UTC), want: "20250601T100059Z"},
		{name: "converts to UTC", t: time.Date(2025, 6, 1, 0, 30, 0, 0, kinshasa), want: "20250531T233000Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCalendarDate(tt.t))
		})
	}
}

func TestCreateCalendarEvent(t *testing.T) {
	for _, p := range Providers {
		desc := testDescription(p)
		ev := CreateCalendarEvent("s1", desc, "https://meet.example/x")
		assert.Equal(t, CalendarEvent{
			ID:          "s1",
			Title:       desc.Title,
			StartTime:   desc.StartTime,
			EndTime:     desc.EndTime,
			Timezone:    desc.Timezone,
			MeetingURL:  "https://meet.example/x",
			Description: desc.Description,
			Provider:    p,
		}, ev)
	}
}
