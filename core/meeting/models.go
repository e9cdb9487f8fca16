package meeting

import (
	"time"

	"github.com/pkg/errors"
)

// Provider is one of the supported video conferencing backends.
type Provider string

const (
	GoogleMeet Provider = "google_meet"
	Zoom       Provider = "zoom"
	Zoho       Provider = "zoho"
)

var Providers = []Provider{GoogleMeet, Zoom, Zoho}

func (p Provider) Valid() bool {
	switch p {
	case GoogleMeet, Zoom, Zoho:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", errors.Wrapf(ErrUnknownProvider, "%q", s)
	}
	return p, nil
}

type (
	// Description is what a provider needs to know to schedule a meeting.
	Description struct {
		Title              string
		Description        string
		StartTime          time.Time
		EndTime            time.Time
		Duration           int // minutes
		Timezone           string
		Provider           Provider
		WaitingRoomEnabled bool
		AutoRecord         bool
	}

	// Credentials are what attendees and hosts need to join a meeting.
	// MeetingURL and MeetingID are always set.
	Credentials struct {
		MeetingURL      string `json:"meeting_url"`
		MeetingID       string `json:"meeting_id"`
		MeetingPassword string `json:"meeting_password,omitempty"`
		HostKey         string `json:"host_key,omitempty"`
		HostURL         string `json:"host_url,omitempty"`
	}

	Recording struct {
		RecordingURL      string `json:"recording_url"`
		RecordingID       string `json:"recording_id"`
		RecordingPassword string `json:"recording_password,omitempty"`
		RecordingSize     int64  `json:"recording_size,omitempty"`     // bytes
		RecordingDuration int    `json:"recording_duration,omitempty"` // minutes
	}

	// Settings is the credential bag a mentor registered for a provider.
	Settings struct {
		Provider    Provider
		AccessToken string
	}
)

// DurationMinutes returns Duration, or the span between StartTime and EndTime when unset.
func (d Description) DurationMinutes() int {
	if d.Duration > 0 {
		return d.Duration
	}
	if mins := int(d.EndTime.Sub(d.StartTime).Minutes()); mins > 0 {
		return mins
	}
	return 0
}

// Location returns the description's time zone, UTC when unknown.
func (d Description) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
