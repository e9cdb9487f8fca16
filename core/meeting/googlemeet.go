package meeting

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/rest"
)

const (
	googleEventsPath      = "/calendar/v3/calendars/primary/events"
	googleRecordingMIME   = "video/mp4"
	googleConferenceQuery = "conferenceDataVersion"
)

type googleMeet struct {
	api apiClient
}

var _ conferencer = (*googleMeet)(nil)

func newGoogleMeet(baseURL string, httpClient *http.Client) *googleMeet {
	return &googleMeet{api: newAPIClient(GoogleMeet, baseURL, "Bearer", httpClient)}
}

type (
	googleEventTime struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone,omitempty"`
	}

	googleCreateRequest struct {
		RequestID             string `json:"requestId"`
		ConferenceSolutionKey struct {
			Type string `json:"type"`
		} `json:"conferenceSolutionKey"`
	}

	googleConferenceData struct {
		CreateRequest *googleCreateRequest `json:"createRequest,omitempty"`
		ConferenceID  string               `json:"conferenceId,omitempty"`
		EntryPoints   []struct {
			EntryPointType string `json:"entryPointType"`
			URI            string `json:"uri"`
			Passcode       string `json:"passcode"`
			Pin            string `json:"pin"`
		} `json:"entryPoints,omitempty"`
	}

	googleEvent struct {
		ID             string                `json:"id,omitempty"`
		Summary        string                `json:"summary,omitempty"`
		Description    string                `json:"description,omitempty"`
		Start          *googleEventTime      `json:"start,omitempty"`
		End            *googleEventTime      `json:"end,omitempty"`
		HangoutLink    string                `json:"hangoutLink,omitempty"`
		HTMLLink       string                `json:"htmlLink,omitempty"`
		ConferenceData *googleConferenceData `json:"conferenceData,omitempty"`
		Attachments    []struct {
			FileID   string `json:"fileId"`
			FileURL  string `json:"fileUrl"`
			Title    string `json:"title"`
			MimeType string `json:"mimeType"`
		} `json:"attachments,omitempty"`
	}
)

func (g *googleMeet) event(desc Description) googleEvent {
	return googleEvent{
		Summary:     desc.Title,
		Description: desc.Description,
		Start:       &googleEventTime{DateTime: desc.StartTime.UTC().Format(time.RFC3339), TimeZone: desc.Timezone},
		End:         &googleEventTime{DateTime: desc.EndTime.UTC().Format(time.RFC3339), TimeZone: desc.Timezone},
	}
}

func (g *googleMeet) credentials(op string, ev googleEvent) (Credentials, error) {
	creds := Credentials{
		MeetingURL: ev.HangoutLink,
		MeetingID:  ev.ID,
		HostURL:    ev.HTMLLink,
	}
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType != "video" {
				continue
			}
			if creds.MeetingURL == "" {
				creds.MeetingURL = ep.URI
			}
			creds.MeetingPassword = ep.Passcode
			break
		}
	}
	if creds.MeetingURL == "" || creds.MeetingID == "" {
		return Credentials{}, &ProviderError{Provider: GoogleMeet, Op: op, Err: errMissingMeetingURL}
	}
	return creds, nil
}

func (g *googleMeet) create(ctx context.Context, desc Description, token string) (Credentials, error) {
	body := g.event(desc)
	req := &googleCreateRequest{RequestID: uuid.New().String()}
	req.ConferenceSolutionKey.Type = "hangoutsMeet"
	body.ConferenceData = &googleConferenceData{CreateRequest: req}

	var ev googleEvent
	err := g.api.do(ctx, token, call{
		op:     "create",
		method: rest.Post,
		path:   googleEventsPath,
		query:  map[string]string{googleConferenceQuery: "1"},
		in:     body,
		out:    &ev,
	})
	if err != nil {
		return Credentials{}, err
	}
	return g.credentials("create", ev)
}

func (g *googleMeet) update(ctx context.Context, meetingID string, desc Description, token string) (Credentials, error) {
	var ev googleEvent
	err := g.api.do(ctx, token, call{
		op:     "update",
		method: rest.Patch,
		path:   googleEventsPath + "/" + url.PathEscape(meetingID),
		query:  map[string]string{googleConferenceQuery: "1"},
		in:     g.event(desc),
		out:    &ev,
	})
	if err != nil {
		return Credentials{}, err
	}
	return g.credentials("update", ev)
}

func (g *googleMeet) delete(ctx context.Context, meetingID, token string) error {
	return g.api.do(ctx, token, call{
		op:     "delete",
		method: rest.Delete,
		path:   googleEventsPath + "/" + url.PathEscape(meetingID),
	})
}

// recording looks for the Meet recording Google attaches to the calendar event.
func (g *googleMeet) recording(ctx context.Context, meetingID, token string) (*Recording, error) {
	var ev googleEvent
	err := g.api.do(ctx, token, call{
		op:     "recording",
		method: rest.Get,
		path:   googleEventsPath + "/" + url.PathEscape(meetingID),
		out:    &ev,
	})
	if err != nil {
		return nil, err
	}
	for _, at := range ev.Attachments {
		if at.MimeType == googleRecordingMIME && at.FileURL != "" {
			return &Recording{RecordingURL: at.FileURL, RecordingID: at.FileID}, nil
		}
	}
	return nil, nil
}
