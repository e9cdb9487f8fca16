package meeting

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sendgrid/rest"
)

const (
	zohoMeetingsPath = "/api/v2/meetings"
	zohoTimeLayout   = "Jan 02, 2006 03:04 PM"
)

type zoho struct {
	api apiClient
}

var _ conferencer = (*zoho)(nil)

func newZoho(baseURL string, httpClient *http.Client) *zoho {
	return &zoho{api: newAPIClient(Zoho, baseURL, "Zoho-oauthtoken", httpClient)}
}

type (
	zohoSession struct {
		Topic      string     `json:"topic,omitempty"`
		Agenda     string     `json:"agenda,omitempty"`
		StartTime  string     `json:"startTime,omitempty"`
		Duration   int64      `json:"duration,omitempty"` // milliseconds
		Timezone   string     `json:"timezone,omitempty"`
		MeetingKey flexString `json:"meetingKey,omitempty"`
		JoinLink   string     `json:"joinLink,omitempty"`
		StartLink  string     `json:"startLink,omitempty"`
		Password   string     `json:"pwd,omitempty"`
	}

	zohoEnvelope struct {
		Session zohoSession `json:"session"`
	}

	zohoRecordings struct {
		Recordings []struct {
			RecordingID flexString `json:"recordingId"`
			PlayURL     string     `json:"playUrl"`
			DownloadURL string     `json:"downloadUrl"`
			FileSize    int64      `json:"fileSize"`
			Duration    int64      `json:"duration"` // milliseconds
			Password    string     `json:"password"`
		} `json:"recordings"`
	}
)

func (z *zoho) envelope(desc Description) zohoEnvelope {
	return zohoEnvelope{Session: zohoSession{
		Topic:     desc.Title,
		Agenda:    desc.Description,
		StartTime: desc.StartTime.In(desc.Location()).Format(zohoTimeLayout),
		Duration:  int64(desc.DurationMinutes()) * int64(time.Minute/time.Millisecond),
		Timezone:  desc.Location().String(),
	}}
}

func (z *zoho) credentials(op string, env zohoEnvelope) (Credentials, error) {
	s := env.Session
	if s.JoinLink == "" || s.MeetingKey == "" {
		return Credentials{}, &ProviderError{Provider: Zoho, Op: op, Err: errMissingMeetingURL}
	}
	return Credentials{
		MeetingURL:      s.JoinLink,
		MeetingID:       string(s.MeetingKey),
		MeetingPassword: s.Password,
		HostURL:         s.StartLink,
	}, nil
}

func (z *zoho) meetingPath(meetingKey string) string {
	return zohoMeetingsPath + "/" + url.PathEscape(meetingKey)
}

func (z *zoho) create(ctx context.Context, desc Description, token string) (Credentials, error) {
	var env zohoEnvelope
	err := z.api.do(ctx, token, call{
		op:     "create",
		method: rest.Post,
		path:   zohoMeetingsPath,
		in:     z.envelope(desc),
		out:    &env,
	})
	if err != nil {
		return Credentials{}, err
	}
	return z.credentials("create", env)
}

func (z *zoho) update(ctx context.Context, meetingID string, desc Description, token string) (Credentials, error) {
	var env zohoEnvelope
	err := z.api.do(ctx, token, call{
		op:     "update",
		method: rest.Put,
		path:   z.meetingPath(meetingID),
		in:     z.envelope(desc),
		out:    &env,
	})
	if err != nil {
		return Credentials{}, err
	}
	return z.credentials("update", env)
}

func (z *zoho) delete(ctx context.Context, meetingID, token string) error {
	return z.api.do(ctx, token, call{
		op:     "delete",
		method: rest.Delete,
		path:   z.meetingPath(meetingID),
	})
}

func (z *zoho) recording(ctx context.Context, meetingID, token string) (*Recording, error) {
	var recs zohoRecordings
	err := z.api.do(ctx, token, call{
		op:     "recording",
		method: rest.Get,
		path:   z.meetingPath(meetingID) + "/recordings",
		out:    &recs,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range recs.Recordings {
		recURL := r.PlayURL
		if recURL == "" {
			recURL = r.DownloadURL
		}
		if recURL == "" {
			continue
		}
		return &Recording{
			RecordingURL:      recURL,
			RecordingID:       string(r.RecordingID),
			RecordingPassword: r.Password,
			RecordingSize:     r.FileSize,
			RecordingDuration: int(time.Duration(r.Duration) * time.Millisecond / time.Minute),
		}, nil
	}
	return nil, nil
}
