package meeting

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sendgrid/rest"
)

const (
	zoomScheduledMeeting = 2
	zoomTimeLayout       = "2006-01-02T15:04:05Z"
)

type zoom struct {
	api apiClient
}

var _ conferencer = (*zoom)(nil)

func newZoom(baseURL string, httpClient *http.Client) *zoom {
	return &zoom{api: newAPIClient(Zoom, baseURL, "Bearer", httpClient)}
}

type (
	zoomSettings struct {
		WaitingRoom    bool   `json:"waiting_room"`
		JoinBeforeHost bool   `json:"join_before_host"`
		AutoRecording  string `json:"auto_recording"`
	}

	zoomMeetingRequest struct {
		Topic     string       `json:"topic"`
		Type      int          `json:"type"`
		StartTime string       `json:"start_time"`
		Duration  int          `json:"duration"`
		Timezone  string       `json:"timezone,omitempty"`
		Agenda    string       `json:"agenda,omitempty"`
		Settings  zoomSettings `json:"settings"`
	}

	zoomMeeting struct {
		ID       flexString `json:"id"`
		JoinURL  string     `json:"join_url"`
		StartURL string     `json:"start_url"`
		Password string     `json:"password"`
		HostKey  string     `json:"host_key"`
	}

	zoomRecordings struct {
		ID             flexString `json:"id"`
		ShareURL       string     `json:"share_url"`
		Password       string     `json:"password"`
		Duration       int        `json:"duration"`
		TotalSize      int64      `json:"total_size"`
		RecordingFiles []struct {
			ID          string `json:"id"`
			PlayURL     string `json:"play_url"`
			DownloadURL string `json:"download_url"`
			FileType    string `json:"file_type"`
			FileSize    int64  `json:"file_size"`
		} `json:"recording_files"`
	}
)

func (z *zoom) request(desc Description) zoomMeetingRequest {
	autoRecording := "none"
	if desc.AutoRecord {
		autoRecording = "cloud"
	}
	return zoomMeetingRequest{
		Topic:     desc.Title,
		Type:      zoomScheduledMeeting,
		StartTime: desc.StartTime.UTC().Format(zoomTimeLayout),
		Duration:  desc.DurationMinutes(),
		Timezone:  desc.Timezone,
		Agenda:    desc.Description,
		Settings: zoomSettings{
			WaitingRoom:    desc.WaitingRoomEnabled,
			JoinBeforeHost: !desc.WaitingRoomEnabled,
			AutoRecording:  autoRecording,
		},
	}
}

func (z *zoom) credentials(op string, m zoomMeeting) (Credentials, error) {
	if m.JoinURL == "" || m.ID == "" {
		return Credentials{}, &ProviderError{Provider: Zoom, Op: op, Err: errMissingMeetingURL}
	}
	return Credentials{
		MeetingURL:      m.JoinURL,
		MeetingID:       string(m.ID),
		MeetingPassword: m.Password,
		HostKey:         m.HostKey,
		HostURL:         m.StartURL,
	}, nil
}

func (z *zoom) meetingPath(meetingID string) string {
	return "/v2/meetings/" + url.PathEscape(meetingID)
}

func (z *zoom) create(ctx context.Context, desc Description, token string) (Credentials, error) {
	var m zoomMeeting
	err := z.api.do(ctx, token, call{
		op:     "create",
		method: rest.Post,
		path:   "/v2/users/me/meetings",
		in:     z.request(desc),
		out:    &m,
	})
	if err != nil {
		return Credentials{}, err
	}
	return z.credentials("create", m)
}

// update patches the meeting then reads it back; Zoom answers PATCH with 204.
func (z *zoom) update(ctx context.Context, meetingID string, desc Description, token string) (Credentials, error) {
	err := z.api.do(ctx, token, call{
		op:     "update",
		method: rest.Patch,
		path:   z.meetingPath(meetingID),
		in:     z.request(desc),
	})
	if err != nil {
		return Credentials{}, err
	}

	var m zoomMeeting
	err = z.api.do(ctx, token, call{
		op:     "update",
		method: rest.Get,
		path:   z.meetingPath(meetingID),
		out:    &m,
	})
	if err != nil {
		return Credentials{}, err
	}
	return z.credentials("update", m)
}

func (z *zoom) delete(ctx context.Context, meetingID, token string) error {
	return z.api.do(ctx, token, call{
		op:     "delete",
		method: rest.Delete,
		path:   z.meetingPath(meetingID),
	})
}

func (z *zoom) recording(ctx context.Context, meetingID, token string) (*Recording, error) {
	var recs zoomRecordings
	err := z.api.do(ctx, token, call{
		op:     "recording",
		method: rest.Get,
		path:   z.meetingPath(meetingID) + "/recordings",
		out:    &recs,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range recs.RecordingFiles {
		if !strings.EqualFold(f.FileType, "MP4") {
			continue
		}
		rec := &Recording{
			RecordingURL:      recs.ShareURL,
			RecordingID:       f.ID,
			RecordingPassword: recs.Password,
			RecordingSize:     f.FileSize,
			RecordingDuration: recs.Duration,
		}
		if rec.RecordingURL == "" {
			rec.RecordingURL = f.PlayURL
		}
		if rec.RecordingURL == "" {
			rec.RecordingURL = f.DownloadURL
		}
		if rec.RecordingURL == "" {
			continue
		}
		return rec, nil
	}
	return nil, nil
}
