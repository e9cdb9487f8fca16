package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fallbackPwdRegex = regexp.MustCompile(`^[0-9A-F]{8}$`)

type logEntry struct {
	level string
	msg   string
}

type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *testLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *testLogger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *testLogger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *testLogger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *testLogger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *testLogger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// providerMock records the requests received by a fake provider API.
type providerMock struct {
	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

func (pm *providerMock) record(r *http.Request) recordedRequest {
	rr := recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rr.body)
	}
	pm.mu.Lock()
	pm.requests = append(pm.requests, rr)
	pm.mu.Unlock()
	return rr
}

func (pm *providerMock) hits() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.requests)
}

func (pm *providerMock) last() recordedRequest {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.requests[len(pm.requests)-1]
}

type routes map[string]func(w http.ResponseWriter, rr recordedRequest) // {"METHOD /path": handler}

func newTestAdapter(t *testing.T, rts routes) (*Adapter, *providerMock, *testLogger) {
	pm := new(providerMock)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := pm.record(r)
		h, ok := rts[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
			return
		}
		h(w, rr)
	}))
	t.Cleanup(srv.Close)

	logger := new(testLogger)
	adapter := NewAdapter(Options{
		GoogleBaseURL:   srv.URL,
		ZoomBaseURL:     srv.URL,
		ZohoBaseURL:     srv.URL,
		FallbackBaseURL: "https://live.mentora.test",
		HTTPClient:      srv.Client(),
	}, logger)
	return adapter, pm, logger
}

func writeJSON(status int, body string) func(w http.ResponseWriter, rr recordedRequest) {
	return func(w http.ResponseWriter, _ recordedRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func testDescription(p Provider) Description {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return Description{
		Title:              "Intro to JS",
		Description:        "Variables & functions",
		StartTime:          start,
		EndTime:            start.Add(time.Hour),
		Duration:           60,
		Timezone:           "Africa/Kinshasa",
		Provider:           p,
		WaitingRoomEnabled: true,
		AutoRecord:         true,
	}
}

var tokenSettings = Settings{AccessToken: "tok"}

func assertFallback(t *testing.T, creds Credentials) {
	t.Helper()
	assert.NotEmpty(t, creds.MeetingURL)
	assert.NotEmpty(t, creds.MeetingID)
	assert.True(t, IsFallbackMeeting(creds.MeetingID), "meeting id %q", creds.MeetingID)
	assert.Equal(t, "https://live.mentora.test/"+creds.MeetingID, creds.MeetingURL)
	assert.Regexp(t, fallbackPwdRegex, creds.MeetingPassword)
}

func TestAdapter_CreateMeeting_zoom(t *testing.T) {
	adapter, pm, logger := newTestAdapter(t, routes{
		"POST /v2/users/me/meetings": writeJSON(http.StatusCreated, `{
			"id": 85746065432,
			"join_url": "https://zoom.us/j/85746065432?pwd=abc",
			"start_url": "https://zoom.us/s/85746065432?zak=xyz",
			"password": "Xy12ab",
			"host_key": "123456"
		}`),
	})

	creds := adapter.CreateMeeting(context.Background(), testDescription(Zoom), tokenSettings)

	assert.Equal(t, Credentials{
		MeetingURL:      "https://zoom.us/j/85746065432?pwd=abc",
		MeetingID:       "85746065432",
		MeetingPassword: "Xy12ab",
		HostKey:         "123456",
		HostURL:         "https://zoom.us/s/85746065432?zak=xyz",
	}, creds)
	assert.Zero(t, logger.count("warn"))

	req := pm.last()
	assert.Equal(t, "Bearer tok", req.auth)
	assert.Equal(t, "Intro to JS", req.body["topic"])
	assert.Equal(t, "2025-06-01T10:00:00Z", req.body["start_time"])
	assert.EqualValues(t, 60, req.body["duration"])
	settings, ok := req.body["settings"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, settings["waiting_room"])
	assert.Equal(t, "cloud", settings["auto_recording"])
}

func TestAdapter_CreateMeeting_googleMeet(t *testing.T) {
	adapter, pm, _ := newTestAdapter(t, routes{
		"POST " + googleEventsPath: writeJSON(http.StatusOK, `{
			"id": "evt123",
			"htmlLink": "https://calendar.google.com/event?eid=evt123",
			"hangoutLink": "https://meet.google.com/abc-defg-hij",
			"conferenceData": {"entryPoints": [{"entryPointType": "video", "uri": "https://meet.google.com/abc-defg-hij"}]}
		}`),
	})

	creds := adapter.CreateMeeting(context.Background(), testDescription(GoogleMeet), tokenSettings)

	assert.Equal(t, Credentials{
		MeetingURL: "https://meet.google.com/abc-defg-hij",
		MeetingID:  "evt123",
		HostURL:    "https://calendar.google.com/event?eid=evt123",
	}, creds)

	req := pm.last()
	assert.Equal(t, "conferenceDataVersion=1", req.query)
	assert.Equal(t, "Bearer tok", req.auth)
	conf, ok := req.body["conferenceData"].(map[string]interface{})
	require.True(t, ok)
	createReq, ok := conf["createRequest"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, createReq["requestId"])
	assert.Equal(t, map[string]interface{}{"type": "hangoutsMeet"}, createReq["conferenceSolutionKey"])
}

func TestAdapter_CreateMeeting_zoho(t *testing.T) {
	adapter, pm, _ := newTestAdapter(t, routes{
		"POST " + zohoMeetingsPath: writeJSON(http.StatusOK, `{"session": {
			"meetingKey": 1029384756,
			"joinLink": "https://meeting.zoho.com/join?key=1029384756",
			"startLink": "https://meeting.zoho.com/meeting/start?key=1029384756",
			"pwd": "secret"
		}}`),
	})

	creds := adapter.CreateMeeting(context.Background(), testDescription(Zoho), tokenSettings)

	assert.Equal(t, Credentials{
		MeetingURL:      "https://meeting.zoho.com/join?key=1029384756",
		MeetingID:       "1029384756",
		MeetingPassword: "secret",
		HostURL:         "https://meeting.zoho.com/meeting/start?key=1029384756",
	}, creds)

	req := pm.last()
	assert.Equal(t, "Zoho-oauthtoken tok", req.auth)
	session, ok := req.body["session"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Jun 01, 2025 11:00 AM", session["startTime"]) // Africa/Kinshasa is UTC+1
	assert.EqualValues(t, 3600000, session["duration"])
}

func TestAdapter_CreateMeeting_fallback(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		settings Settings
		rts      routes
		wantHits int
	}{
		{name: "missing access token", provider: Zoom, settings: Settings{}},
		{name: "unknown provider", provider: Provider("teams"), settings: tokenSettings},
		{
			name: "provider error", provider: Zoom, settings: tokenSettings, wantHits: 1,
			rts: routes{"POST /v2/users/me/meetings": writeJSON(http.StatusInternalServerError, `{"message":"boom"}`)},
		},
		{
			name: "unauthorized", provider: GoogleMeet, settings: tokenSettings, wantHits: 1,
			rts: routes{"POST " + googleEventsPath: writeJSON(http.StatusUnauthorized, `{"error":"invalid_token"}`)},
		},
		{
			name: "invalid json", provider: Zoho, settings: tokenSettings, wantHits: 1,
			rts: routes{"POST " + zohoMeetingsPath: writeJSON(http.StatusOK, `{"session": `)},
		},
		{
			name: "no meeting url", provider: Zoom, settings: tokenSettings, wantHits: 1,
			rts: routes{"POST /v2/users/me/meetings": writeJSON(http.StatusCreated, `{"id": 1}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, pm, logger := newTestAdapter(t, tt.rts)

			creds := adapter.CreateMeeting(context.Background(), testDescription(tt.provider), tt.settings)

			assertFallback(t, creds)
			assert.Equal(t, tt.wantHits, pm.hits())
			assert.Equal(t, 1, logger.count("warn"))
		})
	}

	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		logger := new(testLogger)
		adapter := NewAdapter(Options{
			GoogleBaseURL:   srv.URL,
			ZoomBaseURL:     srv.URL,
			ZohoBaseURL:     srv.URL,
			FallbackBaseURL: "https://live.mentora.test",
		}, logger)

		for _, p := range Providers {
			assertFallback(t, adapter.CreateMeeting(context.Background(), testDescription(p), tokenSettings))
		}
		assert.Equal(t, len(Providers), logger.count("warn"))
	})
}

func TestAdapter_UpdateMeeting(t *testing.T) {
	t.Run("zoom patches then reads the meeting back", func(t *testing.T) {
		adapter, pm, _ := newTestAdapter(t, routes{
			"PATCH /v2/meetings/123": func(w http.ResponseWriter, _ recordedRequest) { w.WriteHeader(http.StatusNoContent) },
			"GET /v2/meetings/123":   writeJSON(http.StatusOK, `{"id": 123, "join_url": "https://zoom.us/j/123", "password": "p"}`),
		})

		desc := testDescription(Zoom)
		desc.Title = "Advanced JS"
		creds, err := adapter.UpdateMeeting(context.Background(), "123", desc, tokenSettings)

		require.NoError(t, err)
		assert.Equal(t, Credentials{MeetingURL: "https://zoom.us/j/123", MeetingID: "123", MeetingPassword: "p"}, creds)
		require.Equal(t, 2, pm.hits())
		assert.Equal(t, "Advanced JS", pm.requests[0].body["topic"])
	})

	t.Run("google meet", func(t *testing.T) {
		adapter, pm, _ := newTestAdapter(t, routes{
			"PATCH " + googleEventsPath + "/evt123": writeJSON(http.StatusOK, `{"id": "evt123", "hangoutLink": "https://meet.google.com/abc"}`),
		})

		creds, err := adapter.UpdateMeeting(context.Background(), "evt123", testDescription(GoogleMeet), tokenSettings)

		require.NoError(t, err)
		assert.Equal(t, "https://meet.google.com/abc", creds.MeetingURL)
		assert.Equal(t, "conferenceDataVersion=1", pm.last().query)
	})

	t.Run("zoho", func(t *testing.T) {
		adapter, _, _ := newTestAdapter(t, routes{
			"PUT " + zohoMeetingsPath + "/42": writeJSON(http.StatusOK, `{"session": {"meetingKey": "42", "joinLink": "https://meeting.zoho.com/join?key=42"}}`),
		})

		creds, err := adapter.UpdateMeeting(context.Background(), "42", testDescription(Zoho), tokenSettings)

		require.NoError(t, err)
		assert.Equal(t, Credentials{MeetingURL: "https://meeting.zoho.com/join?key=42", MeetingID: "42"}, creds)
	})

	t.Run("provider errors propagate", func(t *testing.T) {
		adapter, _, logger := newTestAdapter(t, routes{
			"PATCH /v2/meetings/123": writeJSON(http.StatusBadRequest, `{"message":"invalid"}`),
		})

		_, err := adapter.UpdateMeeting(context.Background(), "123", testDescription(Zoom), tokenSettings)

		require.Error(t, err)
		var perr *ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
		assert.Equal(t, Zoom, perr.Provider)
		assert.Equal(t, "update", perr.Op)
		assert.Zero(t, logger.count("warn"))
	})

	t.Run("missing access token", func(t *testing.T) {
		adapter, pm, _ := newTestAdapter(t, nil)

		_, err := adapter.UpdateMeeting(context.Background(), "123", testDescription(Zoom), Settings{})

		assert.Equal(t, ErrMissingAccessToken, errors.Cause(err))
		assert.Zero(t, pm.hits())
	})

	t.Run("unknown provider", func(t *testing.T) {
		adapter, _, _ := newTestAdapter(t, nil)

		_, err := adapter.UpdateMeeting(context.Background(), "123", testDescription("teams"), tokenSettings)

		assert.Equal(t, ErrUnknownProvider, errors.Cause(err))
	})
}

func TestAdapter_DeleteMeeting(t *testing.T) {
	tests := []struct {
		name      string
		meetingID string
		provider  Provider
		settings  Settings
		rts       routes
		wantHits  int
		wantWarns int
	}{
		{
			name: "zoom", meetingID: "123", provider: Zoom, settings: tokenSettings, wantHits: 1,
			rts: routes{"DELETE /v2/meetings/123": func(w http.ResponseWriter, _ recordedRequest) { w.WriteHeader(http.StatusNoContent) }},
		},
		{
			name: "google meet", meetingID: "evt1", provider: GoogleMeet, settings: tokenSettings, wantHits: 1,
			rts: routes{"DELETE " + googleEventsPath + "/evt1": func(w http.ResponseWriter, _ recordedRequest) { w.WriteHeader(http.StatusNoContent) }},
		},
		{
			name: "zoho", meetingID: "42", provider: Zoho, settings: tokenSettings, wantHits: 1,
			rts: routes{"DELETE " + zohoMeetingsPath + "/42": writeJSON(http.StatusOK, `{}`)},
		},
		{
			name: "provider rejects", meetingID: "123", provider: Zoom, settings: tokenSettings, wantHits: 1, wantWarns: 1,
			rts: routes{"DELETE /v2/meetings/123": writeJSON(http.StatusInternalServerError, `{}`)},
		},
		{name: "meeting not found", meetingID: "404", provider: Zoom, settings: tokenSettings, wantHits: 1, wantWarns: 1},
		{name: "missing access token", meetingID: "123", provider: Zoom, wantWarns: 1},
		{name: "unknown provider", meetingID: "123", provider: "teams", settings: tokenSettings, wantWarns: 1},
		{name: "fallback meeting", meetingID: "live-1748772000000", provider: Zoom, settings: tokenSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, pm, logger := newTestAdapter(t, tt.rts)

			assert.NotPanics(t, func() {
				adapter.DeleteMeeting(context.Background(), tt.meetingID, tt.provider, tt.settings)
			})
			assert.Equal(t, tt.wantHits, pm.hits())
			assert.Equal(t, tt.wantWarns, logger.count("warn"))
		})
	}
}

func TestAdapter_GetMeetingRecording(t *testing.T) {
	tests := []struct {
		name      string
		meetingID string
		provider  Provider
		settings  Settings
		rts       routes
		want      *Recording
	}{
		{
			name: "zoom", meetingID: "123", provider: Zoom, settings: tokenSettings,
			rts: routes{"GET /v2/meetings/123/recordings": writeJSON(http.StatusOK, `{
				"id": 123,
				"share_url": "https://zoom.us/rec/share/abc",
				"password": "recpwd",
				"duration": 58,
				"recording_files": [
					{"id": "chat1", "file_type": "CHAT", "play_url": "https://zoom.us/rec/chat", "file_size": 10},
					{"id": "mp4-1", "file_type": "MP4", "play_url": "https://zoom.us/rec/play/mp4", "file_size": 1048576}
				]
			}`)},
			want: &Recording{
				RecordingURL:      "https://zoom.us/rec/share/abc",
				RecordingID:       "mp4-1",
				RecordingPassword: "recpwd",
				RecordingSize:     1048576,
				RecordingDuration: 58,
			},
		},
		{
			name: "google meet", meetingID: "evt1", provider: GoogleMeet, settings: tokenSettings,
			rts: routes{"GET " + googleEventsPath + "/evt1": writeJSON(http.StatusOK, `{
				"id": "evt1",
				"attachments": [
					{"fileId": "doc", "fileUrl": "https://docs.google.com/notes", "mimeType": "application/vnd.google-apps.document"},
					{"fileId": "vid", "fileUrl": "https://drive.google.com/file/d/vid", "mimeType": "video/mp4"}
				]
			}`)},
			want: &Recording{RecordingURL: "https://drive.google.com/file/d/vid", RecordingID: "vid"},
		},
		{
			name: "zoho", meetingID: "42", provider: Zoho, settings: tokenSettings,
			rts: routes{"GET " + zohoMeetingsPath + "/42/recordings": writeJSON(http.StatusOK, `{"recordings": [
				{"recordingId": 7, "playUrl": "https://meeting.zoho.com/rec/7", "fileSize": 2048, "duration": 1800000}
			]}`)},
			want: &Recording{RecordingURL: "https://meeting.zoho.com/rec/7", RecordingID: "7", RecordingSize: 2048, RecordingDuration: 30},
		},
		{name: "not found", meetingID: "123", provider: Zoom, settings: tokenSettings},
		{
			name: "no recording entry", meetingID: "123", provider: Zoom, settings: tokenSettings,
			rts: routes{"GET /v2/meetings/123/recordings": writeJSON(http.StatusOK, `{"id": 123, "recording_files": []}`)},
		},
		{
			name: "empty body", meetingID: "42", provider: Zoho, settings: tokenSettings,
			rts: routes{"GET " + zohoMeetingsPath + "/42/recordings": writeJSON(http.StatusOK, ``)},
		},
		{
			name: "provider error", meetingID: "evt1", provider: GoogleMeet, settings: tokenSettings,
			rts: routes{"GET " + googleEventsPath + "/evt1": writeJSON(http.StatusBadGateway, `oops`)},
		},
		{name: "missing access token", meetingID: "123", provider: Zoom},
		{name: "fallback meeting", meetingID: "live-1", provider: Zoom, settings: tokenSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _, _ := newTestAdapter(t, tt.rts)

			var got *Recording
			assert.NotPanics(t, func() {
				got = adapter.GetMeetingRecording(context.Background(), tt.meetingID, tt.provider, tt.settings)
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapter_GenerateMeetingCredentials(t *testing.T) {
	adapter, pm, _ := newTestAdapter(t, nil)

	defer func(orig func() time.Time) { NowFunc = orig }(NowFunc)
	NowFunc = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }

	creds := adapter.GenerateMeetingCredentials(testDescription(Zoom))
	assert.Equal(t, "live-1748772000000", creds.MeetingID)
	assert.Equal(t, "https://live.mentora.test/live-1748772000000", creds.MeetingURL)
	assert.Empty(t, creds.HostKey)
	assert.Zero(t, pm.hits())

	for i := 0; i < 200; i++ {
		pwd := adapter.GenerateMeetingCredentials(testDescription(Zoom)).MeetingPassword
		require.Regexp(t, fallbackPwdRegex, pwd, fmt.Sprintf("iteration %d", i))
	}
}

func TestParseProvider(t *testing.T) {
	for _, p := range Providers {
		got, err := ParseProvider(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParseProvider("teams")
	assert.Equal(t, ErrUnknownProvider, errors.Cause(err))
}
