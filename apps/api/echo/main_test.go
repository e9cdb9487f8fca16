package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mentora/mentora/apps/api/echo"
	"github.com/mentora/mentora/core"
	"github.com/mentora/mentora/core/livesession"
	"github.com/mentora/mentora/core/meeting"
	"github.com/mentora/mentora/core/user"
	"github.com/mentora/mentora/services/email"
	"github.com/mentora/mentora/storage/database/sqlx"
	"github.com/mentora/mentora/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// zoomMock is a fake Zoom API: meetings are created fine, updates fail.
type zoomMock struct {
	mu       sync.Mutex
	requests []string
}

func (z *zoomMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	z.mu.Lock()
	z.requests = append(z.requests, r.Method+" "+r.URL.Path)
	z.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/users/me/meetings":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 85746065432, "join_url": "https://zoom.us/j/85746065432", "start_url": "https://zoom.us/s/85746065432", "password": "abc123", "host_key": "112233"}`)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPatch:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code": 500, "message": "internal error"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code": 3001, "message": "not found"}`)
	}
}

func (z *zoomMock) count() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.requests)
}

type fixture struct {
	conf       *core.Config
	app        *echoapi.Server
	usrRepo    user.Repository
	sessionSvc *livesession.Service
	mailSvc    *emailsvc.ConsoleServiceMock
	zoom       *zoomMock
	logger     *testutil.Logger
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	testutil.ParseTemplates(t)
	validate, translator := testutil.NewValidator(t)

	// fake provider
	zoom := new(zoomMock)
	zoomSrv := httptest.NewServer(zoom)
	t.Cleanup(zoomSrv.Close)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	sessionRepo := sqlxrepos.NewSessionRepository(db)

	// set up services
	meetingOpts := meeting.OptionsFromConfig(conf.Meeting)
	meetingOpts.ZoomBaseURL = zoomSrv.URL
	meetingOpts.HTTPClient = zoomSrv.Client()
	meetings := meeting.NewAdapter(meetingOpts, logger)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	sessionSvc := livesession.NewService(sessionRepo, meetings, usrSvc, mailSvc, logger)

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		SessionSvc:     sessionSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = app.Close() })

	return &fixture{
		conf:       conf,
		app:        app,
		usrRepo:    usrRepo,
		sessionSvc: sessionSvc,
		mailSvc:    mailSvc,
		zoom:       zoom,
		logger:     logger,
	}
}

func (f *fixture) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(f.conf, echoapi.GetUserClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
