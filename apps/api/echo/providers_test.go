package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mentora/mentora/apps/api/echo"
	"github.com/mentora/mentora/core/meeting"
	"github.com/mentora/mentora/core/user"
	"github.com/mentora/mentora/tests"
)

func Test_providerSettingsApi(t *testing.T) {
	f := setup(t)
	mo := testutil.CreateUser(t, f.usrRepo, "Mo Mentor", "mo", "mo@mentora.app", "", []string{user.RoleMentor}, true)
	maxi := testutil.CreateUser(t, f.usrRepo, "Max Mentor", "max", "max@mentora.app", "", []string{user.RoleMentor}, true)
	sam := testutil.CreateUser(t, f.usrRepo, "Sam Student", "sam", "sam@mentora.app", "", nil, true)
	moToken := f.getToken(t, mo)

	f.run(t, []httpTest{
		{name: "auth required", path: "/api/video-providers/zoom/settings", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "mentor required", path: "/api/video-providers/zoom/settings", token: f.getToken(t, sam),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown provider", path: "/api/video-providers/skype/settings", token: moToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"provider": "unknown video provider"}),
		},
		{
			name: "not configured", path: "/api/video-providers/zoom/settings", token: moToken,
			wantData: marchallObj(t, echoapi.ProviderSettingsResponse{Provider: meeting.Zoom}),
		},
		{
			name: "blank token", method: http.MethodPut, path: "/api/video-providers/zoom/settings", token: moToken,
			body: []byte(`{"access_token": "   "}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("save", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/video-providers/ZOOM/settings", moToken, []byte(`{"access_token": "eyJhbGciOi.zoom-token-1234"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res echoapi.ProviderSettingsResponse
		unmarshal(t, rec, &res)
		assert.Equal(t, meeting.Zoom, res.Provider)
		assert.True(t, res.Configured)
		assert.Equal(t, "****1234", res.AccessToken)
		require.NotNil(t, res.UpdatedAt)

		rec = f.do(http.MethodGet, "/api/video-providers/zoom/settings", moToken)
		checkCodeAndData(t, httpTest{wantData: marchallObj(t, res)}, rec)

		// settings are per mentor & per provider
		rec = f.do(http.MethodGet, "/api/video-providers/zoom/settings", f.getToken(t, maxi))
		checkCodeAndData(t, httpTest{wantData: marchallObj(t, echoapi.ProviderSettingsResponse{Provider: meeting.Zoom})}, rec)
		rec = f.do(http.MethodGet, "/api/video-providers/zoho/settings", moToken)
		checkCodeAndData(t, httpTest{wantData: marchallObj(t, echoapi.ProviderSettingsResponse{Provider: meeting.Zoho})}, rec)
	})
}
