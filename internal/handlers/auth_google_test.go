package handlers_test

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamspace/internal/auth/providers"
	"github.com/charlesng35/teamspace/internal/handlers/testutil"
	"github.com/charlesng35/teamspace/internal/models"
)

func registerAcme(env *testutil.Env) {
	env.Google.Register("jane", providers.Identity{
		Subject:      "g-jane",
		Email:        "jane@acme.com",
		DisplayName:  "Jane",
		AvatarURL:    "https://lh3.test/jane.png",
		HostedDomain: "acme.com",
	})
	env.Google.Register("joe", providers.Identity{
		Subject:      "g-joe",
		Email:        "joe@acme.com",
		DisplayName:  "Joe",
		HostedDomain: "acme.com",
	})
}

func TestGoogleLoginRedirects(t *testing.T) {
	env := testutil.NewEnv(t)

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://accounts.google.test/"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "googleState", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Contains(t, w.Header().Get("Location"), "state="+cookies[0].Value)
}

func TestGoogleCallbackProvisionsTeam(t *testing.T) {
	env := testutil.NewEnv(t)
	registerAcme(env)

	result := env.SignIn("jane")
	require.Equal(t, http.StatusFound, result.Recorder.Code, result.Recorder.Body.String())
	require.Equal(t, "https://acme.teamspace.test", result.Location)

	marker := result.Cookies["lastSignedIn"]
	require.NotNil(t, marker)
	require.Equal(t, "google", marker.Value)
	require.Equal(t, "teamspace.test", marker.Domain)
	require.False(t, marker.HttpOnly)
	require.Equal(t, 2100, marker.Expires.Year())

	access := result.Cookies["accessToken"]
	require.NotNil(t, access)
	require.Equal(t, "teamspace.test", access.Domain)
	require.False(t, access.HttpOnly)
	require.WithinDuration(t, time.Now().AddDate(0, 1, 0), access.Expires, time.Minute)

	claims, err := env.JWT.ValidateAccessToken(access.Value)
	require.NoError(t, err)

	user, err := env.Users.GetByID(t.Context(), claims.UserID)
	require.NoError(t, err)
	require.True(t, user.IsAdmin)

	again := env.SignIn("jane")
	require.Equal(t, http.StatusFound, again.Recorder.Code)
	require.Equal(t, "https://acme.teamspace.test", again.Location)

	var teams int64
	require.NoError(t, env.DB.Model(&models.Team{}).Count(&teams).Error)
	require.Equal(t, int64(1), teams)
}

func TestGoogleSignInStartedOnTeamAddress(t *testing.T) {
	env := testutil.NewEnv(t)
	registerAcme(env)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	loginURL, err := url.Parse("https://acme.teamspace.test/auth/google")
	require.NoError(t, err)
	login := httptest.NewRequest(http.MethodGet, loginURL.String(), nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, login)
	require.Equal(t, http.StatusFound, w.Code)
	jar.SetCookies(loginURL, w.Result().Cookies())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	callbackURL, err := url.Parse(testutil.BaseURL + "/auth/google.callback?code=jane&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	cookies := jar.Cookies(callbackURL)
	require.Len(t, cookies, 1)

	callback := httptest.NewRequest(http.MethodGet, callbackURL.String(), nil)
	for _, cookie := range cookies {
		callback.AddCookie(cookie)
	}
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, callback)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(t, "https://acme.teamspace.test", w.Header().Get("Location"))

	var cleared *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "googleState" {
			cleared = cookie
		}
	}
	require.NotNil(t, cleared)
	require.Equal(t, "teamspace.test", cleared.Domain)
	require.Negative(t, cleared.MaxAge)
}

func TestGoogleCallbackErrors(t *testing.T) {
	env := testutil.NewEnv(t)
	registerAcme(env)

	t.Run("missing code", func(t *testing.T) {
		w := env.Request(http.MethodGet, "/auth/google.callback", nil, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := testutil.DecodeResponse(t, w)
		require.Equal(t, "AUTH_MISSING_PARAMETER", resp.Error.Code)
	})

	t.Run("state mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/google.callback?code=jane&state=forged", nil)
		req.AddCookie(&http.Cookie{Name: "googleState", Value: "expected"})
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "AUTH_INVALID_STATE", testutil.DecodeResponse(t, w).Error.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		result := env.SignIn("revoked")
		require.Equal(t, http.StatusBadGateway, result.Recorder.Code)
		require.Equal(t, "AUTH_UPSTREAM_ERROR", testutil.DecodeResponse(t, result.Recorder).Error.Code)
		require.NotContains(t, result.Cookies, "accessToken")
	})
}

func TestGoogleCallbackPolicyNotices(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithAllowedDomains("acme.com"))
	registerAcme(env)
	env.Google.Register("personal", providers.Identity{Subject: "g-p", Email: "p@gmail.com"})
	env.Google.Register("globex", providers.Identity{Subject: "g-g", Email: "g@globex.com", HostedDomain: "globex.com"})

	personal := env.SignIn("personal")
	require.Equal(t, http.StatusFound, personal.Recorder.Code)
	require.Equal(t, testutil.BaseURL+"/?notice=google-hd", personal.Location)
	require.NotContains(t, personal.Cookies, "accessToken")

	globex := env.SignIn("globex")
	require.Equal(t, http.StatusFound, globex.Recorder.Code)
	require.Equal(t, testutil.BaseURL+"/?notice=hd-not-allowed", globex.Location)

	var teams int64
	require.NoError(t, env.DB.Model(&models.Team{}).Count(&teams).Error)
	require.Zero(t, teams)

	allowed := env.SignIn("jane")
	require.Equal(t, http.StatusFound, allowed.Recorder.Code)
}

func TestGoogleRoutesRateLimited(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(2))

	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodGet, "/auth/google", nil, "")
		require.Equal(t, http.StatusFound, w.Code)
	}
	w := env.Request(http.MethodGet, "/auth/google", nil, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
