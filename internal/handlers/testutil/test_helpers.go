package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/teamspace/internal/api"
	iauth "github.com/charlesng35/teamspace/internal/auth"
	"github.com/charlesng35/teamspace/internal/auth/providers"
	sharedtestutil "github.com/charlesng35/teamspace/internal/database/testutil"
	"github.com/charlesng35/teamspace/internal/jobs"
	"github.com/charlesng35/teamspace/internal/middleware"
	"github.com/charlesng35/teamspace/internal/services"
	"github.com/charlesng35/teamspace/pkg/response"
)

// BaseURL is the public address used by the test environment.
const BaseURL = "https://teamspace.test"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Google *FakeGoogle
	Jobs   *SyncJobs
	Teams  *services.TeamService
	Users  *services.UserService
}

// EnvOption customises NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	allowedDomains []string
	rateLimit      int
}

// WithAllowedDomains restricts sign-in to the given hosted domains.
func WithAllowedDomains(domains ...string) EnvOption {
	return func(cfg *envConfig) {
		cfg.allowedDomains = domains
	}
}

// WithRateLimit overrides the per-client limit on the sign-in routes.
func WithRateLimit(limit int) EnvOption {
	return func(cfg *envConfig) {
		cfg.rateLimit = limit
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := envConfig{rateLimit: -1}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
	})
	require.NoError(t, err)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	teams, err := services.NewTeamService(db, audit, services.WithAvatarResolver(StaticAvatars{}))
	require.NoError(t, err)
	users, err := services.NewUserService(db, audit)
	require.NoError(t, err)
	admin, err := services.NewAdminService(db, audit)
	require.NoError(t, err)

	google := NewFakeGoogle()
	runner := &SyncJobs{}
	signIn, err := iauth.NewSignInManager(iauth.SignInConfig{
		Provider: google,
		Policy:   iauth.NewDomainPolicy(cfg.allowedDomains),
		Teams:    teams,
		Users:    users,
		Tokens:   jwtSvc,
		Avatars:  StaticAvatars{},
		Jobs:     runner,
		BaseURL:  BaseURL,
	})
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:        db,
		JWT:       jwtSvc,
		SignIn:    signIn,
		Teams:     teams,
		Users:     users,
		Admin:     admin,
		Audit:     audit,
		RateStore: middleware.NewMemoryRateStore(),
		RateLimit: cfg.rateLimit,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Google: google,
		Jobs:   runner,
		Teams:  teams,
		Users:  users,
	}
}

// FakeGoogle stands in for the Google provider, resolving codes registered by tests.
type FakeGoogle struct {
	mu         sync.Mutex
	identities map[string]providers.Identity
}

func NewFakeGoogle() *FakeGoogle {
	return &FakeGoogle{identities: map[string]providers.Identity{}}
}

// Register makes code exchangeable for identity.
func (g *FakeGoogle) Register(code string, identity providers.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if identity.Provider == "" {
		identity.Provider = providers.GoogleProviderName
	}
	g.identities[code] = identity
}

func (g *FakeGoogle) Name() string { return providers.GoogleProviderName }

func (g *FakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.google.test/o/oauth2/v2/auth?state=" + url.QueryEscape(state)
}

func (g *FakeGoogle) Exchange(_ context.Context, code string) (*providers.Identity, error) {
	if code == "" {
		return nil, providers.ErrMissingParameter
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	identity, ok := g.identities[code]
	if !ok {
		return nil, providers.ErrUpstreamAuth
	}
	return &identity, nil
}

// StaticAvatars resolves every team to a fixed logo and a predictable fallback.
type StaticAvatars struct{}

func (StaticAvatars) FallbackURL(domain, _ string) string {
	return "https://tiley.test/avatar/" + domain + ".png"
}

func (StaticAvatars) Resolve(_ context.Context, domain, _ string) string {
	return "https://logo.test/" + domain
}

// SyncJobs runs detached jobs inline so that tests observe their effects.
type SyncJobs struct {
	mu    sync.Mutex
	Names []string
	Errs  []error
}

func (s *SyncJobs) Enqueue(name string, task jobs.Task) bool {
	err := task(context.Background())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Names = append(s.Names, name)
	if err != nil {
		s.Errs = append(s.Errs, err)
	}
	return true
}

// SignInResult captures the outcome of a browser-style sign-in.
type SignInResult struct {
	Recorder *httptest.ResponseRecorder
	Cookies  map[string]*http.Cookie
	Location string
}

// SignIn walks the consent redirect and callback for code, carrying the state cookie.
func (e *Env) SignIn(code string) SignInResult {
	e.T.Helper()

	login := httptest.NewRecorder()
	e.Router.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(e.T, http.StatusFound, login.Code)

	var state *http.Cookie
	for _, cookie := range login.Result().Cookies() {
		if cookie.Name == "googleState" {
			state = cookie
		}
	}
	require.NotNil(e.T, state, "state cookie not set")

	req := httptest.NewRequest(http.MethodGet,
		"/auth/google.callback?code="+url.QueryEscape(code)+"&state="+url.QueryEscape(state.Value), nil)
	req.Host = "acme.teamspace.test"
	req.AddCookie(&http.Cookie{Name: state.Name, Value: state.Value})

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	cookies := map[string]*http.Cookie{}
	for _, cookie := range w.Result().Cookies() {
		cookies[cookie.Name] = cookie
	}
	return SignInResult{Recorder: w, Cookies: cookies, Location: w.Header().Get("Location")}
}

// MustSignIn signs in and returns the issued access token.
func (e *Env) MustSignIn(code string) string {
	e.T.Helper()
	result := e.SignIn(code)
	require.Equal(e.T, http.StatusFound, result.Recorder.Code, result.Recorder.Body.String())
	cookie, ok := result.Cookies["accessToken"]
	require.True(e.T, ok, "access token cookie not set")
	return cookie.Value
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
