package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

type googleStub struct {
	server       *httptest.Server
	tokenStatus  int
	profile      map[string]any
	profileDelay time.Duration
	gotCode      string
}

func newGoogleStub(t *testing.T) *googleStub {
	t.Helper()
	stub := &googleStub{
		tokenStatus: http.StatusOK,
		profile: map[string]any{
			"sub":     "10769150350006150715113082367",
			"email":   "jane@acme.com",
			"name":    "Jane Doe",
			"picture": "https://lh3.googleusercontent.com/a/photo.jpg",
			"hd":      "Acme.com",
		},
	}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			stub.gotCode = r.PostForm.Get("code")
			if stub.tokenStatus != http.StatusOK {
				w.WriteHeader(stub.tokenStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-123",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/userinfo":
			if stub.profileDelay > 0 {
				select {
				case <-time.After(stub.profileDelay):
				case <-r.Context().Done():
					return
				}
			}
			if r.Header.Get("Authorization") != "Bearer access-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(stub.profile)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *googleStub) provider(t *testing.T, timeout time.Duration) *GoogleProvider {
	t.Helper()
	p, err := NewGoogleProvider(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://teamspace.io/auth/google.callback",
		AuthURL:      s.server.URL + "/auth",
		TokenURL:     s.server.URL + "/token",
		UserInfoURL:  s.server.URL + "/userinfo",
		Timeout:      timeout,
		HTTPClient:   s.server.Client(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestNewGoogleProviderRequiresFields(t *testing.T) {
	cases := []GoogleConfig{
		{},
		{ClientID: "id"},
		{ClientID: "id", ClientSecret: "secret"},
	}
	for _, cfg := range cases {
		if _, err := NewGoogleProvider(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestGoogleAuthCodeURL(t *testing.T) {
	stub := newGoogleStub(t)
	p := stub.provider(t, time.Second)

	raw := p.AuthCodeURL("state-1")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := parsed.Query()

	if parsed.Path != "/auth" {
		t.Fatalf("unexpected path %s", parsed.Path)
	}
	expect := map[string]string{
		"client_id":     "client-id",
		"redirect_uri":  "https://teamspace.io/auth/google.callback",
		"response_type": "code",
		"access_type":   "offline",
		"prompt":        "consent",
		"state":         "state-1",
		"scope":         "https://www.googleapis.com/auth/userinfo.profile https://www.googleapis.com/auth/userinfo.email",
	}
	for key, want := range expect {
		if got := q.Get(key); got != want {
			t.Fatalf("%s: expected %q, got %q", key, want, got)
		}
	}
}

func TestGoogleExchange(t *testing.T) {
	stub := newGoogleStub(t)
	p := stub.provider(t, time.Second)

	identity, err := p.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if stub.gotCode != "auth-code" {
		t.Fatalf("token endpoint received code %q", stub.gotCode)
	}
	if identity.Provider != GoogleProviderName || identity.Subject != "10769150350006150715113082367" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.Email != "jane@acme.com" || identity.DisplayName != "Jane Doe" {
		t.Fatalf("unexpected profile %+v", identity)
	}
	if identity.AvatarURL != "https://lh3.googleusercontent.com/a/photo.jpg" {
		t.Fatalf("unexpected avatar %q", identity.AvatarURL)
	}
	if identity.HostedDomain != "acme.com" {
		t.Fatalf("expected normalised hosted domain, got %q", identity.HostedDomain)
	}
}

func TestGoogleExchangeLegacyIDField(t *testing.T) {
	stub := newGoogleStub(t)
	stub.profile = map[string]any{"id": "42", "email": "bob@gmail.com"}
	p := stub.provider(t, time.Second)

	identity, err := p.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if identity.Subject != "42" || identity.HostedDomain != "" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestGoogleExchangeErrors(t *testing.T) {
	stub := newGoogleStub(t)
	p := stub.provider(t, time.Second)

	if _, err := p.Exchange(context.Background(), " "); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected missing parameter, got %v", err)
	}

	stub.tokenStatus = http.StatusBadRequest
	if _, err := p.Exchange(context.Background(), "bad-code"); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected upstream error on token failure, got %v", err)
	}

	stub.tokenStatus = http.StatusOK
	stub.profile = map[string]any{"email": "no-id@acme.com"}
	if _, err := p.Exchange(context.Background(), "code"); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected upstream error on missing id, got %v", err)
	}
}

func TestGoogleExchangeTimeout(t *testing.T) {
	stub := newGoogleStub(t)
	stub.profileDelay = time.Second
	p := stub.provider(t, 50*time.Millisecond)

	if _, err := p.Exchange(context.Background(), "code"); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected upstream error on timeout, got %v", err)
	}
}
