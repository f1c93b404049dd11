package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// GoogleProviderName is stored on teams and users created through Google sign-in.
	GoogleProviderName = "google"

	DefaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	defaultGoogleTimeout = 10 * time.Second
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// GoogleConfig configures the Google provider. Endpoint URLs default to Google's
// public endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// GoogleProvider exchanges Google authorization codes for profile identities.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	userInfo    *oidc.Provider
	client      *http.Client
	timeout     time.Duration
}

// NewGoogleProvider validates cfg and builds the provider. No network calls are made.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google provider: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google provider: client secret is required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("google provider: redirect url is required")
	}

	authURL := firstNonEmpty(cfg.AuthURL, DefaultGoogleAuthURL)
	tokenURL := firstNonEmpty(cfg.TokenURL, DefaultGoogleTokenURL)
	userInfoURL := firstNonEmpty(cfg.UserInfoURL, DefaultGoogleUserInfoURL)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGoogleTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	providerCfg := &oidc.ProviderConfig{
		IssuerURL:   "https://accounts.google.com",
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
	}

	return &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       googleScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfo: providerCfg.NewProvider(context.Background()),
		client:   client,
		timeout:  timeout,
	}, nil
}

// Name returns the provider identifier.
func (p *GoogleProvider) Name() string {
	return GoogleProviderName
}

// AuthCodeURL builds the consent URL with offline access and a forced consent prompt.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades code for an access token and fetches the user's profile.
// Nothing is persisted.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingParameter
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = oidc.ClientContext(ctx, p.client)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, ErrUpstreamAuth.WithInternal(fmt.Errorf("google provider: exchange failed: %w", err))
	}

	info, err := p.userInfo.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, ErrUpstreamAuth.WithInternal(fmt.Errorf("google provider: fetch profile: %w", err))
	}

	var claims map[string]any
	if err := info.Claims(&claims); err != nil {
		return nil, ErrUpstreamAuth.WithInternal(fmt.Errorf("google provider: decode profile: %w", err))
	}

	subject := firstNonEmpty(stringValue(claims, "id"), stringValue(claims, "sub"))
	if subject == "" {
		return nil, ErrUpstreamAuth.WithInternal(errors.New("google provider: profile has no id"))
	}

	return &Identity{
		Provider:      GoogleProviderName,
		Subject:       subject,
		Email:         stringValue(claims, "email"),
		EmailVerified: boolValue(claims, "email_verified") || boolValue(claims, "verified_email"),
		DisplayName:   stringValue(claims, "name"),
		AvatarURL:     stringValue(claims, "picture"),
		HostedDomain:  strings.ToLower(stringValue(claims, "hd")),
		RawClaims:     claims,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
