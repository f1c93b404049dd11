package providers

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/charlesng35/teamspace/pkg/errors"
)

var (
	// ErrMissingParameter reports a callback without an authorization code.
	ErrMissingParameter = apperrors.New("AUTH_MISSING_PARAMETER", "Authorization code is required", http.StatusBadRequest)
	// ErrUpstreamAuth reports a failed token exchange or profile fetch.
	ErrUpstreamAuth = apperrors.New("AUTH_UPSTREAM_ERROR", "Unable to complete sign-in with the identity provider", http.StatusBadGateway)
)

// Identity represents the claims returned from an external authentication provider.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
	HostedDomain  string
	RawClaims     map[string]any
}

// Exchanger turns an authorization code into a verified identity.
type Exchanger interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

func stringValue(claims map[string]any, key string) string {
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func boolValue(claims map[string]any, key string) bool {
	if v, ok := claims[key]; ok {
		switch val := v.(type) {
		case bool:
			return val
		case string:
			return strings.EqualFold(val, "true")
		}
	}
	return false
}
