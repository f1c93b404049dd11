package app

import (
	"strings"

	"github.com/charlesng35/teamspace/internal/auth"
	"github.com/charlesng35/teamspace/internal/auth/providers"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// GoogleConfig converts AuthConfig into the Google provider parameters.
func (c AuthConfig) GoogleConfig() providers.GoogleConfig {
	return providers.GoogleConfig{
		ClientID:     strings.TrimSpace(c.Google.ClientID),
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
		AuthURL:      c.Google.AuthURL,
		TokenURL:     c.Google.TokenURL,
		UserInfoURL:  c.Google.UserInfoURL,
		Timeout:      c.Google.Timeout,
	}
}

// DomainPolicy builds the hosted domain allow-list.
func (c AuthConfig) DomainPolicy() *auth.DomainPolicy {
	return auth.NewDomainPolicy(c.Google.AllowedDomains)
}
