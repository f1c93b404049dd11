package handlers

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/teamspace/internal/auth"
	"github.com/charlesng35/teamspace/internal/auth/providers"
	"github.com/charlesng35/teamspace/internal/middleware"
	"github.com/charlesng35/teamspace/pkg/domains"
	apperrors "github.com/charlesng35/teamspace/pkg/errors"
	"github.com/charlesng35/teamspace/pkg/logger"
	"github.com/charlesng35/teamspace/pkg/response"
)

const (
	lastSignedInCookie = "lastSignedIn"
	oauthStateCookie   = "googleState"
	oauthStateTTL      = 10 * time.Minute
)

var lastSignedInExpiry = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidState rejects callbacks whose state does not match the login cookie.
var ErrInvalidState = apperrors.New("AUTH_INVALID_STATE", "Sign-in request expired, please try again", http.StatusBadRequest)

// GoogleAuthHandler drives the Google consent redirect and callback.
type GoogleAuthHandler struct {
	signIn        *iauth.SignInManager
	secureCookies bool
	now           func() time.Time
}

// NewGoogleAuthHandler constructs the handler. secureCookies marks cookies Secure.
func NewGoogleAuthHandler(signIn *iauth.SignInManager, secureCookies bool) *GoogleAuthHandler {
	return &GoogleAuthHandler{signIn: signIn, secureCookies: secureCookies, now: time.Now}
}

// GET /auth/google
//
// The state cookie is scoped like the session cookies: sign-in may start on a team
// address while the callback always lands on the base host.
func (h *GoogleAuthHandler) Login(c *gin.Context) {
	state := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		Domain:   cookieDomain(c.Request.Host),
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, h.signIn.AuthCodeURL(state))
}

// GET /auth/google.callback
func (h *GoogleAuthHandler) Callback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.Error(c, providers.ErrMissingParameter)
		return
	}
	if !h.stateMatches(c) {
		response.Error(c, ErrInvalidState)
		return
	}
	h.clearState(c)

	result, err := h.signIn.Complete(requestContext(c), code, signInMeta(c))
	var rejection *iauth.PolicyRejection
	if errors.As(err, &rejection) {
		c.Redirect(http.StatusFound, noticeURL(h.signIn.BaseURL(), rejection.Notice))
		return
	}
	if err != nil {
		logger.WithModule("auth").Warn("google sign-in failed",
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	domain := cookieDomain(c.Request.Host)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     lastSignedInCookie,
		Value:    h.signIn.ProviderName(),
		Path:     "/",
		Domain:   domain,
		Expires:  lastSignedInExpiry,
		HttpOnly: false,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    result.Token,
		Path:     "/",
		Domain:   domain,
		Expires:  h.now().AddDate(0, 1, 0),
		HttpOnly: false,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	c.Redirect(http.StatusFound, result.TeamURL)
}

func (h *GoogleAuthHandler) stateMatches(c *gin.Context) bool {
	expected, err := c.Cookie(oauthStateCookie)
	if err != nil || expected == "" {
		return false
	}
	return c.Query("state") == expected
}

func (h *GoogleAuthHandler) clearState(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth",
		Domain:   cookieDomain(c.Request.Host),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
	})
}

// cookieDomain scopes cookies to the parent domain so that every team subdomain
// sees them. IPs and single-label hosts get host-only cookies.
func cookieDomain(host string) string {
	domain := domains.StripSubdomain(host)
	if domain == "" || net.ParseIP(domain) != nil || !strings.Contains(domain, ".") {
		return ""
	}
	return domain
}

func noticeURL(baseURL, notice string) string {
	return strings.TrimRight(baseURL, "/") + "/?notice=" + url.QueryEscape(notice)
}
