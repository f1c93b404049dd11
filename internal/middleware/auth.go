package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamspace/internal/auditctx"
	iauth "github.com/charlesng35/teamspace/internal/auth"
	"github.com/charlesng35/teamspace/internal/models"
	apperrors "github.com/charlesng35/teamspace/pkg/errors"
	"github.com/charlesng35/teamspace/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxTeamIDKey = "teamID"
	CtxUserKey   = "authUser"

	// AccessTokenCookie carries the session token set by the sign-in callback.
	AccessTokenCookie = "accessToken"
)

// ErrAccountSuspended is returned for valid tokens of suspended accounts.
var ErrAccountSuspended = apperrors.New("USER_SUSPENDED", "Your account has been suspended", http.StatusForbidden)

// UserLoader loads the account referenced by a token.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Auth authenticates requests with the session token from the Authorization
// header or the accessToken cookie and loads the acting user.
func Auth(jwt *iauth.JWTService, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound {
				response.Abort(c, apperrors.ErrUnauthorized)
				return
			}
			response.Abort(c, err)
			return
		}
		if user.TeamID != claims.TeamID {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}
		if user.IsSuspended() {
			response.Abort(c, ErrAccountSuspended)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxTeamIDKey, user.TeamID)
		c.Set(CtxUserKey, user)

		ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    user.ID,
			TeamID:    user.TeamID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireAdmin rejects authenticated users that are not team administrators.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}
		if !user.IsAdmin {
			response.Abort(c, apperrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by Auth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
