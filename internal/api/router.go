package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/teamspace/internal/auth"
	"github.com/charlesng35/teamspace/internal/handlers"
	"github.com/charlesng35/teamspace/internal/middleware"
	"github.com/charlesng35/teamspace/internal/monitoring"
	"github.com/charlesng35/teamspace/internal/services"
)

// Dependencies bundles everything the HTTP surface needs.
type Dependencies struct {
	DB     *gorm.DB
	JWT    *iauth.JWTService
	SignIn *iauth.SignInManager
	Teams  *services.TeamService
	Users  *services.UserService
	Admin  *services.AdminService
	Audit  *services.AuditService

	// Health runs the readiness checks; nil checks the database only.
	Health *monitoring.HealthManager

	// RateStore backs the sign-in rate limit; nil uses an in-process store.
	RateStore     middleware.RateStore
	RateLimit     int
	RateWindow    time.Duration
	SecureCookies bool
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.SignIn == nil:
		return errors.New("sign-in manager must be provided")
	case d.Teams == nil || d.Users == nil || d.Admin == nil || d.Audit == nil:
		return errors.New("team, user, admin and audit services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(deps.SecureCookies))

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager(0)
		health.Register(monitoring.DatabaseCheck(deps.DB))
	}
	r.GET("/health", handlers.Health(health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerAuthRoutes(r, deps)
	registerTeamRoutes(r, deps)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerAuthRoutes(r *gin.Engine, deps Dependencies) {
	limit, window := deps.RateLimit, deps.RateWindow
	if limit == 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}

	google := handlers.NewGoogleAuthHandler(deps.SignIn, deps.SecureCookies)

	auth := r.Group("/auth")
	auth.Use(middleware.RateLimit(deps.RateStore, limit, window))
	{
		auth.GET("/google", google.Login)
		auth.GET("/google.callback", google.Callback)
	}
}

func registerTeamRoutes(r *gin.Engine, deps Dependencies) {
	teamHandler := handlers.NewTeamHandler(deps.Teams, deps.Admin, deps.Audit, deps.SignIn.BaseURL())

	team := r.Group("/api/team")
	team.Use(middleware.Auth(deps.JWT, deps.Users))
	{
		team.GET("", teamHandler.Current)

		admin := team.Group("")
		admin.Use(middleware.RequireAdmin())
		admin.POST("/subdomain", teamHandler.ClaimSubdomain)
		admin.GET("/audit", teamHandler.Audit)
		admin.POST("/users/:id/promote", teamHandler.Promote)
		admin.POST("/users/:id/demote", teamHandler.Demote)
		admin.POST("/users/:id/suspend", teamHandler.Suspend)
		admin.POST("/users/:id/activate", teamHandler.Activate)
	}
}
