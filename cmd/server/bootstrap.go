package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/teamspace/internal/api"
	"github.com/charlesng35/teamspace/internal/app"
	"github.com/charlesng35/teamspace/internal/app/maintenance"
	iauth "github.com/charlesng35/teamspace/internal/auth"
	"github.com/charlesng35/teamspace/internal/auth/providers"
	"github.com/charlesng35/teamspace/internal/avatar"
	"github.com/charlesng35/teamspace/internal/cache"
	"github.com/charlesng35/teamspace/internal/database"
	"github.com/charlesng35/teamspace/internal/jobs"
	"github.com/charlesng35/teamspace/internal/middleware"
	"github.com/charlesng35/teamspace/internal/monitoring"
	"github.com/charlesng35/teamspace/internal/services"
	"github.com/charlesng35/teamspace/internal/storage"
	"github.com/charlesng35/teamspace/pkg/logger"
)

const avatarFetchTimeout = 15 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Jobs    *jobs.Queue
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var probeCache cache.Store
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to in-process cache", zap.Error(err))
		} else {
			probeCache = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	if probeCache == nil {
		probeCache = cache.NewMemoryStore(cfg.Cache.MemoryConfig())
	}

	resolver := avatar.NewResolver(cfg.Avatar.ResolverConfig(), nil, probeCache)
	teamOpts := []services.TeamServiceOption{services.WithAvatarResolver(resolver)}

	var sweeper maintenance.AvatarSweeper
	if cfg.Storage.S3.Enabled {
		store, err := storage.NewS3Store(ctx, cfg.Storage.S3Config())
		if err != nil {
			return nil, fmt.Errorf("initialise object storage: %w", err)
		}
		rehoster := avatar.NewRehoster(store, &http.Client{Timeout: avatarFetchTimeout}, cfg.Avatar.MaxBytes)
		teamOpts = append(teamOpts, services.WithAvatarRehoster(rehoster))
		log.Info("avatar re-hosting enabled", zap.String("endpoint", store.PublicEndpoint()))
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}
	teamSvc, err := services.NewTeamService(stack.DB, auditSvc, teamOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise team service: %w", err)
	}
	userSvc, err := services.NewUserService(stack.DB, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	adminSvc, err := services.NewAdminService(stack.DB, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise admin service: %w", err)
	}
	if cfg.Storage.S3.Enabled {
		sweeper = teamSvc
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	google, err := providers.NewGoogleProvider(cfg.Auth.GoogleConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise google provider: %w", err)
	}

	stack.Jobs = jobs.NewQueue(cfg.Jobs.QueueConfig())

	signIn, err := iauth.NewSignInManager(iauth.SignInConfig{
		Provider: google,
		Policy:   cfg.Auth.DomainPolicy(),
		Teams:    teamSvc,
		Users:    userSvc,
		Tokens:   jwtSvc,
		Avatars:  resolver,
		Jobs:     stack.Jobs,
		BaseURL:  cfg.Server.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise sign-in manager: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(auditSvc, sweeper,
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
		maintenance.WithAvatarSchedule(cfg.Maintenance.AvatarSweepSchedule),
		maintenance.WithAvatarBatch(cfg.Maintenance.AvatarSweepBatch),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	health := monitoring.NewHealthManager(0)
	health.Register(monitoring.DatabaseCheck(stack.DB))

	var rateStore middleware.RateStore
	if stack.Redis != nil {
		rateStore = middleware.NewRedisRateStore(stack.Redis)
		health.Register(monitoring.RedisCheck(stack.Redis))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:            stack.DB,
		JWT:           jwtSvc,
		SignIn:        signIn,
		Teams:         teamSvc,
		Users:         userSvc,
		Admin:         adminSvc,
		Audit:         auditSvc,
		Health:        health,
		RateStore:     rateStore,
		RateLimit:     cfg.Auth.RateLimit.Requests,
		RateWindow:    cfg.Auth.RateLimit.Window,
		SecureCookies: cfg.Server.SecureCookies,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops the scheduler, drains queued jobs, and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Jobs != nil {
		if err := s.Jobs.Shutdown(ctx); err != nil {
			log.Warn("job queue shutdown", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		closeDatabase(db, zap.NewNop())
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
