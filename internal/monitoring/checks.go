package monitoring

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Pinger is implemented by the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the primary database. It is critical.
func DatabaseCheck(db *gorm.DB) Check {
	return Check{
		Name:     "database",
		Critical: true,
		Run: func(ctx context.Context) error {
			if db == nil {
				return errors.New("database not configured")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// RedisCheck pings the shared cache. Without Redis the service falls back to
// in-process caches, so the check is not critical.
func RedisCheck(client Pinger) Check {
	return Check{
		Name: "redis",
		Run: func(ctx context.Context) error {
			if client == nil {
				return errors.New("redis unavailable")
			}
			return client.Ping(ctx)
		},
	}
}
