package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/teamspace/internal/database/testutil"
	"github.com/charlesng35/teamspace/internal/monitoring"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthManagerAllUp(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	manager := monitoring.NewHealthManager(time.Second)
	manager.Register(monitoring.DatabaseCheck(db))
	manager.Register(monitoring.RedisCheck(pingerFunc(func(context.Context) error { return nil })))

	report := manager.Evaluate(context.Background())
	require.True(t, report.Healthy())
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
}

func TestHealthManagerNonCriticalFailureDegrades(t *testing.T) {
	manager := monitoring.NewHealthManager(time.Second)
	manager.Register(monitoring.RedisCheck(pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	report := manager.Evaluate(context.Background())
	require.True(t, report.Healthy())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Equal(t, "connection refused", report.Checks[0].Details)
}

func TestHealthManagerCriticalFailure(t *testing.T) {
	manager := monitoring.NewHealthManager(time.Second)
	manager.Register(monitoring.DatabaseCheck(nil))
	manager.Register(monitoring.RedisCheck(nil))

	report := manager.Evaluate(context.Background())
	require.False(t, report.Healthy())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[1].Status)
}

func TestHealthManagerTimeoutAndPanic(t *testing.T) {
	manager := monitoring.NewHealthManager(20 * time.Millisecond)
	manager.Register(monitoring.Check{
		Name:     "slow",
		Critical: true,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	manager.Register(monitoring.Check{
		Name:     "broken",
		Critical: true,
		Run:      func(context.Context) error { panic("boom") },
	})
	manager.Register(monitoring.Check{Name: "ignored"})

	report := manager.Evaluate(context.Background())
	require.Len(t, report.Checks, 2)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[0].Status)
	require.Equal(t, monitoring.StatusDown, report.Checks[1].Status)
	require.Equal(t, "panic recovered", report.Checks[1].Details)
	require.False(t, report.Healthy())
}
