package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	testutil "github.com/charlesng35/teamspace/internal/database/testutil"
	"github.com/charlesng35/teamspace/internal/models"
	"github.com/charlesng35/teamspace/internal/services"
)

type sweeperStub struct {
	calls   int
	limit   int
	updated int
	err     error
}

func (s *sweeperStub) SweepAvatars(_ context.Context, limit int) (int, error) {
	s.calls++
	s.limit = limit
	return s.updated, s.err
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	oldLog := models.AuditLog{
		BaseModel: models.BaseModel{CreatedAt: time.Now().AddDate(0, 0, -40)},
		Action:    "user.promote",
		Result:    "success",
	}
	require.NoError(t, db.Create(&oldLog).Error)
	require.NoError(t, audit.Log(context.Background(), services.AuditEntry{Action: "user.demote", Result: "success"}))

	sweeper := &sweeperStub{updated: 2}
	cleaner := NewCleaner(audit, sweeper, WithAuditRetentionDays(30), WithAvatarBatch(25))

	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.Equal(t, 1, sweeper.calls)
	require.Equal(t, 25, sweeper.limit)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCleanerRunOnceCollectsErrors(t *testing.T) {
	sweepErr := multierr.Combine(errors.New("team a: fetch"), errors.New("team b: fetch"))
	sweeper := &sweeperStub{updated: 1, err: sweepErr}
	cleaner := NewCleaner(nil, sweeper)

	err := cleaner.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
}

func TestCleanerStartSchedulesEnabledJobs(t *testing.T) {
	c := cron.New()
	cleaner := NewCleaner(nil, &sweeperStub{}, WithCron(c), WithAvatarSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, c.Entries(), 1)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	cleaner := NewCleaner(nil, &sweeperStub{}, WithCron(cron.New()), WithAvatarSchedule("not a schedule"))
	require.Error(t, cleaner.Start())
}

func TestCleanerWithoutJobs(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
