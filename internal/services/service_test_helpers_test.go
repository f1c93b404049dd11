package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/teamspace/internal/database/testutil"
	"github.com/charlesng35/teamspace/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

type fakeRehoster struct {
	mu       sync.Mutex
	endpoint string
	fail     map[string]error
	calls    []string
}

func (f *fakeRehoster) Endpoint() string { return f.endpoint }

func (f *fakeRehoster) IsHosted(url string) bool {
	return strings.HasPrefix(url, f.endpoint)
}

func (f *fakeRehoster) Rehost(_ context.Context, teamID, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.fail[url]; ok {
		return "", err
	}
	return f.endpoint + "/avatars/" + teamID + "/copy", nil
}

type fakeResolver struct {
	url string
}

func (f fakeResolver) Resolve(context.Context, string, string) string { return f.url }

var errRehost = errors.New("rehost failed")

func createTeam(t *testing.T, svc *TeamService, domain string) *models.Team {
	t.Helper()
	team, created, err := svc.FindOrCreate(context.Background(), TeamKey{Provider: "google", ExternalTenantID: domain}, TeamDefaults{})
	require.NoError(t, err)
	require.True(t, created)
	return team
}
