package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamspace/internal/models"
)

func newUserService(t *testing.T) (*UserService, *TeamService) {
	t.Helper()
	db := openServiceTestDB(t)
	auditSvc, err := NewAuditService(db)
	require.NoError(t, err)
	users, err := NewUserService(db, auditSvc)
	require.NoError(t, err)
	teams, err := NewTeamService(db, auditSvc)
	require.NoError(t, err)
	return users, teams
}

func TestUserServiceFindOrCreate(t *testing.T) {
	users, teams := newUserService(t)
	ctx := context.Background()
	team := createTeam(t, teams, "acme.com")

	first, created, err := users.FindOrCreate(ctx,
		UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: team.ID},
		UserProfile{Name: "Jane", Email: "Jane@Acme.com", AvatarURL: "https://photo/jane"},
		true,
	)
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, first.IsAdmin)
	require.Equal(t, "jane@acme.com", first.Email)

	second, created, err := users.FindOrCreate(ctx,
		UserKey{Provider: "google", ProviderUserID: "g-2", TeamID: team.ID},
		UserProfile{Name: "John", Email: "john@acme.com"},
		false,
	)
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, second.IsAdmin)
	require.Nil(t, second.AvatarURL)

	again, created, err := users.FindOrCreate(ctx,
		UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: team.ID},
		UserProfile{Name: "Jane Renamed", Email: "new@acme.com"},
		false,
	)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, "Jane", again.Name)
	require.True(t, again.IsAdmin)

	var count int64
	require.NoError(t, users.db.Model(&models.User{}).Where("team_id = ?", team.ID).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestUserServiceFindOrCreatePromotesFirstAccount(t *testing.T) {
	users, teams := newUserService(t)
	ctx := context.Background()

	// the request that created the team loses the account insert to a second
	// request that only found the team
	team, created, err := teams.FindOrCreate(ctx, TeamKey{Provider: "google", ExternalTenantID: "acme.com"}, TeamDefaults{})
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = teams.FindOrCreate(ctx, TeamKey{Provider: "google", ExternalTenantID: "acme.com"}, TeamDefaults{})
	require.NoError(t, err)
	require.False(t, created)

	key := UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: team.ID}
	loser, created, err := users.FindOrCreate(ctx, key, UserProfile{Name: "Jane"}, false)
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, loser.IsAdmin)

	winner, created, err := users.FindOrCreate(ctx, key, UserProfile{Name: "Jane"}, true)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, loser.ID, winner.ID)
	require.True(t, winner.IsAdmin)

	var admins int64
	require.NoError(t, users.db.Model(&models.User{}).Where("team_id = ? AND is_admin = ?", team.ID, true).Count(&admins).Error)
	require.Equal(t, int64(1), admins)
}

func TestUserServiceFindOrCreateKeepsExistingAdmin(t *testing.T) {
	users, teams := newUserService(t)
	ctx := context.Background()
	team := createTeam(t, teams, "acme.com")

	admin, _, err := users.FindOrCreate(ctx, UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: team.ID}, UserProfile{}, true)
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)

	member, _, err := users.FindOrCreate(ctx, UserKey{Provider: "google", ProviderUserID: "g-2", TeamID: team.ID}, UserProfile{}, false)
	require.NoError(t, err)

	again, created, err := users.FindOrCreate(ctx, UserKey{Provider: "google", ProviderUserID: "g-2", TeamID: team.ID}, UserProfile{}, true)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, member.ID, again.ID)
	require.False(t, again.IsAdmin)
}

func TestUserServiceSameIdentityDifferentTeams(t *testing.T) {
	users, teams := newUserService(t)
	ctx := context.Background()
	acme := createTeam(t, teams, "acme.com")
	other := createTeam(t, teams, "other.com")

	a, _, err := users.FindOrCreate(ctx, UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: acme.ID}, UserProfile{}, true)
	require.NoError(t, err)
	b, created, err := users.FindOrCreate(ctx, UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: other.ID}, UserProfile{}, true)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, a.ID, b.ID)
}

func TestUserServiceUpdateSignedIn(t *testing.T) {
	users, teams := newUserService(t)
	ctx := context.Background()
	team := createTeam(t, teams, "acme.com")

	user, _, err := users.FindOrCreate(ctx, UserKey{Provider: "google", ProviderUserID: "g-1", TeamID: team.ID}, UserProfile{}, true)
	require.NoError(t, err)
	require.Nil(t, user.LastSignedInAt)

	require.NoError(t, users.UpdateSignedIn(ctx, user.ID, "203.0.113.7"))

	reloaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastSignedInAt)
	require.Equal(t, "203.0.113.7", reloaded.LastSignedInIP)

	require.ErrorIs(t, users.UpdateSignedIn(ctx, "missing", "1.1.1.1"), ErrUserNotFound)

	_, err = users.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)

	var stored models.User
	require.NoError(t, users.db.First(&stored, "id = ?", user.ID).Error)
	require.True(t, stored.IsAdmin)
}
