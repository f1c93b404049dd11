package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/teamspace/internal/database"
	"github.com/charlesng35/teamspace/internal/models"
	apperrors "github.com/charlesng35/teamspace/pkg/errors"
	"github.com/charlesng35/teamspace/pkg/metrics"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// UserKey identifies an account: one per provider identity per team.
type UserKey struct {
	Provider       string
	ProviderUserID string
	TeamID         string
}

// UserProfile carries the profile fields copied from the identity assertion on creation.
type UserProfile struct {
	Name      string
	Email     string
	AvatarURL string
}

// UserService resolves federated identities into user accounts.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	now          func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:           db,
		auditService: auditService,
		now:          time.Now,
	}, nil
}

// FindOrCreate returns the account for key, creating it with profile and isAdmin when
// absent. Existing accounts are returned unchanged, except that isAdmin still promotes
// an existing account while its team has no admin. The boolean reports creation.
func (s *UserService) FindOrCreate(ctx context.Context, key UserKey, profile UserProfile, isAdmin bool) (*models.User, bool, error) {
	ctx = ensureContext(ctx)

	key.Provider = strings.TrimSpace(key.Provider)
	key.ProviderUserID = strings.TrimSpace(key.ProviderUserID)
	key.TeamID = strings.TrimSpace(key.TeamID)
	if key.Provider == "" || key.ProviderUserID == "" || key.TeamID == "" {
		return nil, false, apperrors.NewBadRequest("provider, provider user id and team are required")
	}

	user := &models.User{
		TeamID:         key.TeamID,
		Provider:       key.Provider,
		ProviderUserID: key.ProviderUserID,
		Name:           strings.TrimSpace(profile.Name),
		Email:          strings.ToLower(strings.TrimSpace(profile.Email)),
		AvatarURL:      stringPtr(profile.AvatarURL),
		IsAdmin:        isAdmin,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if result.Error != nil && !database.IsUniqueViolation(result.Error) {
		return nil, false, fmt.Errorf("user service: create user: %w", result.Error)
	}
	if result.Error == nil && result.RowsAffected > 0 {
		metrics.UsersProvisioned.Inc()
		return user, true, nil
	}

	var existing models.User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ? AND team_id = ?", key.Provider, key.ProviderUserID, key.TeamID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("user service: user vanished after conflicting insert: %w", err)
	}
	if err != nil {
		return nil, false, fmt.Errorf("user service: load user: %w", err)
	}
	if isAdmin && !existing.IsAdmin {
		if err := s.promoteIfNoAdmin(ctx, &existing); err != nil {
			return nil, false, err
		}
	}
	return &existing, false, nil
}

// promoteIfNoAdmin grants admin to user only while the team has none. A concurrent
// sign-in may have inserted the team's first account without the flag.
func (s *UserService) promoteIfNoAdmin(ctx context.Context, user *models.User) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Where("NOT EXISTS (SELECT 1 FROM (SELECT id FROM users WHERE team_id = ? AND is_admin = ?) AS admins)", user.TeamID, true).
		Update("is_admin", true)
	if result.Error != nil {
		return fmt.Errorf("user service: promote first admin: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		user.IsAdmin = true
	}
	return nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// UpdateSignedIn records the time and address of the latest sign-in.
func (s *UserService) UpdateSignedIn(ctx context.Context, userID, ip string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_signed_in_at": s.now().UTC(),
			"last_signed_in_ip": strings.TrimSpace(ip),
		})
	if result.Error != nil {
		return fmt.Errorf("user service: update sign-in: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
