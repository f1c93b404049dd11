package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/teamspace/internal/database"
	"github.com/charlesng35/teamspace/internal/models"
	"github.com/charlesng35/teamspace/pkg/domains"
	apperrors "github.com/charlesng35/teamspace/pkg/errors"
	"github.com/charlesng35/teamspace/pkg/logger"
	"github.com/charlesng35/teamspace/pkg/metrics"
	"github.com/charlesng35/teamspace/pkg/validator"
)

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)
	// ErrSubdomainInvalid rejects subdomains failing the naming rules.
	ErrSubdomainInvalid = apperrors.New("TEAM_SUBDOMAIN_INVALID", "Subdomain must be 4-32 lowercase letters, digits or dashes and not reserved", http.StatusBadRequest)
	// ErrSubdomainConflict signals the subdomain is already claimed by another team.
	ErrSubdomainConflict = apperrors.New("TEAM_SUBDOMAIN_TAKEN", "Subdomain is already in use", http.StatusConflict)
)

const (
	firstCollectionName        = "General"
	firstCollectionDescription = "Your first Collection"
)

// TeamKey identifies a team bound to a federated provider.
type TeamKey struct {
	Provider         string
	ExternalTenantID string
}

// TeamDefaults seeds a team on creation only.
type TeamDefaults struct {
	Name      string
	AvatarURL string
}

// AvatarRehoster copies remote avatars into the application's object storage.
type AvatarRehoster interface {
	Endpoint() string
	IsHosted(url string) bool
	Rehost(ctx context.Context, teamID, url string) (string, error)
}

// AvatarResolver picks an avatar for a tenant domain.
type AvatarResolver interface {
	Resolve(ctx context.Context, domain, teamName string) string
}

// TeamServiceOption customises a TeamService.
type TeamServiceOption func(*TeamService)

// WithAvatarRehoster enables re-hosting of team avatars on save.
func WithAvatarRehoster(r AvatarRehoster) TeamServiceOption {
	return func(s *TeamService) {
		s.rehoster = r
	}
}

// WithAvatarResolver sets the resolver used by RefreshAvatar.
func WithAvatarResolver(r AvatarResolver) TeamServiceOption {
	return func(s *TeamService) {
		s.resolver = r
	}
}

// TeamService resolves tenants and manages their mutable attributes.
type TeamService struct {
	db           *gorm.DB
	auditService *AuditService
	rehoster     AvatarRehoster
	resolver     AvatarResolver
	log          *zap.Logger
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, auditService *AuditService, opts ...TeamServiceOption) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	svc := &TeamService{
		db:           db,
		auditService: auditService,
		log:          logger.WithModule("teams"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TeamNameFromDomain derives a display name from a domain: "acme.com" -> "Acme".
func TeamNameFromDomain(domain string) string {
	return capitalize(domains.FirstLabel(domain))
}

// SubdomainFromDomain derives the subdomain candidate from a domain: "acme.com" -> "acme".
func SubdomainFromDomain(domain string) string {
	return domains.FirstLabel(domain)
}

// FindOrCreate returns the team for key, creating it from defaults when absent.
// Concurrent callers racing on the same key all receive the single stored row.
func (s *TeamService) FindOrCreate(ctx context.Context, key TeamKey, defaults TeamDefaults) (*models.Team, bool, error) {
	ctx = ensureContext(ctx)

	provider := strings.TrimSpace(key.Provider)
	tenant := strings.ToLower(strings.TrimSpace(key.ExternalTenantID))
	if provider == "" || tenant == "" {
		return nil, false, apperrors.NewBadRequest("team provider and tenant id are required")
	}

	name := strings.TrimSpace(defaults.Name)
	if name == "" {
		name = TeamNameFromDomain(tenant)
	}

	team := &models.Team{
		Name:             name,
		Provider:         provider,
		ExternalTenantID: tenant,
		AvatarURL:        stringPtr(defaults.AvatarURL),
		Sharing:          true,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(team)
	if result.Error != nil && !database.IsUniqueViolation(result.Error) {
		return nil, false, fmt.Errorf("team service: create team: %w", result.Error)
	}
	if result.Error == nil && result.RowsAffected > 0 {
		metrics.TeamsProvisioned.Inc()
		return team, true, nil
	}

	var existing models.Team
	err := s.db.WithContext(ctx).
		Where("provider = ? AND external_tenant_id = ?", provider, tenant).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("team service: team vanished after conflicting insert: %w", err)
	}
	if err != nil {
		return nil, false, fmt.Errorf("team service: load team: %w", err)
	}
	return &existing, false, nil
}

// GetByID loads a team.
func (s *TeamService) GetByID(ctx context.Context, id string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load team: %w", err)
	}
	return &team, nil
}

// CreateFirstCollection seeds the default collection of a new team.
func (s *TeamService) CreateFirstCollection(ctx context.Context, team *models.Team, creatorID string) (*models.Collection, error) {
	ctx = ensureContext(ctx)

	if team == nil || team.ID == "" {
		return nil, apperrors.NewBadRequest("team is required")
	}

	collection := &models.Collection{
		Name:        firstCollectionName,
		Description: firstCollectionDescription,
		Type:        models.CollectionTypeAtlas,
		TeamID:      team.ID,
		CreatorID:   creatorID,
	}
	if err := s.db.WithContext(ctx).Create(collection).Error; err != nil {
		return nil, fmt.Errorf("team service: create first collection: %w", err)
	}
	return collection, nil
}

// ValidateSubdomain checks the naming rules without touching the store.
func ValidateSubdomain(candidate string) error {
	input := struct {
		Subdomain string `json:"subdomain" validate:"required,min=4,max=32,lowercase,subdomain,notreserved"`
	}{Subdomain: candidate}

	if err := validator.ValidateStruct(input); err != nil {
		return ErrSubdomainInvalid.WithInternal(err)
	}
	return nil
}

// ClaimSubdomain validates and stores candidate as the team's subdomain. On failure
// the stored value is left as it was. Only the subdomain column is written; avatars
// are left to UpdateAvatar and RefreshAvatar.
func (s *TeamService) ClaimSubdomain(ctx context.Context, teamID, candidate string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	candidate = strings.TrimSpace(candidate)
	if err := ValidateSubdomain(candidate); err != nil {
		s.auditSubdomain(ctx, teamID, candidate, "failure")
		return nil, err
	}

	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Subdomain != nil && *team.Subdomain == candidate {
		return team, nil
	}

	team.Subdomain = &candidate
	if err := s.db.WithContext(ctx).Model(team).Select("subdomain").Updates(team).Error; err != nil {
		s.auditSubdomain(ctx, teamID, candidate, "failure")
		if database.IsUniqueViolation(err) {
			return nil, ErrSubdomainConflict.WithInternal(err)
		}
		return nil, fmt.Errorf("team service: claim subdomain: %w", err)
	}

	s.auditSubdomain(ctx, teamID, candidate, "success")
	return team, nil
}

func (s *TeamService) auditSubdomain(ctx context.Context, teamID, candidate, result string) {
	recordAudit(s.auditService, ctx, AuditEntry{
		TeamID:   teamID,
		Action:   "team.subdomain.claim",
		Resource: teamID,
		Result:   result,
		Metadata: map[string]any{"subdomain": candidate},
	})
}

// UpdateAvatar stores a new avatar URL, re-hosting it first when possible.
func (s *TeamService) UpdateAvatar(ctx context.Context, teamID, url string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	team.AvatarURL = stringPtr(url)
	if err := s.save(ctx, team, "avatar_url"); err != nil {
		return nil, fmt.Errorf("team service: update avatar: %w", err)
	}
	return team, nil
}

// RefreshAvatar resolves the avatar for the team's domain and saves it.
func (s *TeamService) RefreshAvatar(ctx context.Context, teamID, domain string) error {
	ctx = ensureContext(ctx)

	if s.resolver == nil {
		return errors.New("team service: avatar resolver not configured")
	}
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return err
	}

	url := s.resolver.Resolve(ctx, domain, team.Name)
	if url == "" || url == team.Avatar() {
		// still give an unhosted avatar a chance to move into storage
		return s.save(ctx, team)
	}
	team.AvatarURL = &url
	return s.save(ctx, team, "avatar_url")
}

// SweepAvatars re-hosts up to limit avatars that still point outside object storage.
// It returns the number of teams updated and every individual failure.
func (s *TeamService) SweepAvatars(ctx context.Context, limit int) (int, error) {
	ctx = ensureContext(ctx)

	if s.rehoster == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).
		Where("avatar_url IS NOT NULL AND avatar_url <> ''")
	if endpoint := s.rehoster.Endpoint(); endpoint != "" {
		query = query.Where("avatar_url NOT LIKE ?", endpoint+"%")
	}

	var teams []models.Team
	if err := query.Order("updated_at ASC").Limit(limit).Find(&teams).Error; err != nil {
		return 0, fmt.Errorf("team service: list unhosted avatars: %w", err)
	}

	var (
		errs    error
		updated int
	)
	for i := range teams {
		team := &teams[i]
		changed, err := s.rehostAvatar(ctx, team)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("team %s: %w", team.ID, err))
			continue
		}
		if !changed {
			continue
		}
		if err := s.db.WithContext(ctx).Model(team).Select("avatar_url").Updates(team).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("team %s: %w", team.ID, err))
			continue
		}
		updated++
	}
	return updated, errs
}

// save persists the named columns of team. Any avatar that does not live in object
// storage yet is re-hosted first; re-hosting failures are logged and the current URL
// is kept so that a later save retries.
func (s *TeamService) save(ctx context.Context, team *models.Team, columns ...string) error {
	changed, err := s.rehostAvatar(ctx, team)
	if err != nil {
		s.log.Warn("avatar rehost failed, keeping current url",
			zap.String("team_id", team.ID),
			zap.String("avatar_url", team.Avatar()),
			zap.Error(err),
		)
	}
	if changed {
		columns = appendUnique(columns, "avatar_url")
	}
	if len(columns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(team).Select(columns).Updates(team).Error
}

func (s *TeamService) rehostAvatar(ctx context.Context, team *models.Team) (bool, error) {
	current := team.Avatar()
	if s.rehoster == nil || current == "" || s.rehoster.IsHosted(current) {
		return false, nil
	}

	hosted, err := s.rehoster.Rehost(ctx, team.ID, current)
	if err != nil {
		return false, err
	}
	team.AvatarURL = &hosted
	return true, nil
}
