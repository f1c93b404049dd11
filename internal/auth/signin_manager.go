package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/teamspace/internal/auditctx"
	"github.com/charlesng35/teamspace/internal/auth/providers"
	"github.com/charlesng35/teamspace/internal/jobs"
	"github.com/charlesng35/teamspace/internal/models"
	"github.com/charlesng35/teamspace/internal/services"
	"github.com/charlesng35/teamspace/pkg/domains"
	"github.com/charlesng35/teamspace/pkg/logger"
	"github.com/charlesng35/teamspace/pkg/metrics"
)

// Background job names scheduled by the sign-in flow.
const (
	JobTeamProvision = "team.provision"
	JobUserSignedIn  = "user.signed_in"
)

// FallbackAvatars produces the deterministic avatar a new team starts with.
type FallbackAvatars interface {
	FallbackURL(domain, teamName string) string
}

// JobRunner schedules detached work. Enqueue must not block.
type JobRunner interface {
	Enqueue(name string, task jobs.Task) bool
}

// SignInMeta describes the client completing the sign-in.
type SignInMeta struct {
	IPAddress string
	UserAgent string
}

// SignInResult is returned once the identity has been bound to a team and account.
type SignInResult struct {
	Team        *models.Team
	User        *models.User
	Token       string
	ExpiresAt   time.Time
	TeamURL     string
	TeamCreated bool
	UserCreated bool
}

// PolicyRejection reports a sign-in turned away by the domain policy. Nothing is
// persisted and the caller is expected to redirect with Notice.
type PolicyRejection struct {
	Notice string
	Domain string
	Err    error
}

func (r *PolicyRejection) Error() string {
	return fmt.Sprintf("sign-in rejected (%s): %v", r.Notice, r.Err)
}

func (r *PolicyRejection) Unwrap() error {
	return r.Err
}

// SignInConfig wires the collaborators of a SignInManager.
type SignInConfig struct {
	Provider providers.Exchanger
	Policy   *DomainPolicy
	Teams    *services.TeamService
	Users    *services.UserService
	Tokens   *JWTService
	Avatars  FallbackAvatars
	Jobs     JobRunner
	BaseURL  string
}

// SignInManager turns an authorization code into a team-bound session.
type SignInManager struct {
	provider providers.Exchanger
	policy   *DomainPolicy
	teams    *services.TeamService
	users    *services.UserService
	tokens   *JWTService
	avatars  FallbackAvatars
	jobs     JobRunner
	baseURL  string
	log      *zap.Logger
}

// NewSignInManager validates cfg and constructs the manager.
func NewSignInManager(cfg SignInConfig) (*SignInManager, error) {
	switch {
	case cfg.Provider == nil:
		return nil, errors.New("signin: provider is required")
	case cfg.Teams == nil || cfg.Users == nil:
		return nil, errors.New("signin: team and user services are required")
	case cfg.Tokens == nil:
		return nil, errors.New("signin: jwt service is required")
	case cfg.Avatars == nil:
		return nil, errors.New("signin: avatar fallback is required")
	case cfg.Jobs == nil:
		return nil, errors.New("signin: job runner is required")
	case strings.TrimSpace(cfg.BaseURL) == "":
		return nil, errors.New("signin: base url is required")
	}

	policy := cfg.Policy
	if policy == nil {
		policy = NewDomainPolicy(nil)
	}

	return &SignInManager{
		provider: cfg.Provider,
		policy:   policy,
		teams:    cfg.Teams,
		users:    cfg.Users,
		tokens:   cfg.Tokens,
		avatars:  cfg.Avatars,
		jobs:     cfg.Jobs,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		log:      logger.WithModule("signin"),
	}, nil
}

// ProviderName returns the identifier of the configured provider.
func (m *SignInManager) ProviderName() string {
	return m.provider.Name()
}

// BaseURL returns the landing address used for notices and teams without a subdomain.
func (m *SignInManager) BaseURL() string {
	return m.baseURL
}

// AuthCodeURL returns the provider consent URL for state.
func (m *SignInManager) AuthCodeURL(state string) string {
	return m.provider.AuthCodeURL(state)
}

// Complete exchanges code, applies the domain policy and finds or creates the
// team and account. A new team claims its derived subdomain before the redirect;
// a failed claim is logged and dropped. Avatar refresh and the last sign-in update
// are scheduled as detached jobs and never fail the sign-in.
func (m *SignInManager) Complete(ctx context.Context, code string, meta SignInMeta) (*SignInResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	providerName := m.provider.Name()

	identity, err := m.provider.Exchange(ctx, code)
	if err != nil {
		result := "upstream_error"
		if errors.Is(err, providers.ErrMissingParameter) {
			result = "invalid"
		}
		metrics.SignInAttempts.WithLabelValues(providerName, result).Inc()
		return nil, err
	}

	domain, err := m.policy.Check(identity.HostedDomain)
	if err != nil {
		notice, _ := NoticeFor(err)
		metrics.SignInAttempts.WithLabelValues(providerName, "rejected").Inc()
		m.log.Info("sign-in rejected by domain policy",
			zap.String("notice", notice),
			zap.String("hosted_domain", identity.HostedDomain),
			zap.String("email", identity.Email),
		)
		return nil, &PolicyRejection{Notice: notice, Domain: identity.HostedDomain, Err: err}
	}

	result, err := m.provision(ctx, identity, domain, meta)
	var rejection *PolicyRejection
	if errors.As(err, &rejection) {
		metrics.SignInAttempts.WithLabelValues(providerName, "rejected").Inc()
		return nil, err
	}
	if err != nil {
		metrics.SignInAttempts.WithLabelValues(providerName, "error").Inc()
		return nil, err
	}
	metrics.SignInAttempts.WithLabelValues(providerName, "success").Inc()
	return result, nil
}

func (m *SignInManager) provision(ctx context.Context, identity *providers.Identity, domain string, meta SignInMeta) (*SignInResult, error) {
	teamName := services.TeamNameFromDomain(domain)

	team, teamCreated, err := m.teams.FindOrCreate(ctx,
		services.TeamKey{Provider: identity.Provider, ExternalTenantID: domain},
		services.TeamDefaults{Name: teamName, AvatarURL: m.avatars.FallbackURL(domain, teamName)},
	)
	if err != nil {
		return nil, fmt.Errorf("signin: resolve team: %w", err)
	}

	user, userCreated, err := m.users.FindOrCreate(ctx,
		services.UserKey{Provider: identity.Provider, ProviderUserID: identity.Subject, TeamID: team.ID},
		services.UserProfile{Name: identity.DisplayName, Email: identity.Email, AvatarURL: identity.AvatarURL},
		teamCreated,
	)
	if err != nil {
		return nil, fmt.Errorf("signin: resolve user: %w", err)
	}

	if user.IsSuspended() {
		return nil, &PolicyRejection{Notice: NoticeSuspended, Domain: domain, Err: ErrAccountSuspended}
	}

	actor := auditctx.Actor{
		UserID:    user.ID,
		TeamID:    team.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if teamCreated {
		if _, err := m.teams.CreateFirstCollection(ctx, team, user.ID); err != nil {
			m.log.Warn("failed to seed first collection", zap.String("team_id", team.ID), zap.Error(err))
		}
		m.claimSubdomain(auditctx.WithActor(ctx, actor), team, domain)
		m.scheduleProvision(team.ID, domain, actor)
	}
	m.scheduleSignedIn(user.ID, actor)

	token, expiresAt, err := m.tokens.GenerateAccessToken(AccessTokenInput{
		UserID:   user.ID,
		TeamID:   team.ID,
		Provider: identity.Provider,
	})
	if err != nil {
		return nil, fmt.Errorf("signin: issue token: %w", err)
	}

	return &SignInResult{
		Team:        team,
		User:        user,
		Token:       token,
		ExpiresAt:   expiresAt,
		TeamURL:     domains.TeamAddress(m.baseURL, team.Subdomain),
		TeamCreated: teamCreated,
		UserCreated: userCreated,
	}, nil
}

func (m *SignInManager) claimSubdomain(ctx context.Context, team *models.Team, domain string) {
	claimed, err := m.teams.ClaimSubdomain(ctx, team.ID, services.SubdomainFromDomain(domain))
	if err != nil {
		m.log.Info("subdomain not claimed",
			zap.String("team_id", team.ID),
			zap.String("domain", domain),
			zap.Error(err),
		)
		return
	}
	team.Subdomain = claimed.Subdomain
}

func (m *SignInManager) scheduleProvision(teamID, domain string, actor auditctx.Actor) {
	queued := m.jobs.Enqueue(JobTeamProvision, func(ctx context.Context) error {
		return m.teams.RefreshAvatar(auditctx.WithActor(ctx, actor), teamID, domain)
	})
	if !queued {
		m.log.Warn("team provisioning not scheduled", zap.String("team_id", teamID))
	}
}

func (m *SignInManager) scheduleSignedIn(userID string, actor auditctx.Actor) {
	queued := m.jobs.Enqueue(JobUserSignedIn, func(ctx context.Context) error {
		return m.users.UpdateSignedIn(auditctx.WithActor(ctx, actor), userID, actor.IPAddress)
	})
	if !queued {
		m.log.Warn("last sign-in update not scheduled", zap.String("user_id", userID))
	}
}
