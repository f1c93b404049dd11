// Package avatar resolves team avatars and re-hosts remote images in object storage.
package avatar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/charlesng35/teamspace/internal/cache"
	"github.com/charlesng35/teamspace/pkg/logger"
	"github.com/charlesng35/teamspace/pkg/metrics"
)

const (
	DefaultLogoBaseURL     = "https://logo.clearbit.com"
	DefaultFallbackBaseURL = "https://tiley.herokuapp.com"

	defaultProbeTimeout = 3 * time.Second
	defaultCacheTTL     = 24 * time.Hour

	probeHit  = "1"
	probeMiss = "0"
)

// Config configures the logo and generated-avatar services.
type Config struct {
	LogoBaseURL     string
	FallbackBaseURL string
	ProbeTimeout    time.Duration
	CacheTTL        time.Duration
}

// Resolver picks a team avatar: the domain's logo when the logo service knows it,
// a generated avatar otherwise.
type Resolver struct {
	cfg    Config
	client *http.Client
	cache  cache.Store
}

// NewResolver constructs a Resolver. client and store may be nil.
func NewResolver(cfg Config, client *http.Client, store cache.Store) *Resolver {
	if cfg.LogoBaseURL == "" {
		cfg.LogoBaseURL = DefaultLogoBaseURL
	}
	if cfg.FallbackBaseURL == "" {
		cfg.FallbackBaseURL = DefaultFallbackBaseURL
	}
	cfg.LogoBaseURL = strings.TrimRight(cfg.LogoBaseURL, "/")
	cfg.FallbackBaseURL = strings.TrimRight(cfg.FallbackBaseURL, "/")
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{cfg: cfg, client: client, cache: store}
}

// FallbackURL returns the generated avatar for a domain. The result only depends on
// its inputs.
func (r *Resolver) FallbackURL(domain, teamName string) string {
	sum := sha256.Sum256([]byte(domain))
	return r.cfg.FallbackBaseURL + "/avatar/" + hex.EncodeToString(sum[:]) + "/" + firstLetter(teamName) + ".png"
}

// LogoURL returns the logo service address for a domain.
func (r *Resolver) LogoURL(domain string) string {
	return r.cfg.LogoBaseURL + "/" + domain
}

// Resolve probes the logo service and falls back to the generated avatar on any
// non-200 response or error.
func (r *Resolver) Resolve(ctx context.Context, domain, teamName string) string {
	if r.hasLogo(ctx, domain) {
		return r.LogoURL(domain)
	}
	return r.FallbackURL(domain, teamName)
}

func (r *Resolver) hasLogo(ctx context.Context, domain string) bool {
	log := logger.WithModule("avatar").With(zap.String("domain", domain))
	key := "avatar:logo:" + domain

	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx, key); err != nil {
			log.Debug("logo probe cache read failed", zap.Error(err))
		} else if ok {
			metrics.AvatarProbes.WithLabelValues("cached").Inc()
			return string(cached) == probeHit
		}
	}

	found := r.probe(ctx, domain)
	if found {
		metrics.AvatarProbes.WithLabelValues("logo").Inc()
	} else {
		metrics.AvatarProbes.WithLabelValues("fallback").Inc()
	}

	if r.cache != nil {
		value := probeMiss
		if found {
			value = probeHit
		}
		if err := r.cache.Set(ctx, key, []byte(value), r.cfg.CacheTTL); err != nil {
			log.Debug("logo probe cache write failed", zap.Error(err))
		}
	}
	return found
}

func (r *Resolver) probe(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.LogoURL(domain), nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		logger.WithModule("avatar").Debug("logo probe failed", zap.String("domain", domain), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func firstLetter(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "_"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(r)
}
