package auth

import (
	"errors"
	"strings"
)

// Notice codes appended to the base URL when a sign-in is turned away.
const (
	NoticeNoHostedDomain   = "google-hd"
	NoticeDomainNotAllowed = "hd-not-allowed"
	NoticeSuspended        = "suspended"
)

var (
	// ErrNoHostedDomain rejects personal accounts that carry no hosted domain claim.
	ErrNoHostedDomain = errors.New("auth: account has no hosted domain")
	// ErrDomainNotAllowed rejects hosted domains missing from the allow-list.
	ErrDomainNotAllowed = errors.New("auth: hosted domain is not allowed")
	// ErrAccountSuspended rejects accounts suspended by a team administrator.
	ErrAccountSuspended = errors.New("auth: account is suspended")
)

// DomainPolicy gates sign-in by the provider's hosted domain claim.
type DomainPolicy struct {
	allowed map[string]struct{}
}

// NewDomainPolicy builds a policy from the allow-list. Blank entries are ignored
// and an empty list admits every hosted domain.
func NewDomainPolicy(allowed []string) *DomainPolicy {
	set := make(map[string]struct{}, len(allowed))
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		set[domain] = struct{}{}
	}
	return &DomainPolicy{allowed: set}
}

// Restricted reports whether the policy carries an allow-list.
func (p *DomainPolicy) Restricted() bool {
	return p != nil && len(p.allowed) > 0
}

// Check returns the normalised tenant key for hd or one of the rejection errors.
func (p *DomainPolicy) Check(hd string) (string, error) {
	hd = strings.ToLower(strings.TrimSpace(hd))
	if hd == "" {
		return "", ErrNoHostedDomain
	}
	if p.Restricted() {
		if _, ok := p.allowed[hd]; !ok {
			return "", ErrDomainNotAllowed
		}
	}
	return hd, nil
}

// NoticeFor maps a policy rejection to the notice code shown on the landing page.
func NoticeFor(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNoHostedDomain):
		return NoticeNoHostedDomain, true
	case errors.Is(err, ErrDomainNotAllowed):
		return NoticeDomainNotAllowed, true
	case errors.Is(err, ErrAccountSuspended):
		return NoticeSuspended, true
	default:
		return "", false
	}
}
