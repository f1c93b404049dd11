// Package domains holds host name helpers shared by the sign-in flow and the
// team address logic.
package domains

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// ReservedSubdomains may never be claimed by a team.
var ReservedSubdomains = []string{
	"about", "account", "admin", "advertising", "api", "app", "assets",
	"archive", "beta", "billing", "blog", "cache", "cdn", "code",
	"community", "dashboard", "developer", "developers", "forum", "help",
	"home", "http", "https", "imap", "localhost", "mail", "mobile", "news",
	"newsletter", "ns1", "ns2", "ns3", "ns4", "password", "profile",
	"sandbox", "script", "scripts", "setup", "signin", "signup", "smtp",
	"support", "status", "static", "stats", "test", "update", "updates",
	"ws", "wss", "web", "websockets", "www", "www1", "www2", "www3", "www4",
}

var (
	reserved     = toSet(ReservedSubdomains)
	labelPattern = regexp.MustCompile(`^[a-z\d-]+$`)
)

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// IsReservedSubdomain reports whether label is on the reserved list.
func IsReservedSubdomain(label string) bool {
	_, ok := reserved[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// IsSubdomainLabel reports whether label only uses lowercase alphanumerics and dashes.
func IsSubdomainLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// FirstLabel returns the left-most label of a host name: "acme.co.uk" -> "acme".
func FirstLabel(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if i := strings.IndexByte(domain, '.'); i >= 0 {
		return domain[:i]
	}
	return domain
}

// StripSubdomain reduces a request host name to the parent domain used for cookies.
// "acme.example.com" -> "example.com"; IPs and single-label hosts are returned as-is.
func StripSubdomain(hostname string) string {
	host := strings.TrimSpace(hostname)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return host
	}

	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// TeamAddress composes the public address of a team. Without a subdomain the base
// address is returned unchanged (minus any trailing slash).
func TeamAddress(baseURL string, subdomain *string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if subdomain == nil || strings.TrimSpace(*subdomain) == "" {
		return base
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return base
	}
	parsed.Host = strings.TrimSpace(*subdomain) + "." + parsed.Host
	return strings.TrimRight(parsed.String(), "/")
}
