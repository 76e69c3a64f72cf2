package scrape

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// The agent fetches URLs sourced from model output or user input, so every
// target is treated as attacker-influenced: only public http/https hosts are
// reachable.

const maxURLLength = 2048

var allowedSchemes = map[string]struct{}{"http": {}, "https": {}}

var blockedHosts = map[string]struct{}{
	"localhost":                {},
	"127.0.0.1":                {},
	"0.0.0.0":                  {},
	"::1":                      {},
	"169.254.169.254":          {}, // AWS metadata
	"metadata.google.internal": {}, // GCP metadata
}

// ValidateURL rejects malformed, non-http(s), loopback, link-local metadata
// and private-network targets before any fetch is attempted.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("url exceeds maximum length of %d characters", maxURLLength)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url format: %w", err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("url must include a scheme (http:// or https://)")
	}
	if _, ok := allowedSchemes[strings.ToLower(parsed.Scheme)]; !ok {
		return fmt.Errorf("url scheme must be http or https, got: %s", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("url must include a valid domain")
	}
	if _, ok := blockedHosts[host]; ok {
		return fmt.Errorf("access to %s is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("access to private address ranges is not allowed")
		}
	}
	return nil
}
