// Package simple contains the default URL admission policy.
package simple

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Config tunes the admission policy.
type Config struct {
	// AllowPrivateHosts permits loopback and RFC1918 targets, useful for
	// local development against test servers.
	AllowPrivateHosts bool
	// DenyHosts lists hostnames that are never fetched. An entry matches
	// the host itself and any subdomain of it.
	DenyHosts []string
}

// Policy rejects URLs that would let callers probe internal infrastructure.
type Policy struct {
	cfg       Config
	denyHosts []string
}

// New creates a Policy from cfg.
func New(cfg Config) *Policy {
	deny := make([]string, 0, len(cfg.DenyHosts))
	for _, h := range cfg.DenyHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			deny = append(deny, h)
		}
	}
	return &Policy{cfg: cfg, denyHosts: deny}
}

// AllowURL returns an error when the URL's host is denied or resolves to a
// non-public address class. Hostnames are not resolved via DNS; only literal
// addresses and well-known local names are classified.
func (p *Policy) AllowURL(u *url.URL) error {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("url has no host")
	}
	for _, deny := range p.denyHosts {
		if host == deny || strings.HasSuffix(host, "."+deny) {
			return fmt.Errorf("host %q is denied by policy", host)
		}
	}
	if p.cfg.AllowPrivateHosts {
		return nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("host %q is not public", host)
	}
	if ip := net.ParseIP(host); ip != nil && !isPublicIP(ip) {
		return fmt.Errorf("address %q is not public", host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified():
		return false
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return false
	}
	return true
}
