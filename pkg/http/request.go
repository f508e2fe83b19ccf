package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
)

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies

	once     sync.Once
	prefixes []netip.Prefix
}

func (c *IPConfig) trusted() []netip.Prefix {
	c.once.Do(func() {
		for _, cidr := range c.TrustedProxies {
			p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
			if err != nil {
				continue // Skip invalid CIDR ranges
			}
			c.prefixes = append(c.prefixes, p.Masked())
		}
	})
	return c.prefixes
}

func (c *IPConfig) isTrusted(addr netip.Addr) bool {
	for _, p := range c.trusted() {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the address of the client that sent the request.
// Forwarding headers are honoured only when the direct peer is a trusted
// proxy. X-Forwarded-For is walked right to left, skipping further trusted
// hops, so a client cannot spoof its address by prepending entries.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote := getRemoteAddr(r)

	peer, err := netip.ParseAddr(remote)
	if err != nil || config == nil || !config.isTrusted(peer.Unmap()) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !config.isTrusted(addr.Unmap()) {
				return addr.String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.String()
		}
	}

	return remote
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
