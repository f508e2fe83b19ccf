package behavior

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	pkghttp "github.com/BradenHooton/vigil/pkg/http"
)

// ErrLocationUnavailable is returned when no location could be resolved
var ErrLocationUnavailable = errors.New("location unavailable")

// CIDRDetector flags addresses that fall inside configured VPN or proxy ranges
type CIDRDetector struct {
	vpn   []netip.Prefix
	proxy []netip.Prefix
}

// NewCIDRDetector parses the VPN and proxy CIDR lists. Bare addresses are
// accepted as single-host prefixes.
func NewCIDRDetector(vpnRanges, proxyRanges []string) (*CIDRDetector, error) {
	vpn, err := parsePrefixes(vpnRanges)
	if err != nil {
		return nil, fmt.Errorf("invalid VPN range: %w", err)
	}
	proxy, err := parsePrefixes(proxyRanges)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy range: %w", err)
	}
	return &CIDRDetector{vpn: vpn, proxy: proxy}, nil
}

// Detect implements NetworkDetector
func (d *CIDRDetector) Detect(ip string) NetworkRisk {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return NetworkRisk{}
	}
	addr = addr.Unmap()
	return NetworkRisk{
		VPN:   containsAddr(d.vpn, addr),
		Proxy: containsAddr(d.proxy, addr),
	}
}

func parsePrefixes(ranges []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(ranges))
	for _, r := range ranges {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !strings.Contains(r, "/") {
			addr, err := netip.ParseAddr(r)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(r)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// HeaderGeoResolver reads the coarse location stamped on the request by the
// edge (CDN or load balancer). It never performs lookups of its own.
type HeaderGeoResolver struct{}

// Resolve implements GeoResolver
func (HeaderGeoResolver) Resolve(_ context.Context, _ string, headers http.Header) (Location, error) {
	country := firstHeader(headers, "X-Geo-Country", "CF-IPCountry")
	city := firstHeader(headers, "X-Geo-City", "CF-IPCity")

	// Cloudflare reports XX for unknown and T1 for Tor
	if country == "XX" || country == "T1" {
		country = ""
	}
	if country == "" && city == "" {
		return Location{}, ErrLocationUnavailable
	}
	return Location{Country: country, City: city}, nil
}

func firstHeader(headers http.Header, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(headers.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// RequestContextFromHTTP captures what the collector needs from an incoming request
func RequestContextFromHTTP(r *http.Request, ipConfig *pkghttp.IPConfig) RequestContext {
	return RequestContext{
		ClientIP:       pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Path:           r.URL.Path,
		Headers:        r.Header.Clone(),
	}
}
