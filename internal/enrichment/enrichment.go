// Package enrichment derives transport-level facts about an incoming
// request: the real client IP behind forwarding proxies, optional GeoIP
// location, and parsed user-agent details.
package enrichment

import (
	"net"
	"strings"
)

// UnknownIP is recorded when no client address can be derived at all.
const UnknownIP = "unknown"

// Enricher provides event enrichment
type Enricher struct {
	geoIP *GeoIP
}

// New creates a new Enricher. A missing or unreadable GeoIP database is
// not an error; geo lookups simply return nothing.
func New(geoipPath string) *Enricher {
	geoIP, _ := NewGeoIP(geoipPath)
	return &Enricher{geoIP: geoIP}
}

// Lookup returns geolocation for an IP, or nil when no GeoIP database is
// loaded or the address is unresolvable.
func (e *Enricher) Lookup(ip string) *GeoResult {
	if e.geoIP == nil {
		return nil
	}
	return e.geoIP.Lookup(ip)
}

// Close releases the GeoIP database handle.
func (e *Enricher) Close() error {
	if e.geoIP != nil {
		return e.geoIP.Close()
	}
	return nil
}

// ExtractClientIP gets the real client IP from request headers.
// Precedence: first X-Forwarded-For entry, then X-Real-IP, then the
// direct connection address, then the "unknown" sentinel.
func ExtractClientIP(remoteAddr string, headers map[string]string) string {
	if xff, ok := headers["X-Forwarded-For"]; ok && xff != "" {
		// First IP in the list is the original client
		parts := strings.Split(xff, ",")
		if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
			return strings.TrimSpace(parts[0])
		}
	}

	if xri, ok := headers["X-Real-IP"]; ok && xri != "" {
		return xri
	}

	if remoteAddr == "" {
		return UnknownIP
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
