package behavior

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

const (
	HeaderDeviceFingerprint = "X-Device-Fingerprint"
	HeaderSessionID         = "X-Session-ID"
)

// RequestContext is the raw request information the collector works from
type RequestContext struct {
	ClientIP       string
	UserAgent      string
	AcceptLanguage string
	Path           string
	Headers        http.Header
}

// Location is a coarse, externally resolved location
type Location struct {
	Country string
	City    string
}

// NetworkRisk carries the VPN/proxy verdicts of an external detector
type NetworkRisk struct {
	VPN   bool
	Proxy bool
}

// GeoResolver resolves a client address to a coarse location
type GeoResolver interface {
	Resolve(ctx context.Context, ip string, headers http.Header) (Location, error)
}

// NetworkDetector flags VPN and proxy egress addresses
type NetworkDetector interface {
	Detect(ip string) NetworkRisk
}

// Collector builds behavior events from request context and identity
type Collector struct {
	geo      GeoResolver
	detector NetworkDetector
	now      func() time.Time
}

// NewCollector creates a Collector. Either collaborator may be nil, in which
// case the corresponding fields are left empty or false.
func NewCollector(geo GeoResolver, detector NetworkDetector) *Collector {
	return &Collector{
		geo:      geo,
		detector: detector,
		now:      time.Now,
	}
}

// Collect builds a login event stamped with the current time
func (c *Collector) Collect(ctx context.Context, req RequestContext, userID int64, username string) (*models.BehaviorEvent, error) {
	return c.CollectAt(ctx, req, userID, username, c.now())
}

// CollectAt builds an event for an occurrence at the given time. Only missing
// identity is an error; every optional attribute degrades to empty or Unknown.
func (c *Collector) CollectAt(ctx context.Context, req RequestContext, userID int64, username string, at time.Time) (*models.BehaviorEvent, error) {
	username = strings.TrimSpace(username)
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrValidation)
	}

	at = at.UTC()
	ip := normalizeIP(req.ClientIP)
	deviceType, os, browser := ClassifyUserAgent(req.UserAgent)

	event := &models.BehaviorEvent{
		UserID:            userID,
		Username:          username,
		Timestamp:         at,
		Hour:              at.Hour(),
		DayOfWeek:         models.DayOfWeekMondayZero(at),
		IPAddress:         ip,
		IPPrefix:          IPPrefix(ip),
		DeviceFingerprint: deviceFingerprint(req),
		DeviceType:        deviceType,
		OS:                os,
		Browser:           browser,
		Resource:          req.Path,
		Action:            models.ActionLogin,
		SessionID:         sessionID(req),
	}

	if c.geo != nil && ip != "" {
		if loc, err := c.geo.Resolve(ctx, ip, req.Headers); err == nil {
			event.LocationCountry = strings.TrimSpace(loc.Country)
			event.LocationCity = strings.TrimSpace(loc.City)
		}
	}

	if c.detector != nil && ip != "" {
		risk := c.detector.Detect(ip)
		event.VPNDetected = risk.VPN
		event.ProxyDetected = risk.Proxy
	}

	return event, nil
}

// IPPrefix returns the /24 network of a dotted-quad IPv4 address as "a.b.c.0".
// Any other form, IPv6 included, is returned unchanged.
func IPPrefix(ip string) string {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return ip
	}
	for _, o := range octets {
		if o == "" || len(o) > 3 || strings.Trim(o, "0123456789") != "" {
			return ip
		}
		if n, err := strconv.Atoi(o); err != nil || n > 255 {
			return ip
		}
	}
	return strings.Join(octets[:3], ".") + ".0"
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "unknown" {
		return ""
	}
	return ip
}

func deviceFingerprint(req RequestContext) string {
	if fp := strings.TrimSpace(req.Headers.Get(HeaderDeviceFingerprint)); fp != "" {
		return fp
	}
	if req.UserAgent == "" && req.AcceptLanguage == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(req.UserAgent + "|" + req.AcceptLanguage))
	return hex.EncodeToString(sum[:])[:16]
}

func sessionID(req RequestContext) string {
	if id := strings.TrimSpace(req.Headers.Get(HeaderSessionID)); id != "" {
		return id
	}
	return uuid.New().String()
}

// ClassifyUserAgent maps a User-Agent header to device type, OS family and
// browser family. Unrecognized values come back as models.Unknown.
func ClassifyUserAgent(raw string) (deviceType, os, browser string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Unknown, models.Unknown, models.Unknown
	}

	ua := useragent.New(raw)
	name, _ := ua.Browser()

	return deviceClass(ua, raw), osFamily(ua.OS()), browserFamily(name)
}

func deviceClass(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return "Bot"
	case strings.Contains(raw, "iPad"), strings.Contains(raw, "Tablet"),
		strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile"):
		return "Tablet"
	case ua.Mobile():
		return "Mobile"
	default:
		return "Desktop"
	}
}

func osFamily(os string) string {
	switch {
	case os == "":
		return models.Unknown
	case strings.Contains(os, "Windows"):
		return "Windows"
	case strings.Contains(os, "iPhone"), strings.Contains(os, "iPad"), strings.Contains(os, "iOS"):
		return "iOS"
	case strings.Contains(os, "Mac OS"), strings.Contains(os, "macOS"):
		return "macOS"
	case strings.Contains(os, "Android"):
		return "Android"
	case strings.Contains(os, "CrOS"), strings.Contains(os, "Chrome OS"):
		return "ChromeOS"
	case strings.Contains(os, "Linux"):
		return "Linux"
	default:
		return models.Unknown
	}
}

func browserFamily(name string) string {
	switch {
	case name == "":
		return models.Unknown
	case strings.HasPrefix(name, "Edge"):
		return "Edge"
	case strings.HasPrefix(name, "Opera"):
		return "Opera"
	default:
		return name
	}
}
