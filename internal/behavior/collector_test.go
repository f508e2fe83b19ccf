package behavior

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

// Monday 2024-03-04 09:30 UTC
var mondayMorning = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func TestIPPrefix(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want string
	}{
		{"ipv4", "203.0.113.45", "203.0.113.0"},
		{"ipv4 already network", "10.0.0.0", "10.0.0.0"},
		{"ipv6 unchanged", "2001:db8::1", "2001:db8::1"},
		{"empty", "", ""},
		{"octet out of range", "256.1.1.1", "256.1.1.1"},
		{"three octets", "10.1.2", "10.1.2"},
		{"non numeric", "a.b.c.d", "a.b.c.d"},
		{"hostname", "example.com", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IPPrefix(tt.ip))
		})
	}
}

func TestCollector_CollectAt_FullContext(t *testing.T) {
	collector := NewCollector(
		StaticGeo{Location: Location{Country: "US", City: "Boston"}},
		StaticDetector{VPN: true},
	)

	headers := http.Header{}
	headers.Set(HeaderDeviceFingerprint, "fp-123")
	headers.Set(HeaderSessionID, "session-abc")

	event, err := collector.CollectAt(context.Background(), RequestContext{
		ClientIP:  "203.0.113.45",
		UserAgent: chromeWindowsUA,
		Path:      "/auth/login",
		Headers:   headers,
	}, 42, "alice", mondayMorning)

	require.NoError(t, err)
	assert.Equal(t, int64(42), event.UserID)
	assert.Equal(t, "alice", event.Username)
	assert.Equal(t, mondayMorning, event.Timestamp)
	assert.Equal(t, 9, event.Hour)
	assert.Equal(t, 0, event.DayOfWeek)
	assert.Equal(t, "203.0.113.45", event.IPAddress)
	assert.Equal(t, "203.0.113.0", event.IPPrefix)
	assert.Equal(t, "US", event.LocationCountry)
	assert.Equal(t, "Boston", event.LocationCity)
	assert.Equal(t, "fp-123", event.DeviceFingerprint)
	assert.Equal(t, "Desktop", event.DeviceType)
	assert.Equal(t, "Windows", event.OS)
	assert.Equal(t, "Chrome", event.Browser)
	assert.Equal(t, "/auth/login", event.Resource)
	assert.Equal(t, models.ActionLogin, event.Action)
	assert.Equal(t, "session-abc", event.SessionID)
	assert.True(t, event.VPNDetected)
	assert.False(t, event.ProxyDetected)
}

func TestCollector_CollectAt_MissingOptionalContext(t *testing.T) {
	collector := NewCollector(
		StaticGeo{Err: errors.New("lookup failed")},
		StaticDetector{VPN: true},
	)

	event, err := collector.CollectAt(context.Background(), RequestContext{ClientIP: "unknown"}, 7, "bob", mondayMorning)

	require.NoError(t, err)
	assert.Empty(t, event.IPAddress)
	assert.Empty(t, event.IPPrefix)
	assert.Empty(t, event.LocationCountry)
	assert.Empty(t, event.LocationCity)
	assert.Empty(t, event.DeviceFingerprint)
	assert.Equal(t, models.Unknown, event.DeviceType)
	assert.Equal(t, models.Unknown, event.OS)
	assert.Equal(t, models.Unknown, event.Browser)
	assert.NotEmpty(t, event.SessionID)
	// No address to check, so no verdict
	assert.False(t, event.VPNDetected)
}

func TestCollector_CollectAt_GeoFailureLeavesLocationEmpty(t *testing.T) {
	collector := NewCollector(StaticGeo{Err: ErrLocationUnavailable}, nil)

	event, err := collector.CollectAt(context.Background(), RequestContext{
		ClientIP:  "198.51.100.10",
		UserAgent: firefoxLinuxUA,
	}, 7, "bob", mondayMorning)

	require.NoError(t, err)
	assert.Empty(t, event.LocationCountry)
	assert.Empty(t, event.LocationCity)
	assert.Equal(t, "198.51.100.0", event.IPPrefix)
}

func TestCollector_CollectAt_MissingIdentity(t *testing.T) {
	collector := NewCollector(nil, nil)

	tests := []struct {
		name     string
		userID   int64
		username string
	}{
		{"zero user id", 0, "alice"},
		{"negative user id", -1, "alice"},
		{"empty username", 1, ""},
		{"blank username", 1, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := collector.CollectAt(context.Background(), RequestContext{}, tt.userID, tt.username, mondayMorning)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Nil(t, event)
		})
	}
}

func TestCollector_CollectAt_ConvertsToUTC(t *testing.T) {
	collector := NewCollector(nil, nil)
	eastern := time.FixedZone("EST", -5*3600)

	// Sunday 23:30 EST is Monday 04:30 UTC
	at := time.Date(2024, 3, 3, 23, 30, 0, 0, eastern)
	event, err := collector.CollectAt(context.Background(), RequestContext{}, 1, "alice", at)

	require.NoError(t, err)
	assert.Equal(t, 4, event.Hour)
	assert.Equal(t, 0, event.DayOfWeek)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

func TestCollector_DerivedFingerprintIsStable(t *testing.T) {
	collector := NewCollector(nil, nil)
	req := RequestContext{UserAgent: chromeWindowsUA, AcceptLanguage: "en-US"}

	first, err := collector.CollectAt(context.Background(), req, 1, "alice", mondayMorning)
	require.NoError(t, err)
	second, err := collector.CollectAt(context.Background(), req, 1, "alice", mondayMorning)
	require.NoError(t, err)

	assert.Len(t, first.DeviceFingerprint, 16)
	assert.Equal(t, first.DeviceFingerprint, second.DeviceFingerprint)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestClassifyUserAgent(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		deviceType string
		os         string
		browser    string
	}{
		{"chrome on windows", chromeWindowsUA, "Desktop", "Windows", "Chrome"},
		{"firefox on linux", firefoxLinuxUA, "Desktop", "Linux", "Firefox"},
		{"safari on iphone", safariIPhoneUA, "Mobile", "iOS", "Safari"},
		{"empty", "", models.Unknown, models.Unknown, models.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviceType, os, browser := ClassifyUserAgent(tt.ua)
			assert.Equal(t, tt.deviceType, deviceType)
			assert.Equal(t, tt.os, os)
			assert.Equal(t, tt.browser, browser)
		})
	}
}
