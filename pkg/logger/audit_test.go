package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedAudit() (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil))), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLogger_LogAuthAttempt(t *testing.T) {
	al, buf := newBufferedAudit()

	al.LogAuthAttempt(AuditEvent{EventType: "login_failed", UserID: 7, FailureReason: "invalid_credentials"})

	entry := decodeLine(t, buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "login_failed", entry["event_type"])
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, "invalid_credentials", entry["failure_reason"])
	assert.NotContains(t, entry, "ip_address")
}

func TestAuditLogger_LogTrustEvaluation(t *testing.T) {
	al, buf := newBufferedAudit()

	al.LogTrustEvaluation(TrustEvaluation{UserID: 7, EventID: 99, TrustScore: 0.75, VPNDetected: true, IPPrefix: "203.0.113.0"})

	entry := decodeLine(t, buf)
	assert.Equal(t, "trust", entry["audit_type"])
	assert.Equal(t, float64(99), entry["event_id"])
	assert.Equal(t, 0.75, entry["trust_score"])
	assert.Equal(t, true, entry["vpn_detected"])
	assert.Equal(t, "203.0.113.0", entry["ip_prefix"])
	assert.NotContains(t, entry, "device_fingerprint")
}

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "a****@*******.com", SanitizedEmail("alice@example.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("Token=abc"))
	assert.True(t, SanitizeQueryString("session_id=1"))
	assert.False(t, SanitizeQueryString("page=2"))
}
