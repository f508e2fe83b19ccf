package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        int64
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// TrustEvaluation is the audit record of one scored login
type TrustEvaluation struct {
	UserID            int64
	EventID           int64
	TrustScore        float64
	IPPrefix          string
	DeviceFingerprint string
	VPNDetected       bool
	BaselinePoints    int
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != 0 {
		attrs = append(attrs, slog.Int64("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogTrustEvaluation logs the trust score assigned to a login
func (al *AuditLogger) LogTrustEvaluation(eval TrustEvaluation) {
	attrs := []slog.Attr{
		slog.String("audit_type", "trust"),
		slog.String("event_type", "login_scored"),
		slog.Int64("user_id", eval.UserID),
		slog.Int64("event_id", eval.EventID),
		slog.Float64("trust_score", eval.TrustScore),
		slog.Bool("vpn_detected", eval.VPNDetected),
		slog.Int("baseline_points", eval.BaselinePoints),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if eval.IPPrefix != "" {
		attrs = append(attrs, slog.String("ip_prefix", eval.IPPrefix))
	}
	if eval.DeviceFingerprint != "" {
		attrs = append(attrs, slog.String("device_fingerprint", eval.DeviceFingerprint))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogAccountAction logs general account actions
func (al *AuditLogger) LogAccountAction(eventType string, userID, actorID int64, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.Int64("user_id", userID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if actorID != 0 && actorID != userID {
		attrs = append(attrs, slog.Int64("actor_id", actorID))
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
