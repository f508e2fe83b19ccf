package models

import "time"

// Unknown marks a device attribute that could not be classified.
const Unknown = "Unknown"

// Actions recorded on behavior events
const (
	ActionLogin  = "LOGIN"
	ActionLogout = "LOGOUT"
)

// BehaviorEvent is one authentication or resource-access occurrence.
// Events are immutable once appended. Optional context that could not be
// resolved is left empty and persisted as NULL.
type BehaviorEvent struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	Hour      int       `json:"hour"`        // 0-23, UTC
	DayOfWeek int       `json:"day_of_week"` // 0-6, Monday=0

	IPAddress       string `json:"ip_address"`
	IPPrefix        string `json:"ip_prefix"`
	LocationCountry string `json:"location_country,omitempty"`
	LocationCity    string `json:"location_city,omitempty"`

	DeviceFingerprint string `json:"device_fingerprint"`
	DeviceType        string `json:"device_type"`
	OS                string `json:"os"`
	Browser           string `json:"browser"`

	Resource        string `json:"resource"`
	Action          string `json:"action"`
	SessionID       string `json:"session_id"`
	SessionDuration int    `json:"session_duration"` // seconds

	VPNDetected   bool `json:"vpn_detected"`
	ProxyDetected bool `json:"proxy_detected"`
}

// DayOfWeekMondayZero converts a time.Weekday (Sunday=0) to the Monday=0 convention
func DayOfWeekMondayZero(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
