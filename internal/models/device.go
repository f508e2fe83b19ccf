package models

import "time"

// Device is a point-in-time record of a (user, fingerprint) pair
type Device struct {
	UserID            int64     `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	DeviceType        string    `json:"device_type"`
	OS                string    `json:"os"`
	Browser           string    `json:"browser"`
	TrustScore        float64   `json:"trust_score"`
	LastSeen          time.Time `json:"last_seen"`
}
