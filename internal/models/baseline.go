package models

import "time"

// DefaultAvgSessionDuration is reported when a window contains no durations
const DefaultAvgSessionDuration = 600

// BaselineProfile is the typed document stored in user_baselines.baseline_data
type BaselineProfile struct {
	TypicalHours       []int    `json:"typical_hours"`
	TypicalIPPrefixes  []string `json:"typical_ip_prefixes"`
	TypicalCities      []string `json:"typical_cities"`
	TypicalCountries   []string `json:"typical_countries"`
	TypicalDeviceTypes []string `json:"typical_device_types"`
	TypicalOS          []string `json:"typical_os"`
	TypicalBrowsers    []string `json:"typical_browsers"`
	TypicalResources   []string `json:"typical_resources"`
	AvgSessionDuration int      `json:"avg_session_duration"`
	TotalSessions      int      `json:"total_sessions"`
}

// Baseline is the per-user behavioral profile. It is a cache: the whole
// record can be recomputed from behavior_logs at any time.
type Baseline struct {
	UserID          int64           `json:"user_id"`
	Profile         BaselineProfile `json:"baseline_data"`
	LastUpdated     time.Time       `json:"last_updated"`
	DataPointsCount int             `json:"data_points_count"`
	SourceLogIDs    []int64         `json:"source_log_ids"`
	// FirstLogID and LastLogID bound the window the baseline was computed from
	FirstLogID      int64           `json:"first_log_id"`
	LastLogID       int64           `json:"last_log_id"`
}

// HasHour reports whether hour is among the typical hours
func (b *Baseline) HasHour(hour int) bool {
	for _, h := range b.Profile.TypicalHours {
		if h == hour {
			return true
		}
	}
	return false
}

// HasIPPrefix reports whether prefix is among the typical IP prefixes
func (b *Baseline) HasIPPrefix(prefix string) bool {
	return contains(b.Profile.TypicalIPPrefixes, prefix)
}

// HasDeviceType reports whether deviceType is among the typical device types
func (b *Baseline) HasDeviceType(deviceType string) bool {
	return contains(b.Profile.TypicalDeviceTypes, deviceType)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
