package behavior

import (
	"context"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/vigil/internal/models"
)

// MemoryStore is an in-memory EventStore, BaselineStore and DeviceStore for tests
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	events    []models.BehaviorEvent
	baselines map[int64]models.Baseline
	devices   map[deviceKey]models.Device

	// Optional failure hooks
	AppendErr  error
	RecentErr  error
	GetErr     error
	UpsertErr  error
	DevicesErr error
}

type deviceKey struct {
	userID      int64
	fingerprint string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		baselines: make(map[int64]models.Baseline),
		devices:   make(map[deviceKey]models.Device),
	}
}

func (s *MemoryStore) Append(_ context.Context, event *models.BehaviorEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		return 0, s.AppendErr
	}
	s.nextID++
	e := *event
	e.ID = s.nextID
	s.events = append(s.events, e)
	return e.ID, nil
}

func (s *MemoryStore) RecentForUser(_ context.Context, userID int64, limit int) ([]models.BehaviorEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RecentErr != nil {
		return nil, s.RecentErr
	}
	var mine []models.BehaviorEvent
	for _, e := range s.events {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	if len(mine) > limit {
		mine = mine[len(mine)-limit:]
	}
	out := make([]models.BehaviorEvent, len(mine))
	copy(out, mine)
	return out, nil
}

// Events returns every stored event for the user in insertion order
func (s *MemoryStore) Events(userID int64) []models.BehaviorEvent {
	events, _ := s.RecentForUser(context.Background(), userID, math.MaxInt)
	return events
}

func (s *MemoryStore) Upsert(_ context.Context, baseline *models.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	s.baselines[baseline.UserID] = *baseline
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*models.Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	b, ok := s.baselines[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

// Devices adapts the store to DeviceStore
func (s *MemoryStore) Devices() DeviceStore {
	return memoryDevices{s}
}

type memoryDevices struct{ s *MemoryStore }

func (d memoryDevices) Upsert(_ context.Context, device *models.Device) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	if d.s.DevicesErr != nil {
		return d.s.DevicesErr
	}
	d.s.devices[deviceKey{device.UserID, device.DeviceFingerprint}] = *device
	return nil
}

func (d memoryDevices) ListForUser(_ context.Context, userID int64) ([]models.Device, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	devices := make([]models.Device, 0)
	for k, dev := range d.s.devices {
		if k.userID == userID {
			devices = append(devices, dev)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].LastSeen.After(devices[j].LastSeen) })
	return devices, nil
}

// NewTestEvent returns a fully populated login event for the user at the given time
func NewTestEvent(userID int64, at time.Time) models.BehaviorEvent {
	at = at.UTC()
	return models.BehaviorEvent{
		UserID:            userID,
		Username:          "alice",
		Timestamp:         at,
		Hour:              at.Hour(),
		DayOfWeek:         models.DayOfWeekMondayZero(at),
		IPAddress:         "203.0.113.45",
		IPPrefix:          "203.0.113.0",
		LocationCountry:   "US",
		LocationCity:      "Boston",
		DeviceFingerprint: "fp-desktop",
		DeviceType:        "Desktop",
		OS:                "Windows",
		Browser:           "Chrome",
		Resource:          "/auth/login",
		Action:            models.ActionLogin,
		SessionID:         "session-1",
		SessionDuration:   600,
	}
}

// StaticGeo is a GeoResolver returning a fixed answer
type StaticGeo struct {
	Location Location
	Err      error
}

func (g StaticGeo) Resolve(context.Context, string, http.Header) (Location, error) {
	return g.Location, g.Err
}

// StaticDetector is a NetworkDetector returning a fixed verdict
type StaticDetector NetworkRisk

func (d StaticDetector) Detect(string) NetworkRisk {
	return NetworkRisk(d)
}
