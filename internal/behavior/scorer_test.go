package behavior

import (
	"testing"

	"github.com/BradenHooton/vigil/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicScorer_Score(t *testing.T) {
	base := NewTestEvent(1, mondayMorning)

	tests := []struct {
		name   string
		modify func(e *models.BehaviorEvent)
		want   float64
	}{
		{"known desktop at 09:00", func(e *models.BehaviorEvent) {}, 0.95},
		{"same over vpn", func(e *models.BehaviorEvent) { e.VPNDetected = true }, 0.75},
		{"night hour", func(e *models.BehaviorEvent) { e.Hour = 3 }, 0.8},
		{"hour 7 is daytime", func(e *models.BehaviorEvent) { e.Hour = 7 }, 0.95},
		{"hour 23 is daytime", func(e *models.BehaviorEvent) { e.Hour = 23 }, 0.95},
		{"unknown browser", func(e *models.BehaviorEvent) { e.Browser = models.Unknown }, 0.8},
		{"mobile ios", func(e *models.BehaviorEvent) { e.DeviceType = "Mobile"; e.OS = "iOS" }, 0.8},
		{"worst case", func(e *models.BehaviorEvent) {
			e.Hour = 2
			e.Browser = models.Unknown
			e.OS = models.Unknown
			e.DeviceType = models.Unknown
			e.VPNDetected = true
		}, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.modify(&e)

			score := HeuristicScorer{}.Score(&e, nil)

			assert.InDelta(t, tt.want, score, 1e-9)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestHeuristicScorer_VPNNeverRaisesScore(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for _, browser := range []string{"Chrome", "Opera", models.Unknown} {
			for _, deviceType := range []string{"Desktop", "Mobile"} {
				e := NewTestEvent(1, mondayMorning)
				e.Hour, e.Browser, e.DeviceType = hour, browser, deviceType

				clean := HeuristicScorer{}.Score(&e, nil)
				e.VPNDetected = true
				vpn := HeuristicScorer{}.Score(&e, nil)

				assert.Less(t, vpn, clean)
			}
		}
	}
}

func TestHeuristicScorer_RoundsToThreeDecimals(t *testing.T) {
	e := NewTestEvent(1, mondayMorning)
	score := HeuristicScorer{}.Score(&e, nil)

	assert.Equal(t, round3(score), score)
}

func TestBaselineScorer_Score(t *testing.T) {
	baseline := &models.Baseline{
		Profile: models.BaselineProfile{
			TypicalHours:       []int{9, 10},
			TypicalIPPrefixes:  []string{"203.0.113.0"},
			TypicalDeviceTypes: []string{"Desktop"},
		},
	}

	familiar := NewTestEvent(1, mondayMorning)
	assert.InDelta(t, 0.95, BaselineScorer{}.Score(&familiar, baseline), 1e-9)

	// No baseline means no deviation penalties
	assert.InDelta(t, 0.95, BaselineScorer{}.Score(&familiar, nil), 1e-9)

	novel := NewTestEvent(1, mondayMorning)
	novel.Hour = 3
	novel.IPPrefix = "198.51.100.0"
	novel.DeviceType = "Mobile"
	// heuristic 0.75, then -0.10 -0.10 -0.05
	assert.InDelta(t, 0.5, BaselineScorer{}.Score(&novel, baseline), 1e-9)

	empty := &models.Baseline{}
	assert.InDelta(t, 0.75, BaselineScorer{}.Score(&novel, empty), 1e-9)
}

func TestNewScorer(t *testing.T) {
	s, err := NewScorer("")
	require.NoError(t, err)
	assert.IsType(t, HeuristicScorer{}, s)

	s, err = NewScorer(" Baseline ")
	require.NoError(t, err)
	assert.IsType(t, BaselineScorer{}, s)

	_, err = NewScorer("ml")
	assert.Error(t, err)
}
