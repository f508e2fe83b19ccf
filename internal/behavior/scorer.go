package behavior

import (
	"fmt"
	"math"
	"strings"

	"github.com/BradenHooton/vigil/internal/models"
)

const (
	ScorerHeuristic = "heuristic"
	ScorerBaseline  = "baseline"
)

// Scorer estimates how trustworthy an event looks. Scores are in [0, 1],
// rounded to three decimals. baseline may be nil.
type Scorer interface {
	Score(event *models.BehaviorEvent, baseline *models.Baseline) float64
}

var (
	knownBrowsers = map[string]struct{}{"Chrome": {}, "Firefox": {}, "Safari": {}, "Edge": {}}
	knownOS       = map[string]struct{}{"Windows": {}, "macOS": {}, "Linux": {}}
)

// HeuristicScorer scores an event on its own attributes and ignores the baseline
type HeuristicScorer struct{}

// Score implements Scorer
func (HeuristicScorer) Score(event *models.BehaviorEvent, _ *models.Baseline) float64 {
	return round3(clamp01(heuristic(event)))
}

func heuristic(event *models.BehaviorEvent) float64 {
	score := 0.5

	if _, ok := knownBrowsers[event.Browser]; ok {
		score += 0.15
	}
	if event.Hour >= 7 && event.Hour <= 23 {
		score += 0.15
	}
	if event.VPNDetected {
		score -= 0.20
	}
	if _, ok := knownOS[event.OS]; ok {
		score += 0.10
	}
	if event.DeviceType == "Desktop" {
		score += 0.05
	}

	return score
}

// BaselineScorer starts from the heuristic score and subtracts for each
// attribute the user's baseline has not seen before
type BaselineScorer struct{}

// Score implements Scorer
func (BaselineScorer) Score(event *models.BehaviorEvent, baseline *models.Baseline) float64 {
	score := heuristic(event)

	if baseline != nil {
		p := baseline.Profile
		if len(p.TypicalHours) > 0 && !baseline.HasHour(event.Hour) {
			score -= 0.10
		}
		if len(p.TypicalIPPrefixes) > 0 && !baseline.HasIPPrefix(event.IPPrefix) {
			score -= 0.10
		}
		if len(p.TypicalDeviceTypes) > 0 && !baseline.HasDeviceType(event.DeviceType) {
			score -= 0.05
		}
	}

	return round3(clamp01(score))
}

// NewScorer returns the scorer registered under name
func NewScorer(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ScorerHeuristic:
		return HeuristicScorer{}, nil
	case ScorerBaseline:
		return BaselineScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown trust scorer %q", name)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
