package confidence

import "time"

// StalenessLevel describes how old the newest context update is.
type StalenessLevel string

const (
	LevelFresh    StalenessLevel = "fresh"
	LevelAging    StalenessLevel = "aging"
	LevelWarning  StalenessLevel = "warning"
	LevelCritical StalenessLevel = "critical"
)

// Freshness is the outcome of evaluating a context's age.
type Freshness struct {
	DecayFactor float64        `json:"decay_factor"`
	IsStale     bool           `json:"is_stale"`
	Level       StalenessLevel `json:"level"`
	AgeDays     int            `json:"age_days"`
}

const day = 24 * time.Hour

// EvaluateFreshness buckets the age of lastUpdated in whole days:
// 0-7 -> 1.0, 8-30 -> 0.8, 31-90 -> 0.5 (stale, warning), over 90 -> 0.2
// (stale, critical). A missing timestamp is maximally stale. Timestamps in
// the future count as zero days old.
func EvaluateFreshness(lastUpdated *time.Time, now time.Time) Freshness {
	if lastUpdated == nil || lastUpdated.IsZero() {
		return Freshness{DecayFactor: 0.2, IsStale: true, Level: LevelCritical, AgeDays: -1}
	}

	age := now.Sub(*lastUpdated)
	if age < 0 {
		age = 0
	}
	days := int(age / day)

	switch {
	case days <= 7:
		return Freshness{DecayFactor: 1.0, Level: LevelFresh, AgeDays: days}
	case days <= 30:
		return Freshness{DecayFactor: 0.8, Level: LevelAging, AgeDays: days}
	case days <= 90:
		return Freshness{DecayFactor: 0.5, IsStale: true, Level: LevelWarning, AgeDays: days}
	default:
		return Freshness{DecayFactor: 0.2, IsStale: true, Level: LevelCritical, AgeDays: days}
	}
}

// Latest returns the most recent non-nil, non-zero timestamp, or nil.
func Latest(ts ...*time.Time) *time.Time {
	var latest *time.Time
	for _, t := range ts {
		if t == nil || t.IsZero() {
			continue
		}
		if latest == nil || t.After(*latest) {
			latest = t
		}
	}
	return latest
}
