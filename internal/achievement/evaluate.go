package achievement

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"upholdAPI/internal/tracking"
)

// ErrMalformedHistory marks history the evaluator cannot compute over,
// such as records with a zero timestamp.
var ErrMalformedHistory = errors.New("malformed history")

const comebackGapDays = 14

// Evaluate runs the achievement's strategy over the user's history and
// folds the result into state. The unlock flag is monotonic: a previously
// unlocked state is returned untouched, and UnlockedAt is set only the
// first time the strategy reaches full progress.
func Evaluate(a *Achievement, state *State, activities []tracking.ActivityRecord, entities []tracking.TrackableEntity, now time.Time) error {
	if state.IsUnlocked {
		state.Progress = 1
		return nil
	}

	progress, err := computeProgress(a, activities, entities)
	if err != nil {
		return err
	}

	state.Progress = clamp01(progress)
	if state.Progress >= 1 {
		state.IsUnlocked = true
		if state.UnlockedAt == nil {
			t := now
			state.UnlockedAt = &t
		}
	}
	return nil
}

func computeProgress(a *Achievement, activities []tracking.ActivityRecord, entities []tracking.TrackableEntity) (float64, error) {
	for _, act := range activities {
		if act.Timestamp.IsZero() {
			return 0, fmt.Errorf("activity %s: %w", act.ID, ErrMalformedHistory)
		}
	}

	switch a.Kind {
	case KindStreak:
		return streakProgress(a.RequiredValue, entities)
	case KindBalance:
		return balanceProgress(a.RequiredValue, activities, entities), nil
	case KindFrequency:
		return ratio(len(activities), a.RequiredValue), nil
	case KindMilestone:
		total := 0
		for _, act := range activities {
			total += act.DurationMinutes
		}
		return ratio(total, a.RequiredValue), nil
	case KindSpecial:
		return specialProgress(a.SpecialRule, activities, entities), nil
	default:
		return 0, fmt.Errorf("unknown achievement kind %q: %w", a.Kind, ErrMalformedHistory)
	}
}

// streakProgress uses the best streak ever reached, not the current one,
// so the unlock is sticky even after a reset.
func streakProgress(required int, entities []tracking.TrackableEntity) (float64, error) {
	best := 0
	for _, e := range entities {
		if e.CreatedAt.IsZero() {
			return 0, fmt.Errorf("entity %s has no creation timestamp: %w", e.ID, ErrMalformedHistory)
		}
		if e.LongestStreak > best {
			best = e.LongestStreak
		}
	}
	return ratio(best, required), nil
}

// balanceProgress rewards spreading activity evenly across entities.
// Evenness is 1 - stddev/mean over per-entity activity counts (zero when
// the deviation reaches the mean); coverage is distinct active days over
// the required count. Progress is their product.
func balanceProgress(required int, activities []tracking.ActivityRecord, entities []tracking.TrackableEntity) float64 {
	if len(entities) == 0 || len(activities) == 0 {
		return 0
	}

	counts := make(map[string]int, len(entities))
	for _, e := range entities {
		counts[e.ID.String()] = 0
	}
	days := make(map[string]bool)
	for _, act := range activities {
		counts[act.EntityID.String()]++
		days[act.Timestamp.UTC().Format("2006-01-02")] = true
	}

	mean := float64(len(activities)) / float64(len(counts))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, c := range counts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(counts))
	evenness := 1 - math.Sqrt(variance)/mean
	if evenness < 0 {
		evenness = 0
	}

	return evenness * ratio(len(days), required)
}

func specialProgress(rule string, activities []tracking.ActivityRecord, entities []tracking.TrackableEntity) float64 {
	switch rule {
	case RuleAllEntitiesActive:
		return allEntitiesActiveProgress(activities, entities)
	case RuleComeback:
		return comebackProgress(activities)
	default:
		return 0
	}
}

// allEntitiesActiveProgress: at least one activity exists for every
// entity the user tracks.
func allEntitiesActiveProgress(activities []tracking.ActivityRecord, entities []tracking.TrackableEntity) float64 {
	if len(entities) == 0 {
		return 0
	}
	seen := make(map[string]bool)
	for _, act := range activities {
		seen[act.EntityID.String()] = true
	}
	active := 0
	for _, e := range entities {
		if seen[e.ID.String()] {
			active++
		}
	}
	return ratio(active, len(entities))
}

// comebackProgress: a gap of comebackGapDays or more calendar days
// between two consecutive activities, the later one being the comeback.
// Short of a full gap, progress is the widest gap seen over the target.
func comebackProgress(activities []tracking.ActivityRecord) float64 {
	if len(activities) < 2 {
		return 0
	}
	sorted := make([]tracking.ActivityRecord, len(activities))
	copy(sorted, activities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	widest := 0
	for i := 1; i < len(sorted); i++ {
		gap := tracking.CalendarDaysBetween(sorted[i-1].Timestamp, sorted[i].Timestamp)
		if gap > widest {
			widest = gap
		}
	}
	return ratio(widest, comebackGapDays)
}

func ratio(have, want int) float64 {
	if want <= 0 {
		return 1
	}
	return clamp01(float64(have) / float64(want))
}

func clamp01(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
