package tracking

import "time"

// StreakMilestones are the fixed day thresholds that trigger a one-time
// reward the first time a streak crosses them.
var StreakMilestones = [4]int{7, 30, 100, 365}

// CalendarDaysBetween returns the number of calendar days from a to b,
// comparing date components normalized to UTC midnight. Two timestamps a
// minute apart straddling midnight count as one day. Returns 0 when b's
// date is not after a's.
func CalendarDaysBetween(a, b time.Time) int {
	a = a.UTC()
	b = b.UTC()
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(bd.Sub(ad).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// StreakAnchor returns the moment the current streak counts from: the
// last indulgence if there is one, otherwise the entity's creation.
func StreakAnchor(e *TrackableEntity) time.Time {
	if e.LastIndulgenceAt != nil {
		return *e.LastIndulgenceAt
	}
	return e.CreatedAt
}

// Refresh recomputes the entity's current streak from its anchor and now,
// and returns the milestone newly crossed by that move, or 0.
// LongestStreak is raised if the current streak passes it.
func Refresh(e *TrackableEntity, now time.Time) int {
	old := e.CurrentStreak
	e.CurrentStreak = CalendarDaysBetween(StreakAnchor(e), now)
	if e.CurrentStreak > e.LongestStreak {
		e.LongestStreak = e.CurrentStreak
	}
	return CrossedMilestone(e, old, e.CurrentStreak)
}

// RecordIndulgence applies a negative event: the longest streak is
// preserved, the current streak resets to zero, and the anchor moves to
// the indulgence time.
func RecordIndulgence(e *TrackableEntity, at time.Time) {
	if e.CurrentStreak > e.LongestStreak {
		e.LongestStreak = e.CurrentStreak
	}
	e.CurrentStreak = 0
	t := at
	e.LastIndulgenceAt = &t
}

// CrossedMilestone reports the first threshold satisfying
// old < threshold <= new that the entity has not already achieved, or 0.
// At most one milestone is reported per update.
func CrossedMilestone(e *TrackableEntity, oldStreak, newStreak int) int {
	for _, m := range StreakMilestones {
		if e.MilestonesAchieved[m] {
			continue
		}
		if oldStreak < m && m <= newStreak {
			return m
		}
	}
	return 0
}
