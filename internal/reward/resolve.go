package reward

import (
	"errors"
	"math"
	"time"
)

// ErrUnknownEventKind is returned when the pool has no entry for the
// event's kind.
var ErrUnknownEventKind = errors.New("unknown reward event kind")

// Resolve converts an event into a concrete grant using the given pool
// and the user's streak multiplier at this moment. The multiplier is
// applied now, never retroactively. The caller owns persistence and the
// idempotency claim.
func Resolve(e Event, pool Pool, multiplier float64, now time.Time) (Grant, error) {
	entry, ok := pool.Entries[e.Kind]
	if !ok {
		return Grant{}, ErrUnknownEventKind
	}

	value := e.Value
	if value < 1 {
		value = 1
	}
	if multiplier < 1.0 {
		multiplier = 1.0
	}

	return Grant{
		UserID:      e.UserID,
		Kind:        e.Kind,
		Identity:    e.Identity,
		Points:      int(math.Round(float64(entry.BasePoints*value) * multiplier)),
		BadgeID:     entry.BadgeID,
		PremiumDays: entry.PremiumDays,
		Status:      StatusGranted,
		GrantedAt:   now,
	}, nil
}

// StackOutcome is the badge-grant decision for one attempt.
type StackOutcome struct {
	StackCount int
	// Applied is false when the badge is non-stackable and already held,
	// or its stack is full: the attempt is a recorded no-op.
	Applied bool
}

// DecideStack applies the stacking rules at grant time. existing is nil
// when the user does not hold the badge yet.
func DecideStack(b *Badge, existing *UserBadge) StackOutcome {
	if existing == nil {
		return StackOutcome{StackCount: 1, Applied: true}
	}
	if !b.IsStackable {
		return StackOutcome{StackCount: existing.StackCount, Applied: false}
	}
	if b.MaxStack > 0 && existing.StackCount >= b.MaxStack {
		return StackOutcome{StackCount: existing.StackCount, Applied: false}
	}
	return StackOutcome{StackCount: existing.StackCount + 1, Applied: true}
}
