package reward

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what earned the reward.
type EventKind string

const (
	EventMilestone       EventKind = "milestone"
	EventStreakThreshold EventKind = "streak_threshold"
	EventCompletion      EventKind = "completion"
)

// Event is a detected progression occurrence to be converted into grants.
// Identity distinguishes this occurrence from every other of the same
// kind for the same user (e.g. "entity:<id>:streak:30").
type Event struct {
	UserID   uuid.UUID
	Kind     EventKind
	Identity string
	// Value is the threshold or milestone magnitude, used to scale points.
	Value int
}

// IdempotencyKey is the claim key for a grant: the same (user, kind,
// identity) tuple must never be applied twice, even under retries.
func (e Event) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:%s", e.UserID, e.Kind, e.Identity)
}

// Badge is a catalog entry. Non-stackable badges can be held at most once
// per user; stackable ones up to MaxStack, or without limit when
// MaxStack is zero.
type Badge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Icon        string    `json:"icon" db:"icon"`
	IsStackable bool      `json:"is_stackable" db:"is_stackable"`
	MaxStack    int       `json:"max_stack" db:"max_stack"`
}

// UserBadge is a grant record.
type UserBadge struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	BadgeID    uuid.UUID `json:"badge_id" db:"badge_id"`
	StackCount int       `json:"stack_count" db:"stack_count"`
	EarnedFrom string    `json:"earned_from" db:"earned_from"`
	EarnedAt   time.Time `json:"earned_at" db:"earned_at"`
}

// PoolEntry configures what one event kind pays out. BasePoints is
// multiplied by the event value and the user's streak multiplier at grant
// time. BadgeID is optional; PremiumDays grants temporary premium access.
type PoolEntry struct {
	BasePoints  int
	BadgeID     *uuid.UUID
	PremiumDays int
}

// Pool is the immutable reward configuration passed into the resolver at
// call time, mapping event kinds to payouts.
type Pool struct {
	Entries map[EventKind]PoolEntry
}

// DefaultPool mirrors the product's launch configuration.
func DefaultPool() Pool {
	return Pool{Entries: map[EventKind]PoolEntry{
		EventMilestone:       {BasePoints: 10},
		EventStreakThreshold: {BasePoints: 5},
		EventCompletion:      {BasePoints: 50, PremiumDays: 7},
	}}
}

// GrantStatus reports how a grant attempt resolved.
type GrantStatus string

const (
	StatusGranted GrantStatus = "granted"
	// StatusDuplicate means the event was already applied; the grant is a
	// no-op, not a failure.
	StatusDuplicate GrantStatus = "already_granted"
)

// Grant is the concrete outcome of resolving one event.
type Grant struct {
	UserID      uuid.UUID   `json:"user_id"`
	Kind        EventKind   `json:"kind"`
	Identity    string      `json:"identity"`
	Points      int         `json:"points"`
	BadgeID     *uuid.UUID  `json:"badge_id,omitempty"`
	PremiumDays int         `json:"premium_days,omitempty"`
	Status      GrantStatus `json:"status"`
	GrantedAt   time.Time   `json:"granted_at"`
}
