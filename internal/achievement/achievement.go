package achievement

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of achievement progress strategies.
type Kind string

const (
	KindStreak    Kind = "streak"
	KindBalance   Kind = "balance"
	KindFrequency Kind = "frequency"
	KindMilestone Kind = "milestone"
	KindSpecial   Kind = "special"
)

// Special-rule codes understood by the evaluator. Anything else evaluates
// to zero progress rather than erroring.
const (
	RuleAllEntitiesActive = "all_entities_active"
	RuleComeback          = "comeback"
)

// Achievement is a catalog entry. RequiredValue is the target the kind's
// strategy measures against; SpecialRule is only set for KindSpecial.
type Achievement struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Icon          string    `json:"icon" db:"icon"`
	Kind          Kind      `json:"kind" db:"kind"`
	RequiredValue int       `json:"required_value" db:"required_value"`
	SpecialRule   string    `json:"special_rule,omitempty" db:"special_rule"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// State is a user's standing against one achievement. Once IsUnlocked is
// true it never becomes false again, and UnlockedAt is set exactly once.
type State struct {
	AchievementID uuid.UUID  `json:"achievement_id" db:"achievement_id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	Progress      float64    `json:"progress" db:"progress"`
	IsUnlocked    bool       `json:"is_unlocked" db:"is_unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// WithStatus pairs a catalog entry with the user's state, the shape the
// achievements endpoint returns.
type WithStatus struct {
	Achievement
	Progress   float64    `json:"progress"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}
