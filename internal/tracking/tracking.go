package tracking

import (
	"time"

	"github.com/google/uuid"
)

type EntityKind string

const (
	KindValue EntityKind = "value" // something the user practices daily
	KindVice  EntityKind = "vice"  // something the user resists daily
)

// TrackableEntity is a value being practiced or a vice being resisted.
// The streak anchor is LastIndulgenceAt for vices that have slipped,
// otherwise CreatedAt.
type TrackableEntity struct {
	ID                  uuid.UUID    `json:"id" db:"id"`
	UserID              uuid.UUID    `json:"user_id" db:"user_id"`
	Name                string       `json:"name" db:"name"`
	Kind                EntityKind   `json:"kind" db:"kind"`
	CurrentStreak       int          `json:"current_streak" db:"current_streak"`
	LongestStreak       int          `json:"longest_streak" db:"longest_streak"`
	LastIndulgenceAt    *time.Time   `json:"last_indulgence_at" db:"last_indulgence_at"`
	MilestonesAchieved  map[int]bool `json:"milestones_achieved" db:"milestones_achieved"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at" db:"updated_at"`
}

// ActivityRecord is an immutable fact: the user practiced an entity.
type ActivityRecord struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	EntityID        uuid.UUID `json:"entity_id" db:"entity_id"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}

// IndulgenceRecord is an immutable fact: the user gave in to a vice.
type IndulgenceRecord struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	EntityID  uuid.UUID `json:"entity_id" db:"entity_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
