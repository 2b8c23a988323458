package notification

import (
	"context"

	"github.com/google/uuid"
)

// DeviceToken is a registered push target for a user.
type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}

// Event is an outbound progression occurrence surfaced to the user.
type Event struct {
	UserID uuid.UUID
	Title  string
	Body   string
	Data   map[string]any
}

// Notifier is the delivery collaborator. The engine fires events at it
// and moves on; delivery mechanics live outside the engine.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NopNotifier discards every event. Used when no push provider is
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// AchievementUnlocked builds the push event for a fresh unlock.
func AchievementUnlocked(userID uuid.UUID, name string) Event {
	return Event{
		UserID: userID,
		Title:  "Achievement unlocked!",
		Body:   name,
		Data:   map[string]any{"type": "achievement_unlocked", "name": name},
	}
}

// LevelUp builds the push event for a level gain.
func LevelUp(userID uuid.UUID, level int, tier string) Event {
	return Event{
		UserID: userID,
		Title:  "Level up!",
		Body:   "You reached a new level",
		Data:   map[string]any{"type": "level_up", "level": level, "tier": tier},
	}
}
