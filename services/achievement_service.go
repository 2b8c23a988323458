package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/achievement"
	"upholdAPI/internal/notification"
)

// AchievementService evaluates every catalog achievement against a
// user's history. One malformed achievement never blocks the rest.
type AchievementService struct {
	achievements AchievementStore
	entities     EntityStore
	ledger       LedgerStore
	notifier     notification.Notifier
	now          func() time.Time
}

func NewAchievementService(achievements AchievementStore, entities EntityStore, ledger LedgerStore, notifier notification.Notifier) *AchievementService {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &AchievementService{
		achievements: achievements,
		entities:     entities,
		ledger:       ledger,
		notifier:     notifier,
		now:          time.Now,
	}
}

// EvaluateAchievements recomputes progress for the user's full
// achievement set and persists any state that moved. Unlocks are
// monotonic: a state that is already unlocked is never recomputed
// downward. Per-achievement evaluation failures are logged and skipped.
func (s *AchievementService) EvaluateAchievements(ctx context.Context, userID uuid.UUID) ([]achievement.WithStatus, error) {
	catalog, err := s.achievements.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	states, err := s.achievements.ListStates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement states: %w", err)
	}
	byID := make(map[uuid.UUID]*achievement.State, len(states))
	for i := range states {
		byID[states[i].AchievementID] = &states[i]
	}

	entities, err := s.entities.ListEntitiesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	activities, err := s.ledger.ActivitiesByUser(ctx, userID, time.Time{}, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load activity history: %w", err)
	}

	now := s.now()
	results := make([]achievement.WithStatus, 0, len(catalog))
	for i := range catalog {
		a := &catalog[i]

		state, ok := byID[a.ID]
		if !ok {
			state = &achievement.State{AchievementID: a.ID, UserID: userID}
		}
		wasUnlocked := state.IsUnlocked
		before := state.Progress

		if err := achievement.Evaluate(a, state, activities, entities, now); err != nil {
			// Isolated: a bad computation on one achievement must not
			// stop the rest of the set.
			log.Printf("AchievementService: evaluation of %q failed for %s: %v", a.Name, userID, err)
			continue
		}

		if state.IsUnlocked != wasUnlocked || state.Progress != before {
			if err := s.achievements.UpsertState(ctx, state); err != nil {
				return nil, fmt.Errorf("failed to save state for %s: %w", a.ID, err)
			}
		}

		if state.IsUnlocked && !wasUnlocked {
			achievementUnlocks.Inc()
			if err := s.notifier.Notify(ctx, notification.AchievementUnlocked(userID, a.Name)); err != nil {
				log.Printf("AchievementService: unlock notification failed for %s: %v", userID, err)
			}
		}

		results = append(results, achievement.WithStatus{
			Achievement: *a,
			Progress:    state.Progress,
			Unlocked:    state.IsUnlocked,
			UnlockedAt:  state.UnlockedAt,
		})
	}

	return results, nil
}

// CountUnlocked returns how many achievements the user has unlocked so
// far, based on persisted state only.
func (s *AchievementService) CountUnlocked(ctx context.Context, userID uuid.UUID) (int, error) {
	states, err := s.achievements.ListStates(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load achievement states: %w", err)
	}
	n := 0
	for i := range states {
		if states[i].IsUnlocked {
			n++
		}
	}
	return n, nil
}
