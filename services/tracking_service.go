package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/reward"
	"upholdAPI/internal/tracking"
)

// TrackingService records the inbound facts (activities, indulgences),
// keeps entity streaks current, and feeds streak milestone crossings
// into the reward resolver.
type TrackingService struct {
	entities     EntityStore
	ledger       LedgerStore
	progressions *ProgressionService
	rewards      *RewardService
	pool         reward.Pool
	now          func() time.Time
}

func NewTrackingService(entities EntityStore, ledger LedgerStore, progressions *ProgressionService, rewards *RewardService, pool reward.Pool) *TrackingService {
	return &TrackingService{
		entities:     entities,
		ledger:       ledger,
		progressions: progressions,
		rewards:      rewards,
		pool:         pool,
		now:          time.Now,
	}
}

// ActivityResult is what one recorded activity produced.
type ActivityResult struct {
	Activity    *tracking.ActivityRecord  `json:"activity"`
	Entity      *tracking.TrackableEntity `json:"entity"`
	Progression *ProgressionDelta         `json:"progression"`
	Grants      []*reward.Grant           `json:"grants,omitempty"`
}

// RecordActivity appends the activity to the ledger, refreshes the
// entity streak, resolves any newly crossed streak milestone, and awards
// activity XP.
func (s *TrackingService) RecordActivity(ctx context.Context, userID, entityID uuid.UUID, durationMinutes int, at time.Time) (*ActivityResult, error) {
	if durationMinutes < 0 {
		return nil, fmt.Errorf("negative duration %d: %w", durationMinutes, ErrValidation)
	}
	if at.IsZero() {
		at = s.now()
	}

	entity, err := s.ownedEntity(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}

	rec := &tracking.ActivityRecord{
		ID:              uuid.New(),
		UserID:          userID,
		EntityID:        entityID,
		DurationMinutes: durationMinutes,
		Timestamp:       at,
	}
	if err := s.ledger.AppendActivity(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append activity: %w", err)
	}

	grants, err := s.refreshEntity(ctx, entity, at)
	if err != nil {
		return nil, err
	}

	delta, err := s.progressions.AwardActivityXP(ctx, userID, rec)
	if err != nil {
		return nil, err
	}

	return &ActivityResult{
		Activity:    rec,
		Entity:      entity,
		Progression: delta,
		Grants:      grants,
	}, nil
}

// RecordIndulgence appends the negative event and resets the entity's
// streak: the longest streak is preserved, the anchor moves to the
// indulgence.
func (s *TrackingService) RecordIndulgence(ctx context.Context, userID, entityID uuid.UUID, at time.Time) (*tracking.TrackableEntity, error) {
	if at.IsZero() {
		at = s.now()
	}

	entity, err := s.ownedEntity(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}

	rec := &tracking.IndulgenceRecord{
		ID:        uuid.New(),
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: at,
	}
	if err := s.ledger.AppendIndulgence(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append indulgence: %w", err)
	}

	tracking.RecordIndulgence(entity, at)
	entity.UpdatedAt = s.now()
	if err := s.entities.UpsertEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	s.syncBestStreak(ctx, userID, at)

	return entity, nil
}

// CreateEntity registers a new value or vice for the user.
func (s *TrackingService) CreateEntity(ctx context.Context, userID uuid.UUID, name string, kind tracking.EntityKind) (*tracking.TrackableEntity, error) {
	if name == "" {
		return nil, fmt.Errorf("entity name required: %w", ErrValidation)
	}
	if kind != tracking.KindValue && kind != tracking.KindVice {
		return nil, fmt.Errorf("unknown entity kind %q: %w", kind, ErrValidation)
	}

	now := s.now()
	entity := &tracking.TrackableEntity{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               name,
		Kind:               kind,
		MilestonesAchieved: make(map[int]bool),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.entities.UpsertEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	return entity, nil
}

// ListEntities returns the user's tracked entities with streaks
// refreshed against now. Refresh here is read-only: milestone rewards
// only fire on recorded activity, not on reads.
func (s *TrackingService) ListEntities(ctx context.Context, userID uuid.UUID) ([]tracking.TrackableEntity, error) {
	entities, err := s.entities.ListEntitiesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	now := s.now()
	for i := range entities {
		tracking.Refresh(&entities[i], now)
	}
	return entities, nil
}

// refreshEntity recomputes the streak, claims a crossed milestone if
// any, and persists the entity.
func (s *TrackingService) refreshEntity(ctx context.Context, entity *tracking.TrackableEntity, at time.Time) ([]*reward.Grant, error) {
	milestone := tracking.Refresh(entity, at)

	var grants []*reward.Grant
	if milestone > 0 {
		if entity.MilestonesAchieved == nil {
			entity.MilestonesAchieved = make(map[int]bool)
		}
		entity.MilestonesAchieved[milestone] = true

		grant, err := s.rewards.GrantEvent(ctx, reward.Event{
			UserID:   entity.UserID,
			Kind:     reward.EventStreakThreshold,
			Identity: "entity:" + entity.ID.String() + ":streak:" + strconv.Itoa(milestone),
			Value:    milestone,
		}, s.pool)
		if err != nil {
			return nil, fmt.Errorf("failed to grant streak milestone: %w", err)
		}
		grants = append(grants, grant)
	}

	entity.UpdatedAt = s.now()
	if err := s.entities.UpsertEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	s.syncBestStreak(ctx, entity.UserID, at)

	return grants, nil
}

// syncBestStreak mirrors the user's best entity streak into the
// progression. The multiplier follows the strongest current run, so an
// indulgence on one vice never hides a streak held by another entity.
// Sync failures are logged, not returned: the recorded fact stands.
func (s *TrackingService) syncBestStreak(ctx context.Context, userID uuid.UUID, at time.Time) {
	entities, err := s.entities.ListEntitiesByUser(ctx, userID)
	if err != nil {
		log.Printf("TrackingService: streak sync failed for %s: %v", userID, err)
		return
	}
	var current, longest int
	for i := range entities {
		tracking.Refresh(&entities[i], at)
		if entities[i].CurrentStreak > current {
			current = entities[i].CurrentStreak
		}
		if entities[i].LongestStreak > longest {
			longest = entities[i].LongestStreak
		}
	}
	if err := s.progressions.SyncStreak(ctx, userID, current, longest); err != nil {
		log.Printf("TrackingService: streak sync failed for %s: %v", userID, err)
	}
}

func (s *TrackingService) ownedEntity(ctx context.Context, userID, entityID uuid.UUID) (*tracking.TrackableEntity, error) {
	entity, err := s.entities.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", entityID, err)
	}
	if entity.UserID != userID {
		return nil, fmt.Errorf("entity %s does not belong to user %s: %w", entityID, userID, ErrNotFound)
	}
	return entity, nil
}
