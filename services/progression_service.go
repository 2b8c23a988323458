package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/notification"
	"upholdAPI/internal/progression"
	"upholdAPI/internal/tracking"
)

const (
	activityBaseXP    = 10
	activityXPCap     = 30
	minutesPerBonusXP = 5
)

// ProgressionDelta reports what one XP award changed.
type ProgressionDelta struct {
	XPAwarded     int              `json:"xp_awarded"`
	LevelsGained  int              `json:"levels_gained"`
	NewLevel      int              `json:"new_level"`
	Tier          progression.Tier `json:"tier"`
	Multiplier    float64          `json:"multiplier"`
	TotalXP       int              `json:"total_xp"`
	XPToNextLevel int              `json:"xp_to_next_level"`
}

// ProgressionService owns per-user XP, levels and the streak multiplier.
type ProgressionService struct {
	progressions ProgressionStore
	notifier     notification.Notifier
	now          func() time.Time
}

func NewProgressionService(progressions ProgressionStore, notifier notification.Notifier) *ProgressionService {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &ProgressionService{
		progressions: progressions,
		notifier:     notifier,
		now:          time.Now,
	}
}

// AwardActivityXP converts one recorded activity into XP: a flat base
// plus a duration bonus, capped, then scaled by the streak multiplier at
// this moment. Level-ups detected here go out to the notification
// collaborator.
func (s *ProgressionService) AwardActivityXP(ctx context.Context, userID uuid.UUID, act *tracking.ActivityRecord) (*ProgressionDelta, error) {
	if act.DurationMinutes < 0 {
		return nil, fmt.Errorf("negative duration %d: %w", act.DurationMinutes, ErrValidation)
	}

	p, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	base := activityBaseXP + act.DurationMinutes/minutesPerBonusXP
	if base > activityXPCap {
		base = activityXPCap
	}
	amount := int(math.Round(float64(base) * p.StreakMultiplier))

	now := s.now()
	gained := progression.AddXP(p, amount, now)
	p.UpdatedAt = now

	if err := s.progressions.UpsertProgression(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save progression: %w", err)
	}

	if gained > 0 {
		levelUps.Add(float64(gained))
		if err := s.notifier.Notify(ctx, notification.LevelUp(userID, p.CurrentLevel, string(p.LevelTier))); err != nil {
			log.Printf("ProgressionService: level-up notification failed for %s: %v", userID, err)
		}
	}

	return &ProgressionDelta{
		XPAwarded:     amount,
		LevelsGained:  gained,
		NewLevel:      p.CurrentLevel,
		Tier:          p.LevelTier,
		Multiplier:    p.StreakMultiplier,
		TotalXP:       p.TotalXP,
		XPToNextLevel: p.XPToNextLevel,
	}, nil
}

// SyncStreak mirrors a refreshed streak reading into the user's
// progression so the multiplier tracks the best current streak. Callers
// pass the maximum across the user's entities, not the one they just
// touched.
func (s *ProgressionService) SyncStreak(ctx context.Context, userID uuid.UUID, current, longest int) error {
	p, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	progression.SyncStreak(p, current, longest)
	p.UpdatedAt = s.now()
	if err := s.progressions.UpsertProgression(ctx, p); err != nil {
		return fmt.Errorf("failed to save progression: %w", err)
	}
	return nil
}

// GetProgression returns the user's progression, materializing a level-1
// row for first-time users.
func (s *ProgressionService) GetProgression(ctx context.Context, userID uuid.UUID) (*progression.UserProgression, error) {
	return s.loadOrCreate(ctx, userID)
}

func (s *ProgressionService) loadOrCreate(ctx context.Context, userID uuid.UUID) (*progression.UserProgression, error) {
	p, err := s.progressions.GetProgression(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load progression: %w", err)
	}
	p = progression.New(userID)
	p.UpdatedAt = s.now()
	if err := s.progressions.UpsertProgression(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create progression: %w", err)
	}
	return p, nil
}
