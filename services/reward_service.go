package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/progression"
	"upholdAPI/internal/reward"
)

// RewardService converts detected progression events into persisted
// grants, guarding every event with a conditional claim so retried or
// concurrent calls never apply it twice.
type RewardService struct {
	rewards      RewardStore
	progressions ProgressionStore
	now          func() time.Time
}

func NewRewardService(rewards RewardStore, progressions ProgressionStore) *RewardService {
	return &RewardService{
		rewards:      rewards,
		progressions: progressions,
		now:          time.Now,
	}
}

// GrantEvent resolves and applies one event against the pool. A
// previously applied event returns a no-op grant with StatusDuplicate
// and no error. The claim commits inside the same transaction as the
// grant, so a write failure never consumes the idempotency key and the
// caller can retry. The point amount picks up the user's streak
// multiplier at this moment, never retroactively.
func (s *RewardService) GrantEvent(ctx context.Context, e reward.Event, pool reward.Pool) (*reward.Grant, error) {
	grant, err := reward.Resolve(e, pool, s.multiplierFor(ctx, e.UserID), s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reward event: %w", err)
	}

	var userBadge *reward.UserBadge
	if grant.BadgeID != nil {
		userBadge, err = s.stackBadge(ctx, e, &grant)
		if err != nil {
			return nil, err
		}
	}

	applied, err := s.rewards.ApplyGrant(ctx, e.IdempotencyKey(), &grant, userBadge)
	if err != nil {
		return nil, fmt.Errorf("failed to apply reward grant: %w", err)
	}
	if !applied {
		rewardGrants.WithLabelValues(string(e.Kind), string(reward.StatusDuplicate)).Inc()
		return &reward.Grant{
			UserID:   e.UserID,
			Kind:     e.Kind,
			Identity: e.Identity,
			Status:   reward.StatusDuplicate,
		}, nil
	}

	rewardGrants.WithLabelValues(string(e.Kind), string(grant.Status)).Inc()
	return &grant, nil
}

// GrantBadge applies the stacking rules for a direct badge grant. The
// second grant of a non-stackable badge (or a full stack) reports
// StatusDuplicate and leaves the stack count untouched.
func (s *RewardService) GrantBadge(ctx context.Context, userID, badgeID uuid.UUID, earnedFrom string) (*reward.UserBadge, reward.GrantStatus, error) {
	badge, err := s.rewards.GetBadge(ctx, badgeID)
	if err != nil {
		return nil, "", fmt.Errorf("badge %s: %w", badgeID, err)
	}

	existing, err := s.rewards.GetUserBadge(ctx, userID, badgeID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load badge grant: %w", err)
	}

	outcome := reward.DecideStack(badge, existing)
	if !outcome.Applied {
		return existing, reward.StatusDuplicate, nil
	}

	ub := existing
	if ub == nil {
		ub = &reward.UserBadge{
			ID:         uuid.New(),
			UserID:     userID,
			BadgeID:    badgeID,
			EarnedFrom: earnedFrom,
			EarnedAt:   s.now(),
		}
	}
	ub.StackCount = outcome.StackCount

	grant := reward.Grant{
		UserID:    userID,
		Kind:      reward.EventMilestone,
		Identity:  earnedFrom,
		BadgeID:   &badgeID,
		Status:    reward.StatusGranted,
		GrantedAt: s.now(),
	}
	if _, err := s.rewards.ApplyGrant(ctx, "", &grant, ub); err != nil {
		return nil, "", fmt.Errorf("failed to apply badge grant: %w", err)
	}
	return ub, reward.StatusGranted, nil
}

// stackBadge prepares the badge row for an event grant, clearing the
// grant's badge when stacking rules make it a no-op.
func (s *RewardService) stackBadge(ctx context.Context, e reward.Event, grant *reward.Grant) (*reward.UserBadge, error) {
	badge, err := s.rewards.GetBadge(ctx, *grant.BadgeID)
	if err != nil {
		return nil, fmt.Errorf("badge %s: %w", grant.BadgeID, err)
	}
	existing, err := s.rewards.GetUserBadge(ctx, e.UserID, badge.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge grant: %w", err)
	}

	outcome := reward.DecideStack(badge, existing)
	if !outcome.Applied {
		log.Printf("RewardService: badge %s already granted to %s, skipping", badge.ID, e.UserID)
		grant.BadgeID = nil
		return nil, nil
	}

	ub := existing
	if ub == nil {
		ub = &reward.UserBadge{
			ID:         uuid.New(),
			UserID:     e.UserID,
			BadgeID:    badge.ID,
			EarnedFrom: e.Identity,
			EarnedAt:   s.now(),
		}
	}
	ub.StackCount = outcome.StackCount
	return ub, nil
}

// multiplierFor reads the user's streak multiplier, defaulting to 1.0
// for users with no progression row yet.
func (s *RewardService) multiplierFor(ctx context.Context, userID uuid.UUID) float64 {
	p, err := s.progressions.GetProgression(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("RewardService: failed to load progression for %s: %v", userID, err)
		}
		return 1.0
	}
	return progression.MultiplierForStreak(p.CurrentStreak)
}
