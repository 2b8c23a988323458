package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/challenge"
	"upholdAPI/internal/reward"
)

// ChallengeService folds inbound progress updates into participations
// and routes crossed milestones and completions through the reward
// resolver.
type ChallengeService struct {
	challenges ChallengeStore
	rewards    *RewardService
	pool       reward.Pool
	now        func() time.Time
}

func NewChallengeService(challenges ChallengeStore, rewards *RewardService, pool reward.Pool) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		rewards:    rewards,
		pool:       pool,
		now:        time.Now,
	}
}

// UpdateChallengeProgress applies one progress report. Progress never
// decreases; each percentage milestone pays out at most once per
// participation, and completion fires exactly once when the percentage
// first reaches 100.
func (s *ChallengeService) UpdateChallengeProgress(ctx context.Context, userID, participationID uuid.UUID, update challenge.ProgressUpdate) (*challenge.Participation, []*reward.Grant, error) {
	if update.NewValue < 0 {
		return nil, nil, fmt.Errorf("negative progress %f: %w", update.NewValue, ErrValidation)
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = s.now()
	}

	p, err := s.challenges.GetParticipation(ctx, participationID)
	if err != nil {
		return nil, nil, fmt.Errorf("participation %s: %w", participationID, err)
	}
	if p.UserID != userID {
		return nil, nil, fmt.Errorf("participation %s: %w", participationID, ErrNotFound)
	}
	c, err := s.challenges.GetChallenge(ctx, p.ChallengeID)
	if err != nil {
		return nil, nil, fmt.Errorf("challenge %s: %w", p.ChallengeID, err)
	}

	outcome := challenge.Apply(p, c, &update)

	var grants []*reward.Grant
	for _, m := range outcome.CrossedMilestones {
		grant, err := s.rewards.GrantEvent(ctx, reward.Event{
			UserID:   p.UserID,
			Kind:     reward.EventMilestone,
			Identity: "participation:" + p.ID.String() + ":pct:" + strconv.Itoa(m),
			Value:    m,
		}, s.pool)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to grant %d%% milestone: %w", m, err)
		}
		s.fold(p, grant)
		grants = append(grants, grant)
	}

	if outcome.Completed {
		grant, err := s.rewards.GrantEvent(ctx, reward.Event{
			UserID:   p.UserID,
			Kind:     reward.EventCompletion,
			Identity: "participation:" + p.ID.String() + ":completed",
			Value:    1,
		}, s.pool)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to grant completion: %w", err)
		}
		s.fold(p, grant)
		grants = append(grants, grant)
	}

	if err := s.challenges.UpsertParticipation(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("failed to save participation: %w", err)
	}

	return p, grants, nil
}

// fold mirrors a grant's payout into the participation's own counters.
func (s *ChallengeService) fold(p *challenge.Participation, g *reward.Grant) {
	if g.Status != reward.StatusGranted {
		return
	}
	p.PointsEarned += g.Points
	if g.BadgeID != nil {
		if p.BadgesEarned == nil {
			p.BadgesEarned = make(map[uuid.UUID]bool)
		}
		p.BadgesEarned[*g.BadgeID] = true
	}
}
