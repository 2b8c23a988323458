package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/achievement"
	"upholdAPI/internal/challenge"
	"upholdAPI/internal/leaderboard"
	"upholdAPI/internal/progression"
	"upholdAPI/internal/reward"
	"upholdAPI/internal/tracking"
)

// The engine's storage contract is deliberately narrow: point lookups by
// id or user, timestamp-range reads over the append-only ledger,
// upserts, and one conditional claim inside the grant write. Nothing
// here assumes a particular storage engine; postgres_store.go is the
// production implementation.

type EntityStore interface {
	GetEntity(ctx context.Context, entityID uuid.UUID) (*tracking.TrackableEntity, error)
	ListEntitiesByUser(ctx context.Context, userID uuid.UUID) ([]tracking.TrackableEntity, error)
	UpsertEntity(ctx context.Context, e *tracking.TrackableEntity) error
}

type LedgerStore interface {
	AppendActivity(ctx context.Context, rec *tracking.ActivityRecord) error
	AppendIndulgence(ctx context.Context, rec *tracking.IndulgenceRecord) error
	// ActivitiesByUser returns records in [from, to); a zero from means
	// unbounded history.
	ActivitiesByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]tracking.ActivityRecord, error)
}

type ProgressionStore interface {
	// GetProgression returns ErrNotFound for users with no row yet.
	GetProgression(ctx context.Context, userID uuid.UUID) (*progression.UserProgression, error)
	UpsertProgression(ctx context.Context, p *progression.UserProgression) error
}

type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]achievement.Achievement, error)
	ListStates(ctx context.Context, userID uuid.UUID) ([]achievement.State, error)
	UpsertState(ctx context.Context, s *achievement.State) error
}

type ChallengeStore interface {
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	GetParticipation(ctx context.Context, id uuid.UUID) (*challenge.Participation, error)
	UpsertParticipation(ctx context.Context, p *challenge.Participation) error
}

type RewardStore interface {
	GetBadge(ctx context.Context, badgeID uuid.UUID) (*reward.Badge, error)
	// GetUserBadge returns (nil, nil) when the user has no grant yet.
	GetUserBadge(ctx context.Context, userID, badgeID uuid.UUID) (*reward.UserBadge, error)
	// ApplyGrant persists the full grant atomically: the conditional
	// idempotency claim when claimKey is non-empty, the point credit,
	// and the badge upsert when badge is non-nil. Either all of it lands
	// or none of it does. Returns false without applying anything when
	// the claim key was already taken; a failed apply leaves the key
	// unclaimed so a retry can land the grant.
	ApplyGrant(ctx context.Context, claimKey string, g *reward.Grant, badge *reward.UserBadge) (bool, error)
}

type LeaderboardStore interface {
	// QueryRanked returns entries sorted descending by the key's metric
	// with a stable secondary tie-break, filtered to [from, to) when from
	// is non-zero.
	QueryRanked(ctx context.Context, key leaderboard.Key, from, to time.Time, limit int) ([]leaderboard.Entry, error)
}
