package services

import (
	"context"
	"fmt"
	"time"

	"upholdAPI/internal/leaderboard"
)

// maxLeaderboardEntries is how many rows a snapshot holds; callers slice
// down to their requested limit so every reader of a key shares one
// cached computation.
const maxLeaderboardEntries = 100

// DefaultLeaderboardTTL bounds how stale a served snapshot may be.
const DefaultLeaderboardTTL = 5 * time.Minute

// LeaderboardService serves ranked snapshots per (type, metric, period)
// key, recomputing through a single-flight cache when the TTL lapses.
type LeaderboardService struct {
	store LeaderboardStore
	cache *leaderboard.Cache
}

func NewLeaderboardService(store LeaderboardStore, ttl time.Duration) *LeaderboardService {
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	s := &LeaderboardService{store: store}
	s.cache = leaderboard.NewCache(ttl, s.recompute)
	return s
}

// GetLeaderboard returns the snapshot for the key, truncated to limit.
// The cache hands every caller its own copy, so the truncation never
// touches what other readers of the same key receive; an expired key
// recomputes exactly once regardless of caller concurrency.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, key leaderboard.Key, limit int) (*leaderboard.Snapshot, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("invalid leaderboard key %s: %w", key, ErrValidation)
	}
	if limit <= 0 || limit > maxLeaderboardEntries {
		limit = maxLeaderboardEntries
	}

	snap, cached, err := s.cache.Get(ctx, key)
	if err != nil {
		leaderboardReads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if cached {
		leaderboardReads.WithLabelValues("hit").Inc()
	}

	if len(snap.Entries) > limit {
		snap.Entries = snap.Entries[:limit]
	}
	return snap, nil
}

// recompute runs the ranked query for the key's window. It counts one
// recomputation no matter how many callers coalesced onto it.
func (s *LeaderboardService) recompute(ctx context.Context, key leaderboard.Key) ([]leaderboard.Entry, error) {
	from, to := key.Period.Window(time.Now())
	entries, err := s.store.QueryRanked(ctx, key, from, to, maxLeaderboardEntries)
	if err != nil {
		return nil, fmt.Errorf("ranked query failed: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	leaderboardReads.WithLabelValues("recompute").Inc()
	return entries, nil
}
