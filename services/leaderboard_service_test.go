package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/leaderboard"
)

func seedRanked(f *fakeStore, n int) {
	for i := 0; i < n; i++ {
		f.ranked = append(f.ranked, leaderboard.Entry{
			UserID: uuid.New(),
			Score:  float64(1000 - i),
		})
	}
}

func TestGetLeaderboardAssignsRanksAndCaches(t *testing.T) {
	f := newFakeStore()
	seedRanked(f, 3)

	svc := NewLeaderboardService(f, time.Minute)
	key := leaderboard.Key{Type: leaderboard.TypeGlobal, Metric: leaderboard.MetricPoints, Period: leaderboard.PeriodAllTime}

	snap, err := svc.GetLeaderboard(context.Background(), key, 10)
	if err != nil {
		t.Fatal(err)
	}

	if len(snap.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(snap.Entries))
	}
	for i, e := range snap.Entries {
		if e.Rank != i+1 {
			t.Errorf("entry %d Rank = %d, want %d", i, e.Rank, i+1)
		}
	}

	if _, err := svc.GetLeaderboard(context.Background(), key, 10); err != nil {
		t.Fatal(err)
	}
	if f.rankedCalls != 1 {
		t.Errorf("ranked queries = %d, want 1 (second read cached)", f.rankedCalls)
	}
}

func TestGetLeaderboardTruncatesToLimit(t *testing.T) {
	f := newFakeStore()
	seedRanked(f, 40)

	svc := NewLeaderboardService(f, time.Minute)
	key := leaderboard.Key{Type: leaderboard.TypeGlobal, Metric: leaderboard.MetricStreak, Period: leaderboard.PeriodWeekly}

	snap, err := svc.GetLeaderboard(context.Background(), key, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Entries) != 5 {
		t.Errorf("entries = %d, want 5", len(snap.Entries))
	}

	// A different limit on the same key reuses the cached snapshot.
	snap, err = svc.GetLeaderboard(context.Background(), key, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Entries) != 20 {
		t.Errorf("entries = %d, want 20", len(snap.Entries))
	}
	if f.rankedCalls != 1 {
		t.Errorf("ranked queries = %d, want 1", f.rankedCalls)
	}
}

func TestGetLeaderboardRejectsInvalidKey(t *testing.T) {
	f := newFakeStore()
	svc := NewLeaderboardService(f, time.Minute)

	_, err := svc.GetLeaderboard(context.Background(), leaderboard.Key{Type: "galaxy"}, 10)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if f.rankedCalls != 0 {
		t.Error("invalid key reached the store")
	}
}

func TestGetLeaderboardSeparateKeysSeparateSnapshots(t *testing.T) {
	f := newFakeStore()
	seedRanked(f, 1)

	svc := NewLeaderboardService(f, time.Minute)
	ctx := context.Background()

	points := leaderboard.Key{Type: leaderboard.TypeGlobal, Metric: leaderboard.MetricPoints, Period: leaderboard.PeriodAllTime}
	xp := leaderboard.Key{Type: leaderboard.TypeGlobal, Metric: leaderboard.MetricXP, Period: leaderboard.PeriodAllTime}

	if _, err := svc.GetLeaderboard(ctx, points, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetLeaderboard(ctx, xp, 10); err != nil {
		t.Fatal(err)
	}

	if f.rankedCalls != 2 {
		t.Errorf("ranked queries = %d, want one per key", f.rankedCalls)
	}
}

func TestGetLeaderboardConcurrentLimitsDoNotInterfere(t *testing.T) {
	f := newFakeStore()
	seedRanked(f, 100)

	svc := NewLeaderboardService(f, time.Minute)
	key := leaderboard.Key{Type: leaderboard.TypeGlobal, Metric: leaderboard.MetricPoints, Period: leaderboard.PeriodAllTime}

	// Cold cache, one coalesced computation, every caller truncating to
	// its own limit. A limit-100 reader must never see another caller's
	// limit-10 cut.
	var wg sync.WaitGroup
	start := make(chan struct{})
	bad := make(chan string, 100)
	for i := 0; i < 100; i++ {
		limit := 10
		if i%2 == 0 {
			limit = 100
		}
		wg.Add(1)
		go func(limit int) {
			defer wg.Done()
			<-start
			snap, err := svc.GetLeaderboard(context.Background(), key, limit)
			if err != nil {
				bad <- err.Error()
				return
			}
			if len(snap.Entries) != limit {
				bad <- fmt.Sprintf("asked for limit %d, got %d entries", limit, len(snap.Entries))
			}
		}(limit)
	}
	close(start)
	wg.Wait()
	close(bad)

	for msg := range bad {
		t.Error(msg)
	}
}
