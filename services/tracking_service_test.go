package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/reward"
	"upholdAPI/internal/tracking"
)

func newTrackingFixture(f *fakeStore) *TrackingService {
	progressions := NewProgressionService(f, nil)
	rewards := NewRewardService(f, f)
	return NewTrackingService(f, f, progressions, rewards, reward.DefaultPool())
}

func seedEntity(f *fakeStore, userID uuid.UUID, createdAt time.Time) *tracking.TrackableEntity {
	e := &tracking.TrackableEntity{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               "meditation",
		Kind:               tracking.KindValue,
		MilestonesAchieved: map[int]bool{},
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	f.entities[e.ID] = e
	return e
}

func TestRecordActivityAwardsXPAndMilestone(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	entity := seedEntity(f, userID, created)

	svc := newTrackingFixture(f)

	at := created.AddDate(0, 0, 7)
	result, err := svc.RecordActivity(context.Background(), userID, entity.ID, 60, at)
	if err != nil {
		t.Fatal(err)
	}

	if result.Entity.CurrentStreak != 7 {
		t.Errorf("CurrentStreak = %d, want 7", result.Entity.CurrentStreak)
	}
	if !result.Entity.MilestonesAchieved[7] {
		t.Error("7-day milestone not marked achieved")
	}

	if len(result.Grants) != 1 {
		t.Fatalf("grants = %d, want 1", len(result.Grants))
	}
	// Streak reward resolves before the streak sync, so the multiplier
	// is still 1.0: 5 base * 7.
	if result.Grants[0].Points != 35 {
		t.Errorf("milestone Points = %d, want 35", result.Grants[0].Points)
	}

	// XP: base 10 + 60/5 = 22, scaled by the freshly synced 1.5 multiplier.
	if result.Progression.XPAwarded != 33 {
		t.Errorf("XPAwarded = %d, want 33", result.Progression.XPAwarded)
	}
	if result.Progression.Multiplier != 1.5 {
		t.Errorf("Multiplier = %v, want 1.5", result.Progression.Multiplier)
	}

	if len(f.activities) != 1 {
		t.Errorf("ledger activities = %d, want 1", len(f.activities))
	}
}

func TestRecordActivityMilestoneFiresOnce(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	entity := seedEntity(f, userID, created)

	svc := newTrackingFixture(f)
	at := created.AddDate(0, 0, 7)

	first, err := svc.RecordActivity(context.Background(), userID, entity.ID, 10, at)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Grants) != 1 {
		t.Fatalf("first grants = %d, want 1", len(first.Grants))
	}

	second, err := svc.RecordActivity(context.Background(), userID, entity.ID, 10, at.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Grants) != 0 {
		t.Errorf("second grants = %d, want 0", len(second.Grants))
	}
}

func TestRecordActivityXPCap(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	entity := seedEntity(f, userID, created)

	svc := newTrackingFixture(f)

	// A marathon session: the duration bonus is capped at 30 base XP.
	result, err := svc.RecordActivity(context.Background(), userID, entity.ID, 600, created.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if result.Progression.XPAwarded != 30 {
		t.Errorf("XPAwarded = %d, want capped 30", result.Progression.XPAwarded)
	}
}

func TestRecordActivityValidation(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	entity := seedEntity(f, userID, time.Now().Add(-24*time.Hour))
	svc := newTrackingFixture(f)

	_, err := svc.RecordActivity(context.Background(), userID, entity.ID, -5, time.Now())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(f.activities) != 0 {
		t.Error("invalid activity reached the ledger")
	}
}

func TestRecordActivityRejectsForeignEntity(t *testing.T) {
	f := newFakeStore()
	owner := uuid.New()
	entity := seedEntity(f, owner, time.Now().Add(-24*time.Hour))
	svc := newTrackingFixture(f)

	_, err := svc.RecordActivity(context.Background(), uuid.New(), entity.ID, 10, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for foreign entity", err)
	}
}

func TestRecordIndulgenceResetsStreak(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	entity := seedEntity(f, userID, created)
	entity.Kind = tracking.KindVice
	entity.CurrentStreak = 12
	entity.LongestStreak = 12

	svc := newTrackingFixture(f)

	at := created.AddDate(0, 0, 12)
	updated, err := svc.RecordIndulgence(context.Background(), userID, entity.ID, at)
	if err != nil {
		t.Fatal(err)
	}

	if updated.CurrentStreak != 0 {
		t.Errorf("CurrentStreak = %d, want 0", updated.CurrentStreak)
	}
	if updated.LongestStreak != 12 {
		t.Errorf("LongestStreak = %d, want preserved 12", updated.LongestStreak)
	}
	if updated.LastIndulgenceAt == nil || !updated.LastIndulgenceAt.Equal(at) {
		t.Errorf("LastIndulgenceAt = %v, want %v", updated.LastIndulgenceAt, at)
	}
	if len(f.indulgences) != 1 {
		t.Errorf("ledger indulgences = %d, want 1", len(f.indulgences))
	}

	// The progression multiplier follows the streak back down.
	p := f.progressions[userID]
	if p == nil || p.StreakMultiplier != 1.0 {
		t.Errorf("progression multiplier = %+v, want 1.0", p)
	}
}

func TestCreateEntityValidation(t *testing.T) {
	f := newFakeStore()
	svc := newTrackingFixture(f)

	if _, err := svc.CreateEntity(context.Background(), uuid.New(), "", tracking.KindValue); !errors.Is(err, ErrValidation) {
		t.Errorf("empty name err = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateEntity(context.Background(), uuid.New(), "running", "habit"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad kind err = %v, want ErrValidation", err)
	}

	e, err := svc.CreateEntity(context.Background(), uuid.New(), "running", tracking.KindValue)
	if err != nil {
		t.Fatal(err)
	}
	if e.MilestonesAchieved == nil {
		t.Error("MilestonesAchieved not initialized")
	}
}

func TestListEntitiesRefreshesWithoutRewards(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	seedEntity(f, userID, time.Now().UTC().AddDate(0, 0, -10))

	svc := newTrackingFixture(f)

	entities, err := svc.ListEntities(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(entities))
	}
	if entities[0].CurrentStreak != 10 {
		t.Errorf("CurrentStreak = %d, want 10", entities[0].CurrentStreak)
	}

	// Reads never claim milestone rewards.
	if len(f.claims) != 0 {
		t.Errorf("claims = %d, want 0 from a read", len(f.claims))
	}
}

func TestRecordIndulgenceKeepsBestStreakMultiplier(t *testing.T) {
	f := newFakeStore()
	userID := uuid.New()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	// A value with a 30-day run and a vice about to slip.
	seedEntity(f, userID, created)
	vice := seedEntity(f, userID, created)
	vice.Kind = tracking.KindVice
	vice.CurrentStreak = 12
	vice.LongestStreak = 12

	svc := newTrackingFixture(f)

	at := created.AddDate(0, 0, 30)
	if _, err := svc.RecordIndulgence(context.Background(), userID, vice.ID, at); err != nil {
		t.Fatal(err)
	}

	// The vice reset must not drag the multiplier down while the value
	// still holds its streak.
	p := f.progressions[userID]
	if p == nil {
		t.Fatal("progression never synced")
	}
	if p.CurrentStreak != 30 {
		t.Errorf("CurrentStreak = %d, want the value's 30", p.CurrentStreak)
	}
	if p.StreakMultiplier != 3.0 {
		t.Errorf("StreakMultiplier = %v, want 3.0", p.StreakMultiplier)
	}
}
