package challenge

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newParticipation() *Participation {
	return &Participation{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		ChallengeID:        uuid.New(),
		StageProgress:      map[int]float64{},
		MilestonesAchieved: map[int]bool{},
		JoinedAt:           time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func at(d, hour int) time.Time {
	return time.Date(2024, 5, d, hour, 0, 0, 0, time.UTC)
}

func TestApplyMilestoneFiresOnce(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 100}
	p := newParticipation()

	out := Apply(p, c, &ProgressUpdate{NewValue: 40, Timestamp: at(1, 10)})
	if !reflect.DeepEqual(out.CrossedMilestones, []int{25}) {
		t.Fatalf("first update crossed %v, want [25]", out.CrossedMilestones)
	}

	out = Apply(p, c, &ProgressUpdate{NewValue: 60, Timestamp: at(2, 10)})
	if !reflect.DeepEqual(out.CrossedMilestones, []int{50}) {
		t.Fatalf("second update crossed %v, want [50]", out.CrossedMilestones)
	}

	// Replaying the same value recrosses nothing.
	out = Apply(p, c, &ProgressUpdate{NewValue: 60, Timestamp: at(2, 11)})
	if len(out.CrossedMilestones) != 0 {
		t.Fatalf("replay crossed %v, want none", out.CrossedMilestones)
	}
}

func TestApplyProgressNeverDecreases(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 200}
	p := newParticipation()

	Apply(p, c, &ProgressUpdate{NewValue: 120, Timestamp: at(1, 10)})
	Apply(p, c, &ProgressUpdate{NewValue: 80, Timestamp: at(2, 10)})

	if p.CurrentProgress != 120 {
		t.Errorf("CurrentProgress = %v, want 120 after stale report", p.CurrentProgress)
	}
	if p.ProgressPercentage != 60 {
		t.Errorf("ProgressPercentage = %v, want 60", p.ProgressPercentage)
	}
}

func TestApplyJumpCrossesSeveralMilestones(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 100}
	p := newParticipation()

	out := Apply(p, c, &ProgressUpdate{NewValue: 80, Timestamp: at(1, 10)})
	if !reflect.DeepEqual(out.CrossedMilestones, []int{25, 50, 75}) {
		t.Fatalf("crossed %v, want [25 50 75]", out.CrossedMilestones)
	}
	if out.Completed {
		t.Error("completed below target")
	}
}

func TestApplyCompletionFiresOnce(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 50}
	p := newParticipation()

	done := at(3, 9)
	out := Apply(p, c, &ProgressUpdate{NewValue: 50, Timestamp: done})
	if !out.Completed {
		t.Fatal("expected completion at 100%")
	}
	if p.CompletedAt == nil || !p.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want %v", p.CompletedAt, done)
	}

	out = Apply(p, c, &ProgressUpdate{NewValue: 55, Timestamp: at(4, 9)})
	if out.Completed {
		t.Error("completion fired twice")
	}
	if !p.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt moved to %v", p.CompletedAt)
	}
}

func TestApplyOvershootCapsAtHundred(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 50}
	p := newParticipation()

	Apply(p, c, &ProgressUpdate{NewValue: 150, Timestamp: at(1, 10)})

	if p.ProgressPercentage != 100 {
		t.Errorf("ProgressPercentage = %v, want 100", p.ProgressPercentage)
	}
	if p.CurrentProgress != 150 {
		t.Errorf("CurrentProgress = %v, want raw 150", p.CurrentProgress)
	}
}

func TestApplyStageProgress(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 100, StageCount: 4}
	p := newParticipation()

	// 30 overall fills stage 1 (0-25) and is 20% into stage 2 (25-50).
	Apply(p, c, &ProgressUpdate{NewValue: 30, Stage: 1, Timestamp: at(1, 10)})
	if p.StageProgress[1] != 100 {
		t.Errorf("StageProgress[1] = %v, want 100", p.StageProgress[1])
	}

	Apply(p, c, &ProgressUpdate{NewValue: 30, Stage: 2, Timestamp: at(1, 11)})
	if p.StageProgress[2] != 20 {
		t.Errorf("StageProgress[2] = %v, want 20", p.StageProgress[2])
	}

	// Out-of-range stages are ignored.
	Apply(p, c, &ProgressUpdate{NewValue: 30, Stage: 9, Timestamp: at(1, 12)})
	if _, ok := p.StageProgress[9]; ok {
		t.Error("stage beyond StageCount recorded")
	}
}

func TestUpdateStreak(t *testing.T) {
	c := &Challenge{ID: uuid.New(), TargetValue: 1000}
	p := newParticipation()

	Apply(p, c, &ProgressUpdate{NewValue: 1, Timestamp: at(1, 9)})
	Apply(p, c, &ProgressUpdate{NewValue: 2, Timestamp: at(1, 20)}) // same day
	Apply(p, c, &ProgressUpdate{NewValue: 3, Timestamp: at(2, 9)})  // next day
	Apply(p, c, &ProgressUpdate{NewValue: 4, Timestamp: at(3, 9)})  // next day

	if p.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", p.CurrentStreak)
	}

	// A missed day resets to 1 but best is kept.
	Apply(p, c, &ProgressUpdate{NewValue: 5, Timestamp: at(7, 9)})
	if p.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1 after gap", p.CurrentStreak)
	}
	if p.BestStreak != 3 {
		t.Errorf("BestStreak = %d, want 3", p.BestStreak)
	}
}
