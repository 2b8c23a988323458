package challenge

import (
	"time"

	"github.com/google/uuid"
)

// PercentageMilestones are the participation progress thresholds, each
// fired at most once per participation.
var PercentageMilestones = [4]int{25, 50, 75, 100}

// Challenge is a catalog entry: a target to reach, optionally split into
// ordered stages whose advancement is driven outside the tracker.
type Challenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	TargetValue float64   `json:"target_value" db:"target_value"`
	StageCount  int       `json:"stage_count" db:"stage_count"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Participation tracks one user inside one challenge. CurrentProgress is
// monotonic non-decreasing; milestone membership gates reward firing.
type Participation struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	UserID             uuid.UUID          `json:"user_id" db:"user_id"`
	ChallengeID        uuid.UUID          `json:"challenge_id" db:"challenge_id"`
	CurrentProgress    float64            `json:"current_progress" db:"current_progress"`
	ProgressPercentage float64            `json:"progress_percentage" db:"progress_percentage"`
	CurrentStage       int                `json:"current_stage" db:"current_stage"`
	StageProgress      map[int]float64    `json:"stage_progress" db:"stage_progress"`
	MilestonesAchieved map[int]bool       `json:"milestones_achieved" db:"milestones_achieved"`
	PointsEarned       int                `json:"points_earned" db:"points_earned"`
	BadgesEarned       map[uuid.UUID]bool `json:"badges_earned" db:"badges_earned"`
	CurrentStreak      int                `json:"current_streak" db:"current_streak"`
	BestStreak         int                `json:"best_streak" db:"best_streak"`
	LastProgressAt     *time.Time         `json:"last_progress_at" db:"last_progress_at"`
	CompletedAt        *time.Time         `json:"completed_at" db:"completed_at"`
	JoinedAt           time.Time          `json:"joined_at" db:"joined_at"`
}

// ProgressUpdate is the inbound fact for one progress report.
type ProgressUpdate struct {
	ParticipationID uuid.UUID `json:"participation_id"`
	NewValue        float64   `json:"new_value"`
	Stage           int       `json:"stage"`
	Timestamp       time.Time `json:"timestamp"`
}

// Outcome describes what a single update changed: milestones newly
// crossed (percentage thresholds) and whether the participation just
// completed. Completed fires exactly once, when the percentage first
// reaches 100 from below.
type Outcome struct {
	CrossedMilestones []int
	Completed         bool
}
