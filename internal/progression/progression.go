package progression

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const xpBase = 100.0

// Tier is a named band of levels.
type Tier string

const (
	TierNovice      Tier = "novice"
	TierApprentice  Tier = "apprentice"
	TierAdept       Tier = "adept"
	TierExpert      Tier = "expert"
	TierMaster      Tier = "master"
	TierGrandmaster Tier = "grandmaster"
)

// UserProgression is the aggregate per-user state of XP, level, points and
// streak multiplier. One row per user.
type UserProgression struct {
	UserID           uuid.UUID  `json:"user_id" db:"user_id"`
	TotalXP          int        `json:"total_xp" db:"total_xp"`
	CurrentLevel     int        `json:"current_level" db:"current_level"`
	XPToNextLevel    int        `json:"xp_to_next_level" db:"xp_to_next_level"`
	LevelTier        Tier       `json:"level_tier" db:"level_tier"`
	CurrentPoints    int        `json:"current_points" db:"current_points"`
	LifetimePoints   int        `json:"lifetime_points" db:"lifetime_points"`
	CurrentStreak    int        `json:"current_streak" db:"current_streak"`
	LongestStreak    int        `json:"longest_streak" db:"longest_streak"`
	StreakMultiplier float64    `json:"streak_multiplier" db:"streak_multiplier"`
	LastLevelUp      *time.Time `json:"last_level_up" db:"last_level_up"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// New returns a fresh level-1 progression for a user.
func New(userID uuid.UUID) *UserProgression {
	return &UserProgression{
		UserID:           userID,
		CurrentLevel:     1,
		XPToNextLevel:    LevelXP(2),
		LevelTier:        TierForLevel(1),
		StreakMultiplier: 1.0,
	}
}

// LevelXP returns the total XP required to reach level n:
// 0 for n <= 1, else 100 * (n-1)^1.5, truncated to an int.
func LevelXP(n int) int {
	if n <= 1 {
		return 0
	}
	return int(xpBase * math.Pow(float64(n-1), 1.5))
}

// TierForLevel maps a level to its tier band.
func TierForLevel(level int) Tier {
	switch {
	case level < 5:
		return TierNovice
	case level < 10:
		return TierApprentice
	case level < 20:
		return TierAdept
	case level < 35:
		return TierExpert
	case level < 50:
		return TierMaster
	default:
		return TierGrandmaster
	}
}

// MultiplierForStreak is the step function mapping a day streak to the
// point/XP multiplier, bounded to [1.0, 3.0].
func MultiplierForStreak(streak int) float64 {
	switch {
	case streak >= 30:
		return 3.0
	case streak >= 14:
		return 2.0
	case streak >= 7:
		return 1.5
	default:
		return 1.0 + 0.1*float64(streak)
	}
}

// AddXP adds amount to the progression, advancing the level while the
// total covers the next level's requirement. It returns the number of
// levels gained. XPToNextLevel and LevelTier are recomputed on every call.
func AddXP(p *UserProgression, amount int, now time.Time) int {
	p.TotalXP += amount
	gained := 0
	for p.TotalXP >= LevelXP(p.CurrentLevel+1) {
		p.CurrentLevel++
		gained++
	}
	if gained > 0 {
		t := now
		p.LastLevelUp = &t
	}
	p.XPToNextLevel = LevelXP(p.CurrentLevel+1) - p.TotalXP
	p.LevelTier = TierForLevel(p.CurrentLevel)
	return gained
}

// SyncStreak copies the user's best entity streak into the progression
// and refreshes the multiplier.
func SyncStreak(p *UserProgression, current, longest int) {
	p.CurrentStreak = current
	if longest > p.LongestStreak {
		p.LongestStreak = longest
	}
	p.StreakMultiplier = MultiplierForStreak(current)
}
