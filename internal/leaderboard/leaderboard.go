package leaderboard

import (
	"time"

	"github.com/google/uuid"
)

// Type scopes who appears on the board.
type Type string

const (
	TypeGlobal  Type = "global"
	TypeFriends Type = "friends"
)

// Metric is what the board ranks by. Ties break on the secondary metric:
// points then streak, streak then points, xp then points.
type Metric string

const (
	MetricPoints Metric = "points"
	MetricStreak Metric = "streak"
	MetricXP     Metric = "xp"
)

// Period bounds the underlying query window. Daily, weekly and monthly
// filter by a computed window; all-time does not filter.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// Key identifies one cached snapshot.
type Key struct {
	Type   Type
	Metric Metric
	Period Period
}

// Entry is one ranked row.
type Entry struct {
	Rank          int       `json:"rank"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Username      string    `json:"username" db:"username"`
	ImageURL      *string   `json:"image_url" db:"image_url"`
	Score         float64   `json:"score" db:"score"`
	Points        int       `json:"points" db:"points"`
	CurrentStreak int       `json:"current_streak" db:"current_streak"`
	Level         int       `json:"level" db:"level"`
}

// Snapshot is a cached ranked list, valid until LastCalculated+TTL.
type Snapshot struct {
	Key            Key           `json:"key"`
	Entries        []Entry       `json:"entries"`
	LastCalculated time.Time     `json:"last_calculated"`
	TTL            time.Duration `json:"ttl"`
	Views          int64         `json:"views"`
}

// Window returns the [from, to) query bounds for a period ending now.
// The zero from means unbounded (all-time).
func (p Period) Window(now time.Time) (from, to time.Time) {
	now = now.UTC()
	to = now
	switch p {
	case PeriodDaily:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodWeekly:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday start
		from = day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return from, to
}

// Valid reports whether the key's components are all recognized.
func (k Key) Valid() bool {
	switch k.Type {
	case TypeGlobal, TypeFriends:
	default:
		return false
	}
	switch k.Metric {
	case MetricPoints, MetricStreak, MetricXP:
	default:
		return false
	}
	switch k.Period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
	default:
		return false
	}
	return true
}

func (k Key) String() string {
	return string(k.Type) + ":" + string(k.Metric) + ":" + string(k.Period)
}
