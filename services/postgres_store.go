package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"upholdAPI/internal/achievement"
	"upholdAPI/internal/challenge"
	"upholdAPI/internal/leaderboard"
	"upholdAPI/internal/notification"
	"upholdAPI/internal/progression"
	"upholdAPI/internal/reward"
	"upholdAPI/internal/tracking"
)

// PostgresStore implements every store contract against Postgres. It is
// the only component that knows SQL; the services above it see the
// narrow interfaces in store.go.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// --- EntityStore ---------------------------------------------------------

func (s *PostgresStore) GetEntity(ctx context.Context, entityID uuid.UUID) (*tracking.TrackableEntity, error) {
	query := `
	SELECT id, user_id, name, kind, current_streak, longest_streak, last_indulgence_at, milestones_achieved, created_at, updated_at
	FROM entities
	WHERE id = $1
	`

	e := &tracking.TrackableEntity{}
	var milestones []byte
	err := s.db.QueryRow(ctx, query, entityID).Scan(
		&e.ID,
		&e.UserID,
		&e.Name,
		&e.Kind,
		&e.CurrentStreak,
		&e.LongestStreak,
		&e.LastIndulgenceAt,
		&milestones,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	if err := json.Unmarshal(milestones, &e.MilestonesAchieved); err != nil {
		return nil, fmt.Errorf("failed to decode milestones: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEntitiesByUser(ctx context.Context, userID uuid.UUID) ([]tracking.TrackableEntity, error) {
	query := `
	SELECT id, user_id, name, kind, current_streak, longest_streak, last_indulgence_at, milestones_achieved, created_at, updated_at
	FROM entities
	WHERE user_id = $1
	ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []tracking.TrackableEntity
	for rows.Next() {
		var e tracking.TrackableEntity
		var milestones []byte
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Name,
			&e.Kind,
			&e.CurrentStreak,
			&e.LongestStreak,
			&e.LastIndulgenceAt,
			&milestones,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if err := json.Unmarshal(milestones, &e.MilestonesAchieved); err != nil {
			return nil, fmt.Errorf("failed to decode milestones: %w", err)
		}
		entities = append(entities, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return entities, nil
}

func (s *PostgresStore) UpsertEntity(ctx context.Context, e *tracking.TrackableEntity) error {
	milestones, err := json.Marshal(e.MilestonesAchieved)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}

	query := `
	INSERT INTO entities (id, user_id, name, kind, current_streak, longest_streak, last_indulgence_at, milestones_achieved, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id)
	DO UPDATE SET
		name = $3,
		current_streak = $5,
		longest_streak = $6,
		last_indulgence_at = $7,
		milestones_achieved = $8,
		updated_at = $10
	`

	_, err = s.db.Exec(ctx, query, e.ID, e.UserID, e.Name, e.Kind, e.CurrentStreak, e.LongestStreak, e.LastIndulgenceAt, milestones, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

// --- LedgerStore ---------------------------------------------------------

func (s *PostgresStore) AppendActivity(ctx context.Context, rec *tracking.ActivityRecord) error {
	query := `
	INSERT INTO activities (id, user_id, entity_id, duration_minutes, timestamp)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, rec.ID, rec.UserID, rec.EntityID, rec.DurationMinutes, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendIndulgence(ctx context.Context, rec *tracking.IndulgenceRecord) error {
	query := `
	INSERT INTO indulgences (id, user_id, entity_id, timestamp)
	VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query, rec.ID, rec.UserID, rec.EntityID, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append indulgence: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActivitiesByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]tracking.ActivityRecord, error) {
	query := `
	SELECT id, user_id, entity_id, duration_minutes, timestamp
	FROM activities
	WHERE user_id = $1
		AND ($2::timestamptz IS NULL OR timestamp >= $2)
		AND timestamp < $3
	ORDER BY timestamp
	`

	var fromArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}

	rows, err := s.db.Query(ctx, query, userID, fromArg, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var records []tracking.ActivityRecord
	for rows.Next() {
		var r tracking.ActivityRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.EntityID, &r.DurationMinutes, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return records, nil
}

// --- ProgressionStore ----------------------------------------------------

func (s *PostgresStore) GetProgression(ctx context.Context, userID uuid.UUID) (*progression.UserProgression, error) {
	query := `
	SELECT user_id, total_xp, current_level, xp_to_next_level, level_tier, current_points, lifetime_points, current_streak, longest_streak, streak_multiplier, last_level_up, updated_at
	FROM user_progression
	WHERE user_id = $1
	`

	p := &progression.UserProgression{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.TotalXP,
		&p.CurrentLevel,
		&p.XPToNextLevel,
		&p.LevelTier,
		&p.CurrentPoints,
		&p.LifetimePoints,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.StreakMultiplier,
		&p.LastLevelUp,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get progression: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProgression(ctx context.Context, p *progression.UserProgression) error {
	query := `
	INSERT INTO user_progression (user_id, total_xp, current_level, xp_to_next_level, level_tier, current_points, lifetime_points, current_streak, longest_streak, streak_multiplier, last_level_up, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (user_id)
	DO UPDATE SET
		total_xp = $2,
		current_level = $3,
		xp_to_next_level = $4,
		level_tier = $5,
		current_points = $6,
		lifetime_points = $7,
		current_streak = $8,
		longest_streak = $9,
		streak_multiplier = $10,
		last_level_up = $11,
		updated_at = $12
	`

	_, err := s.db.Exec(ctx, query, p.UserID, p.TotalXP, p.CurrentLevel, p.XPToNextLevel, p.LevelTier, p.CurrentPoints, p.LifetimePoints, p.CurrentStreak, p.LongestStreak, p.StreakMultiplier, p.LastLevelUp, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert progression: %w", err)
	}
	return nil
}

// --- AchievementStore ----------------------------------------------------

func (s *PostgresStore) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	query := `
	SELECT id, name, description, icon, kind, required_value, COALESCE(special_rule, ''), created_at
	FROM achievements
	ORDER BY required_value, name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var catalog []achievement.Achievement
	for rows.Next() {
		var a achievement.Achievement
		err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &a.Kind, &a.RequiredValue, &a.SpecialRule, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		catalog = append(catalog, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return catalog, nil
}

func (s *PostgresStore) ListStates(ctx context.Context, userID uuid.UUID) ([]achievement.State, error) {
	query := `
	SELECT achievement_id, user_id, progress, is_unlocked, unlocked_at
	FROM achievement_states
	WHERE user_id = $1
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement states: %w", err)
	}
	defer rows.Close()

	var states []achievement.State
	for rows.Next() {
		var st achievement.State
		if err := rows.Scan(&st.AchievementID, &st.UserID, &st.Progress, &st.IsUnlocked, &st.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement state: %w", err)
		}
		states = append(states, st)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievement states: %w", err)
	}
	return states, nil
}

// UpsertState persists the state while defending the monotonic-unlock
// invariant at the storage boundary too: an unlocked row never reverts
// and unlocked_at is written exactly once.
func (s *PostgresStore) UpsertState(ctx context.Context, st *achievement.State) error {
	query := `
	INSERT INTO achievement_states (achievement_id, user_id, progress, is_unlocked, unlocked_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (achievement_id, user_id)
	DO UPDATE SET
		progress = GREATEST(achievement_states.progress, $3),
		is_unlocked = achievement_states.is_unlocked OR $4,
		unlocked_at = COALESCE(achievement_states.unlocked_at, $5)
	`

	_, err := s.db.Exec(ctx, query, st.AchievementID, st.UserID, st.Progress, st.IsUnlocked, st.UnlockedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert achievement state: %w", err)
	}
	return nil
}

// --- ChallengeStore ------------------------------------------------------

func (s *PostgresStore) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	query := `
	SELECT id, name, description, target_value, stage_count, start_date, end_date, is_active, created_at
	FROM challenges
	WHERE id = $1
	`

	c := &challenge.Challenge{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.TargetValue,
		&c.StageCount,
		&c.StartDate,
		&c.EndDate,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetParticipation(ctx context.Context, id uuid.UUID) (*challenge.Participation, error) {
	query := `
	SELECT id, user_id, challenge_id, current_progress, progress_percentage, current_stage, stage_progress, milestones_achieved, points_earned, badges_earned, current_streak, best_streak, last_progress_at, completed_at, joined_at
	FROM challenge_participations
	WHERE id = $1
	`

	p := &challenge.Participation{}
	var stages, milestones, badges []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.ChallengeID,
		&p.CurrentProgress,
		&p.ProgressPercentage,
		&p.CurrentStage,
		&stages,
		&milestones,
		&p.PointsEarned,
		&badges,
		&p.CurrentStreak,
		&p.BestStreak,
		&p.LastProgressAt,
		&p.CompletedAt,
		&p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}

	if err := json.Unmarshal(stages, &p.StageProgress); err != nil {
		return nil, fmt.Errorf("failed to decode stage progress: %w", err)
	}
	if err := json.Unmarshal(milestones, &p.MilestonesAchieved); err != nil {
		return nil, fmt.Errorf("failed to decode milestones: %w", err)
	}
	if err := json.Unmarshal(badges, &p.BadgesEarned); err != nil {
		return nil, fmt.Errorf("failed to decode badges: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertParticipation(ctx context.Context, p *challenge.Participation) error {
	stages, err := json.Marshal(p.StageProgress)
	if err != nil {
		return fmt.Errorf("failed to encode stage progress: %w", err)
	}
	milestones, err := json.Marshal(p.MilestonesAchieved)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}
	badges, err := json.Marshal(p.BadgesEarned)
	if err != nil {
		return fmt.Errorf("failed to encode badges: %w", err)
	}

	query := `
	INSERT INTO challenge_participations (id, user_id, challenge_id, current_progress, progress_percentage, current_stage, stage_progress, milestones_achieved, points_earned, badges_earned, current_streak, best_streak, last_progress_at, completed_at, joined_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id)
	DO UPDATE SET
		current_progress = GREATEST(challenge_participations.current_progress, $4),
		progress_percentage = GREATEST(challenge_participations.progress_percentage, $5),
		current_stage = $6,
		stage_progress = $7,
		milestones_achieved = $8,
		points_earned = $9,
		badges_earned = $10,
		current_streak = $11,
		best_streak = $12,
		last_progress_at = $13,
		completed_at = COALESCE(challenge_participations.completed_at, $14)
	`

	_, err = s.db.Exec(ctx, query, p.ID, p.UserID, p.ChallengeID, p.CurrentProgress, p.ProgressPercentage, p.CurrentStage, stages, milestones, p.PointsEarned, badges, p.CurrentStreak, p.BestStreak, p.LastProgressAt, p.CompletedAt, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert participation: %w", err)
	}
	return nil
}

// --- RewardStore ---------------------------------------------------------

func (s *PostgresStore) GetBadge(ctx context.Context, badgeID uuid.UUID) (*reward.Badge, error) {
	query := `
	SELECT id, name, description, icon, is_stackable, max_stack
	FROM badges
	WHERE id = $1
	`

	b := &reward.Badge{}
	err := s.db.QueryRow(ctx, query, badgeID).Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.IsStackable, &b.MaxStack)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) GetUserBadge(ctx context.Context, userID, badgeID uuid.UUID) (*reward.UserBadge, error) {
	query := `
	SELECT id, user_id, badge_id, stack_count, earned_from, earned_at
	FROM user_badges
	WHERE user_id = $1 AND badge_id = $2
	`

	ub := &reward.UserBadge{}
	err := s.db.QueryRow(ctx, query, userID, badgeID).Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.StackCount, &ub.EarnedFrom, &ub.EarnedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user badge: %w", err)
	}
	return ub, nil
}

// ApplyGrant writes the idempotency claim, the point credit and the
// optional badge row in one transaction so a grant never half-applies.
// The claim insert is the compare-and-set behind idempotency: it either
// wins or hits the primary key of an earlier claim, and it only commits
// together with the rest of the grant. A failed write rolls the claim
// back with everything else, leaving the key free for a retry.
func (s *PostgresStore) ApplyGrant(ctx context.Context, claimKey string, g *reward.Grant, badge *reward.UserBadge) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin grant transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if claimKey != "" {
		query := `
		INSERT INTO reward_claims (claim_key, claimed_at)
		VALUES ($1, NOW())
		ON CONFLICT (claim_key) DO NOTHING
		`
		tag, err := tx.Exec(ctx, query, claimKey)
		if err != nil {
			return false, fmt.Errorf("failed to claim event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
	}

	if g.Points > 0 {
		query := `
		UPDATE user_progression
		SET current_points = current_points + $2,
			lifetime_points = lifetime_points + $2,
			updated_at = NOW()
		WHERE user_id = $1
		`
		if _, err := tx.Exec(ctx, query, g.UserID, g.Points); err != nil {
			return false, fmt.Errorf("failed to credit points: %w", err)
		}
	}

	if badge != nil {
		query := `
		INSERT INTO user_badges (id, user_id, badge_id, stack_count, earned_from, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, badge_id)
		DO UPDATE SET stack_count = $4
		`
		if _, err := tx.Exec(ctx, query, badge.ID, badge.UserID, badge.BadgeID, badge.StackCount, badge.EarnedFrom, badge.EarnedAt); err != nil {
			return false, fmt.Errorf("failed to upsert badge grant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit grant: %w", err)
	}
	return true, nil
}

// --- LeaderboardStore ----------------------------------------------------

// QueryRanked ranks users by the key's metric over aggregated
// progression state. Time-scoped periods rank by points earned from
// reward claims inside the window; all-time ranks the progression row
// directly. Ties break on the secondary metric, then user id so the
// order is stable.
func (s *PostgresStore) QueryRanked(ctx context.Context, key leaderboard.Key, from, to time.Time, limit int) ([]leaderboard.Entry, error) {
	metric, secondary := metricColumns(key.Metric)

	var query string
	args := []any{limit}
	if from.IsZero() {
		query = fmt.Sprintf(`
		SELECT p.user_id, u.username, u.image_url, %s::float8 AS score, p.current_points, p.current_streak, p.current_level
		FROM user_progression p
		JOIN users u ON u.id = p.user_id
		ORDER BY score DESC, %s DESC, p.user_id
		LIMIT $1
		`, metric, secondary)
	} else {
		// Window-scoped boards rank activity inside [from, to): total
		// activity minutes stand in for points-style metrics.
		query = fmt.Sprintf(`
		SELECT p.user_id, u.username, u.image_url, COALESCE(w.minutes, 0)::float8 AS score, p.current_points, p.current_streak, p.current_level
		FROM user_progression p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN (
			SELECT user_id, SUM(duration_minutes) AS minutes
			FROM activities
			WHERE timestamp >= $2 AND timestamp < $3
			GROUP BY user_id
		) w ON w.user_id = p.user_id
		ORDER BY score DESC, %s DESC, p.user_id
		LIMIT $1
		`, secondary)
		args = append(args, from, to)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []leaderboard.Entry
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.UserID, &e.Username, &e.ImageURL, &e.Score, &e.Points, &e.CurrentStreak, &e.Level); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

func metricColumns(m leaderboard.Metric) (metric, secondary string) {
	switch m {
	case leaderboard.MetricStreak:
		return "p.current_streak", "p.current_points"
	case leaderboard.MetricXP:
		return "p.total_xp", "p.current_points"
	default:
		return "p.current_points", "p.current_streak"
	}
}

// --- notification.TokenSource --------------------------------------------

func (s *PostgresStore) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	query := `
	SELECT token, platform
	FROM device_tokens
	WHERE user_id = $1
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}
	return tokens, nil
}
