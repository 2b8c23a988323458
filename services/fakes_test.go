package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"upholdAPI/internal/achievement"
	"upholdAPI/internal/challenge"
	"upholdAPI/internal/leaderboard"
	"upholdAPI/internal/notification"
	"upholdAPI/internal/progression"
	"upholdAPI/internal/reward"
	"upholdAPI/internal/tracking"
)

// fakeStore is an in-memory implementation of every store contract,
// shared by the service tests.
type fakeStore struct {
	mu sync.Mutex

	entities       map[uuid.UUID]*tracking.TrackableEntity
	activities     []tracking.ActivityRecord
	indulgences    []tracking.IndulgenceRecord
	progressions   map[uuid.UUID]*progression.UserProgression
	achievements   []achievement.Achievement
	states         map[uuid.UUID]*achievement.State
	challenges     map[uuid.UUID]*challenge.Challenge
	participations map[uuid.UUID]*challenge.Participation
	claims         map[string]bool
	badges         map[uuid.UUID]*reward.Badge
	userBadges     map[string]*reward.UserBadge
	grantsApplied  []*reward.Grant
	ranked         []leaderboard.Entry
	rankedCalls    int

	// applyGrantErr fails the next ApplyGrant once, before anything is
	// written.
	applyGrantErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:       make(map[uuid.UUID]*tracking.TrackableEntity),
		progressions:   make(map[uuid.UUID]*progression.UserProgression),
		states:         make(map[uuid.UUID]*achievement.State),
		challenges:     make(map[uuid.UUID]*challenge.Challenge),
		participations: make(map[uuid.UUID]*challenge.Participation),
		claims:         make(map[string]bool),
		badges:         make(map[uuid.UUID]*reward.Badge),
		userBadges:     make(map[string]*reward.UserBadge),
	}
}

func (f *fakeStore) GetEntity(ctx context.Context, entityID uuid.UUID) (*tracking.TrackableEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) ListEntitiesByUser(ctx context.Context, userID uuid.UUID) ([]tracking.TrackableEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tracking.TrackableEntity
	for _, e := range f.entities {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertEntity(ctx context.Context, e *tracking.TrackableEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.entities[e.ID] = &cp
	return nil
}

func (f *fakeStore) AppendActivity(ctx context.Context, rec *tracking.ActivityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, *rec)
	return nil
}

func (f *fakeStore) AppendIndulgence(ctx context.Context, rec *tracking.IndulgenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indulgences = append(f.indulgences, *rec)
	return nil
}

func (f *fakeStore) ActivitiesByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]tracking.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tracking.ActivityRecord
	for _, a := range f.activities {
		if a.UserID != userID {
			continue
		}
		if !from.IsZero() && a.Timestamp.Before(from) {
			continue
		}
		if !a.Timestamp.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) GetProgression(ctx context.Context, userID uuid.UUID) (*progression.UserProgression, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progressions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpsertProgression(ctx context.Context, p *progression.UserProgression) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.progressions[p.UserID] = &cp
	return nil
}

func (f *fakeStore) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]achievement.Achievement(nil), f.achievements...), nil
}

func (f *fakeStore) ListStates(ctx context.Context, userID uuid.UUID) ([]achievement.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []achievement.State
	for _, st := range f.states {
		if st.UserID == userID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertState(ctx context.Context, st *achievement.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *st
	f.states[st.AchievementID] = &cp
	return nil
}

func (f *fakeStore) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetParticipation(ctx context.Context, id uuid.UUID) (*challenge.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpsertParticipation(ctx context.Context, p *challenge.Participation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.participations[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetBadge(ctx context.Context, badgeID uuid.UUID) (*reward.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.badges[badgeID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetUserBadge(ctx context.Context, userID, badgeID uuid.UUID) (*reward.UserBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ub, ok := f.userBadges[userID.String()+":"+badgeID.String()]
	if !ok {
		return nil, nil
	}
	cp := *ub
	return &cp, nil
}

func (f *fakeStore) ApplyGrant(ctx context.Context, claimKey string, g *reward.Grant, badge *reward.UserBadge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyGrantErr; err != nil {
		f.applyGrantErr = nil
		return false, err
	}
	if claimKey != "" {
		if f.claims[claimKey] {
			return false, nil
		}
		f.claims[claimKey] = true
	}
	if g.Points > 0 {
		if p, ok := f.progressions[g.UserID]; ok {
			p.CurrentPoints += g.Points
			p.LifetimePoints += g.Points
		}
	}
	if badge != nil {
		cp := *badge
		f.userBadges[badge.UserID.String()+":"+badge.BadgeID.String()] = &cp
	}
	cp := *g
	f.grantsApplied = append(f.grantsApplied, &cp)
	return true, nil
}

func (f *fakeStore) QueryRanked(ctx context.Context, key leaderboard.Key, from, to time.Time, limit int) ([]leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankedCalls++
	out := append([]leaderboard.Entry(nil), f.ranked...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// recordingNotifier captures delivered events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, e notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}
