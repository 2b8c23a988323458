package leaderboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces a fresh ranked list for a key. It runs at most
// once per key at a time regardless of caller concurrency.
type ComputeFunc func(ctx context.Context, key Key) ([]Entry, error)

// Cache holds one snapshot per key, serving it until the TTL lapses and
// coalescing concurrent recomputations through singleflight.
type Cache struct {
	ttl     time.Duration
	compute ComputeFunc

	mu        sync.RWMutex
	snapshots map[Key]*Snapshot
	group     singleflight.Group

	now func() time.Time
}

// NewCache wires a cache around compute with the given TTL.
func NewCache(ttl time.Duration, compute ComputeFunc) *Cache {
	return &Cache{
		ttl:       ttl,
		compute:   compute,
		snapshots: make(map[Key]*Snapshot),
		now:       time.Now,
	}
}

// getResult carries the canonical snapshot out of a singleflight group.
// Waiters must not hand it to callers directly; each one copies it.
type getResult struct {
	snap   *Snapshot
	cached bool
}

// Get returns the snapshot for key, recomputing when the cached one has
// expired. The boolean reports whether an existing snapshot served the
// call; every waiter coalesced into one recomputation reports false.
// Each caller receives its own copy, so mutating the returned entries
// never reaches the cache or another caller. A read at exactly
// LastCalculated+TTL still serves the cached entries.
func (c *Cache) Get(ctx context.Context, key Key) (*Snapshot, bool, error) {
	if snap, ok := c.fresh(key); ok {
		return snap, true, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A waiter may arrive after the winner already published.
		c.mu.Lock()
		if snap, ok := c.snapshots[key]; ok && !c.now().After(snap.LastCalculated.Add(snap.TTL)) {
			snap.Views++
			c.mu.Unlock()
			return getResult{snap: snap, cached: true}, nil
		}
		c.mu.Unlock()

		entries, err := c.compute(ctx, key)
		if err != nil {
			return getResult{}, err
		}
		snap := &Snapshot{
			Key:            key,
			Entries:        entries,
			LastCalculated: c.now(),
			TTL:            c.ttl,
			Views:          1,
		}
		c.mu.Lock()
		c.snapshots[key] = snap
		c.mu.Unlock()
		return getResult{snap: snap}, nil
	})
	if err != nil {
		return nil, false, err
	}

	// The group shares one result value across all waiters; copy it
	// per caller before anyone can touch Entries.
	res := v.(getResult)
	c.mu.Lock()
	out := c.copyOf(res.snap)
	c.mu.Unlock()
	return out, res.cached, nil
}

// fresh returns a copy of the cached snapshot when it is still within its
// TTL, bumping the view counter.
func (c *Cache) fresh(key Key) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snapshots[key]
	if !ok {
		return nil, false
	}
	if c.now().After(snap.LastCalculated.Add(snap.TTL)) {
		return nil, false
	}
	snap.Views++
	return c.copyOf(snap), true
}

// Invalidate drops the snapshot for key, forcing the next read to
// recompute.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.snapshots, key)
	c.mu.Unlock()
}

// copyOf returns a defensive copy so callers cannot mutate the cached
// entries. Caller must hold mu.
func (c *Cache) copyOf(snap *Snapshot) *Snapshot {
	out := *snap
	out.Entries = make([]Entry, len(snap.Entries))
	copy(out.Entries, snap.Entries)
	return &out
}
