// Package checkpoint tracks the vault share price observed at regular
// checkpoint boundaries. Positions are minted against checkpoint times
// rather than wall-clock times, which pins every maturity to a sparse,
// predictable grid and lets matured positions settle at the price
// recorded when their checkpoint was minted.
package checkpoint

import (
	"errors"
	"sort"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

var (
	// ErrInvalidTime is returned when a queried time is not aligned to
	// the checkpoint grid.
	ErrInvalidTime = errors.New("checkpoint: time not aligned to checkpoint duration")

	// ErrNotFound is returned when no checkpoint exists at or before
	// the queried time.
	ErrNotFound = errors.New("checkpoint: not found")
)

// Checkpoint records the vault share price at a checkpoint boundary.
type Checkpoint struct {
	// Time is the checkpoint boundary in unix seconds. Always a
	// multiple of the store's duration.
	Time int64

	// SharePrice is the vault share price when the checkpoint was
	// minted. Zero means the checkpoint has not been minted yet.
	SharePrice fixedpoint.FixedPoint
}

// Minted reports whether the checkpoint has been minted.
func (c Checkpoint) Minted() bool {
	return !c.SharePrice.IsZero()
}

// Store holds the sparse set of minted checkpoints for one pool.
// Store is not safe for concurrent use; the pool serializes access.
type Store struct {
	duration int64
	items    map[int64]Checkpoint
}

// NewStore creates an empty store with the given checkpoint duration
// in seconds.
func NewStore(duration int64) *Store {
	return &Store{
		duration: duration,
		items:    make(map[int64]Checkpoint),
	}
}

// Duration returns the checkpoint duration in seconds.
func (s *Store) Duration() int64 {
	return s.duration
}

// Latest returns the most recent checkpoint boundary at or before now.
func (s *Store) Latest(now int64) int64 {
	return now - now%s.duration
}

// Aligned reports whether t sits exactly on a checkpoint boundary.
func (s *Store) Aligned(t int64) bool {
	return t%s.duration == 0
}

// Get returns the checkpoint at time t. The zero checkpoint is
// returned when none has been minted.
func (s *Store) Get(t int64) Checkpoint {
	if cp, ok := s.items[t]; ok {
		return cp
	}
	return Checkpoint{Time: t}
}

// Put records a minted checkpoint. Times off the grid are rejected.
func (s *Store) Put(cp Checkpoint) error {
	if !s.Aligned(cp.Time) {
		return ErrInvalidTime
	}
	s.items[cp.Time] = cp
	checkpointsMinted.Inc()
	latestCheckpointTime.Set(float64(cp.Time))
	return nil
}

// NearestAtOrBefore returns the most recent minted checkpoint at or
// before t. Used to backdate a freshly minted checkpoint to the last
// observed price when intermediate checkpoints were skipped.
func (s *Store) NearestAtOrBefore(t int64) (Checkpoint, error) {
	best := Checkpoint{}
	found := false
	for at, cp := range s.items {
		if at <= t && (!found || at > best.Time) {
			best = cp
			found = true
		}
	}
	if !found {
		return Checkpoint{}, ErrNotFound
	}
	return best, nil
}

// Times returns the minted checkpoint times in ascending order.
func (s *Store) Times() []int64 {
	out := make([]int64, 0, len(s.items))
	for at := range s.items {
		out = append(out, at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy of the store. Checkpoint values are
// immutable, so copying the map is sufficient.
func (s *Store) Clone() *Store {
	items := make(map[int64]Checkpoint, len(s.items))
	for at, cp := range s.items {
		items[at] = cp
	}
	return &Store{duration: s.duration, items: items}
}
