package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/types"
	"github.com/okian/edurating/pkg/metrics"
)

// ranking is an immutable, fully ranked view of the store.
type ranking struct {
	entries []types.Entry
	byID    map[string]int // index into entries
}

// ResultStore keeps the best computed rating per teacher.
//
// Ordering: final DESC, then teacher ID ASC. Equal finals share a rank and
// the next distinct final takes the following rank.
type ResultStore struct {
	mu   sync.RWMutex
	best map[string]model.StoredRating

	dirty   atomic.Bool
	ranked  atomic.Pointer[ranking]
	rebuild sync.Mutex
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	s := &ResultStore{best: make(map[string]model.StoredRating)}
	s.ranked.Store(&ranking{byID: map[string]int{}})
	return s
}

// UpdateBest stores r if its final score beats the teacher's current best.
// It reports whether the store changed.
func (s *ResultStore) UpdateBest(_ context.Context, r model.StoredRating) (bool, error) {
	s.mu.Lock()
	cur, ok := s.best[r.Result.TeacherID]
	if ok && !r.Result.Final.GreaterThan(cur.Result.Final) {
		s.mu.Unlock()
		return false, nil
	}
	s.best[r.Result.TeacherID] = r
	n := len(s.best)
	s.mu.Unlock()

	s.dirty.Store(true)
	metrics.UpdateStoredRatings(n)
	return true, nil
}

// Get returns the teacher's best rating and rank.
func (s *ResultStore) Get(_ context.Context, teacherID string) (model.StoredRating, types.Entry, error) {
	s.mu.RLock()
	r, ok := s.best[teacherID]
	s.mu.RUnlock()
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.StoredRating{}, types.Entry{}, ErrNotFound
	}

	rk := s.snapshot()
	if i, ok := rk.byID[teacherID]; ok {
		return r, rk.entries[i], nil
	}
	// Stored after the ranking was taken; rank it now.
	rk = s.rebuildRanking()
	return r, rk.entries[rk.byID[teacherID]], nil
}

// TopN returns up to n entries in ranking order.
func (s *ResultStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	rk := s.snapshot()
	if n > len(rk.entries) {
		n = len(rk.entries)
	}
	out := make([]types.Entry, n)
	copy(out, rk.entries[:n])
	return out, nil
}

// Count returns the number of rated teachers.
func (s *ResultStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.best)
}

func (s *ResultStore) snapshot() *ranking {
	if s.dirty.Load() {
		return s.rebuildRanking()
	}
	return s.ranked.Load()
}

func (s *ResultStore) rebuildRanking() *ranking {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	start := time.Now()
	s.dirty.Store(false)

	s.mu.RLock()
	entries := make([]types.Entry, 0, len(s.best))
	for id, r := range s.best {
		entries = append(entries, types.Entry{
			TeacherID:     id,
			InstitutionID: r.Result.InstitutionID,
			Final:         r.Result.Final,
			GrowthBonus:   r.Result.GrowthBonus,
		})
	}
	s.mu.RUnlock()

	sortEntries(entries)
	assignRanksWithTies(entries)

	rk := &ranking{entries: entries, byID: make(map[string]int, len(entries))}
	for i, e := range entries {
		rk.byID[e.TeacherID] = i
	}
	s.ranked.Store(rk)
	metrics.RecordEvaluationLatency("ranking", float64(time.Since(start).Microseconds())/1000)
	return rk
}

func sortEntries(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Final.Cmp(entries[j].Final); c != 0 {
			return c > 0
		}
		return entries[i].TeacherID < entries[j].TeacherID
	})
}

// assignRanksWithTies gives equal finals the same rank (1, 1, 2, ...).
// entries must already be sorted.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || !entries[i].Final.Equal(entries[i-1].Final) {
			rank++
		}
		entries[i].Rank = rank
	}
}
