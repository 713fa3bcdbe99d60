// Package repository loads configuration snapshots and keeps computed ratings.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/growth"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/pkg/logger"
	"github.com/okian/edurating/pkg/metrics"
)

// Snapshot is an immutable, internally consistent view of all rule tables.
// It must not be modified after publication.
type Snapshot struct {
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
	Source   string    `json:"source"`

	GrowthRules   growth.Rules                 `json:"growth_rules"`
	OlympiadRules olympiad.Rules               `json:"olympiad_rules"`
	Workflows     map[string]approval.Workflow `json:"workflows"`
	RatingConfigs map[string]rating.Config     `json:"rating_configs"`
	DefaultRating rating.Config                `json:"default_rating"`
}

// Workflow returns the active workflow for a request type.
func (s *Snapshot) Workflow(workflowType string) (approval.Workflow, bool) {
	wf, ok := s.Workflows[workflowType]
	return wf, ok
}

// WorkflowTypes lists the configured request types in order.
func (s *Snapshot) WorkflowTypes() []string {
	out := make([]string, 0, len(s.Workflows))
	for t := range s.Workflows {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RatingConfig returns the institution's configuration or the default one.
func (s *Snapshot) RatingConfig(institutionID string) rating.Config {
	if cfg, ok := s.RatingConfigs[institutionID]; ok {
		return cfg
	}
	cfg := s.DefaultRating
	cfg.InstitutionID = institutionID
	return cfg
}

// Counts reports the number of rows per table, keyed by kind.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		"growth":   len(s.GrowthRules),
		"olympiad": len(s.OlympiadRules),
		"workflow": len(s.Workflows),
		"rating":   len(s.RatingConfigs),
	}
}

// validate enforces the invariants the engines do not check themselves.
func (s *Snapshot) validate() error {
	for t, wf := range s.Workflows {
		if err := wf.Chain.Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", t, err)
		}
	}
	for id, cfg := range s.RatingConfigs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("rating config %s: %w", id, err)
		}
	}
	for i, r := range s.OlympiadRules {
		if !r.Level.Valid() {
			return fmt.Errorf("olympiad rule %d: %w: %q", i, olympiad.ErrUnknownLevel, r.Level)
		}
	}
	return nil
}

// Source loads a fresh snapshot from a backing store.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
	Name() string
}

// SnapshotStore publishes the current snapshot. Readers never block; a failed
// reload leaves the previous snapshot in place.
type SnapshotStore struct {
	source   Source
	defaults rating.Config
	now      func() time.Time

	current atomic.Pointer[Snapshot]
	reload  sync.Mutex

	logger logger.Logger
}

// NewSnapshotStore creates a store over src. Nothing is loaded until Reload.
func NewSnapshotStore(src Source, opts ...SnapshotOption) *SnapshotStore {
	s := &SnapshotStore{
		source:   src,
		defaults: rating.DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("snapshots")
	}
	return s
}

// Current returns the published snapshot, or nil before the first load.
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

// Reload loads, validates and publishes a new snapshot.
func (s *SnapshotStore) Reload(ctx context.Context) (*Snapshot, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	start := time.Now()
	loaded, err := s.source.Load(ctx)
	// Stamp a copy; the source may hand back a snapshot readers already hold.
	var snap *Snapshot
	if err == nil {
		next := *loaded
		next.DefaultRating = s.defaults
		snap = &next
		err = snap.validate()
	}
	metrics.RecordSnapshotReloadDuration(float64(time.Since(start).Microseconds()) / 1000)

	if err != nil {
		metrics.RecordSnapshotReload(s.source.Name(), "error")
		metrics.RecordErrorByComponent("snapshots", "reload_error")
		s.logger.Error(ctx, "snapshot reload failed, keeping previous",
			logger.String("source", s.source.Name()),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrSnapshotLoad, err)
	}

	snap.Version = uuid.NewString()
	snap.LoadedAt = s.now()
	snap.Source = s.source.Name()
	s.current.Store(snap)

	metrics.RecordSnapshotReload(snap.Source, "ok")
	metrics.UpdateSnapshotLoadedAt(snap.LoadedAt)
	for kind, n := range snap.Counts() {
		metrics.UpdateSnapshotRuleCount(kind, n)
	}
	s.logger.Info(ctx, "snapshot published",
		logger.String("version", snap.Version),
		logger.String("source", snap.Source),
		logger.Int("growth_rules", len(snap.GrowthRules)),
		logger.Int("olympiad_rules", len(snap.OlympiadRules)),
		logger.Int("workflows", len(snap.Workflows)),
	)
	return snap, nil
}
