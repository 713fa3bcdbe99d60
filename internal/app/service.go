// Package service wires the scoring engines, configuration snapshots and the
// rating job pipeline behind the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/okian/edurating/internal/adapters/mq/queue"
	workerpool "github.com/okian/edurating/internal/adapters/mq/worker"
	"github.com/okian/edurating/internal/adapters/repository"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/dedupe"
	"github.com/okian/edurating/internal/domain/growth"
	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/internal/domain/types"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/okian/edurating/pkg/logger"
	"github.com/okian/edurating/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// ratingScorer composes ratings against the snapshot current at run time.
type ratingScorer struct {
	snapshots *repository.SnapshotStore
	now       func() time.Time
}

func (a *ratingScorer) Score(_ context.Context, job workerpool.Job) (model.StoredRating, error) { //nolint:gocritic // hugeParam: matches worker.Scorer
	start := time.Now()
	snap := a.snapshots.Current()
	if snap == nil {
		return model.StoredRating{}, ErrNotReady
	}

	res, err := rating.Compose(job.TeacherID, job.Years, snap.RatingConfig(job.InstitutionID), snap.GrowthRules)
	observe("rating", start, err)
	if err != nil {
		return model.StoredRating{}, err
	}
	return model.StoredRating{
		JobID:      job.JobID,
		Result:     res,
		SnapshotID: snap.Version,
		ComputedAt: a.now(),
	}, nil
}

// Service implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	source    repository.Source
	snapshots *repository.SnapshotStore
	results   *repository.ResultStore
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	scheduler *cron.Cron
	stopPool  context.CancelFunc

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	refreshSchedule string
	defaultWeights  weights.RatingWeights
	now             func() time.Time

	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10_000,
		dedupeSize:     50_000,
		defaultWeights: weights.DefaultRatingWeights(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the first snapshot and starts the job pipeline and the refresh
// schedule. A failed first load is fatal.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.source == nil {
		return ErrNoSource
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting rating service...", logger.String("source", s.source.Name()))

	defaults := rating.DefaultConfig()
	defaults.Rating = s.defaultWeights
	s.snapshots = repository.NewSnapshotStore(s.source,
		repository.WithDefaultRating(defaults),
		repository.WithClock(s.now),
		repository.WithSnapshotLogger(s.logger.Named("snapshots")),
	)
	if _, err := s.snapshots.Reload(ctx); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	s.results = repository.NewResultStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	// The pool outlives ctx; Stop drains the accepted jobs before it ends.
	poolCtx, stopPool := context.WithCancel(context.WithoutCancel(ctx))
	s.stopPool = stopPool
	s.pool = workerpool.NewPool(s.workerCount, s.queue, &ratingScorer{snapshots: s.snapshots, now: s.now}, s.results)
	s.pool.Start(poolCtx)

	if s.refreshSchedule != "" {
		s.scheduler = cron.New()
		if _, err := s.scheduler.AddFunc(s.refreshSchedule, s.scheduledReload); err != nil {
			_ = s.pool.Shutdown(ctx)
			stopPool()
			return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, s.refreshSchedule, err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("refreshSchedule", s.refreshSchedule),
	)
	return nil
}

func (s *Service) scheduledReload() {
	ctx := context.Background()
	if _, err := s.snapshots.Reload(ctx); err != nil {
		s.logger.Warn(ctx, "scheduled snapshot reload failed", logger.Error(err))
	}
}

// Stop halts the refresh schedule and drains the worker pool. Jobs accepted
// before Stop are still rated.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.stopPool()

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

// snapshot returns the published snapshot or ErrNotReady.
func (s *Service) snapshot() (*repository.Snapshot, error) {
	s.mu.RLock()
	store := s.snapshots
	s.mu.RUnlock()
	if store == nil {
		return nil, ErrNotReady
	}
	snap := store.Current()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Snapshot returns the published snapshot, or nil before Start.
func (s *Service) Snapshot() *repository.Snapshot {
	snap, _ := s.snapshot()
	return snap
}

// Reload forces a snapshot reload.
func (s *Service) Reload(ctx context.Context) (*repository.Snapshot, error) {
	s.mu.RLock()
	store := s.snapshots
	s.mu.RUnlock()
	if store == nil {
		return nil, ErrNotReady
	}
	return store.Reload(ctx)
}

// ResolveGrowth returns the growth bonus for amount and whether any applies.
func (s *Service) ResolveGrowth(_ context.Context, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	start := time.Now()
	snap, err := s.snapshot()
	if err != nil {
		return decimal.Zero, false, err
	}
	bonus := growth.Resolve(amount, snap.GrowthRules)
	observe("growth", start, nil)
	return bonus, growth.QualifiesForBonus(amount, snap.GrowthRules), nil
}

// OlympiadScore scores one achievement.
func (s *Service) OlympiadScore(_ context.Context, level olympiad.Level, placement, studentCount int) (decimal.Decimal, error) {
	start := time.Now()
	snap, err := s.snapshot()
	if err != nil {
		return decimal.Zero, err
	}
	score, err := olympiad.CalculateScore(level, placement, studentCount, snap.OlympiadRules)
	observe("olympiad", start, err)
	return score, err
}

// OlympiadTotal sums a teacher's achievements, capped at 100.
func (s *Service) OlympiadTotal(_ context.Context, achievements []olympiad.Achievement) (decimal.Decimal, error) {
	start := time.Now()
	snap, err := s.snapshot()
	if err != nil {
		return decimal.Zero, err
	}
	total, err := olympiad.AchievementTotal(achievements, snap.OlympiadRules)
	observe("olympiad", start, err)
	return total, err
}

// OlympiadRules returns the active rules grouped by level.
func (s *Service) OlympiadRules(_ context.Context) (map[olympiad.Level][]olympiad.Rule, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return olympiad.GroupByLevel(snap.OlympiadRules), nil
}

// Workflow returns the active workflow for workflowType.
func (s *Service) Workflow(_ context.Context, workflowType string) (approval.Workflow, error) {
	snap, err := s.snapshot()
	if err != nil {
		return approval.Workflow{}, err
	}
	wf, ok := snap.Workflow(workflowType)
	if !ok {
		return approval.Workflow{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, workflowType)
	}
	return wf, nil
}

// NextApprovalStep returns the step after currentLevel. With requiredOnly the
// workflow's skip rules apply.
func (s *Service) NextApprovalStep(ctx context.Context, workflowType string, currentLevel int, requiredOnly bool) (approval.Step, bool, error) {
	start := time.Now()
	wf, err := s.Workflow(ctx, workflowType)
	if err != nil {
		return approval.Step{}, false, err
	}
	var (
		step approval.Step
		ok   bool
	)
	if requiredOnly {
		step, ok = approval.NextRequiredStep(wf.Chain, wf.Config, currentLevel)
	} else {
		step, ok = approval.NextStep(wf.Chain, currentLevel)
	}
	observe("approval", start, nil)
	return step, ok, nil
}

// ApprovalStatus summarises a request at currentLevel.
type ApprovalStatus struct {
	WorkflowType     string         `json:"workflow_type"`
	CurrentLevel     int            `json:"current_level"`
	FullyApproved    bool           `json:"fully_approved"`
	State            approval.State `json:"state"`
	MaxRequiredLevel int            `json:"max_required_level"`
}

// ApprovalStatus classifies currentLevel within the workflow.
func (s *Service) ApprovalStatus(ctx context.Context, workflowType string, currentLevel int) (ApprovalStatus, error) {
	start := time.Now()
	wf, err := s.Workflow(ctx, workflowType)
	if err != nil {
		return ApprovalStatus{}, err
	}
	maxLevel, _ := approval.MaxRequiredLevel(wf.Chain)
	st := ApprovalStatus{
		WorkflowType:     workflowType,
		CurrentLevel:     currentLevel,
		FullyApproved:    approval.IsFullyApproved(wf.Chain, currentLevel),
		State:            approval.Classify(wf.Chain, currentLevel),
		MaxRequiredLevel: maxLevel,
	}
	observe("approval", start, nil)
	return st, nil
}

// Decide applies action at currentLevel.
func (s *Service) Decide(ctx context.Context, workflowType string, currentLevel int, action approval.Action) (approval.Decision, error) {
	start := time.Now()
	wf, err := s.Workflow(ctx, workflowType)
	if err != nil {
		return approval.Decision{}, err
	}
	d, err := approval.Decide(wf, currentLevel, action)
	observe("approval", start, err)
	return d, err
}

// ValidateWeights returns the weight total and whether it sums to one.
func (s *Service) ValidateWeights(_ context.Context, w weights.RatingWeights) (decimal.Decimal, bool) {
	start := time.Now()
	valid := weights.IsValid(w)
	outcome := "ok"
	if !valid {
		outcome = "invalid"
	}
	metrics.RecordEvaluation("weights", outcome)
	metrics.RecordEvaluationLatency("weights", float64(time.Since(start).Microseconds())/1000)
	return weights.TotalWeight(w), valid
}

// SubmitRating deduplicates and enqueues a rating job. An empty job ID is
// replaced by a generated one, which is returned.
func (s *Service) SubmitRating(ctx context.Context, job model.RatingJob) (string, error) { //nolint:gocritic // hugeParam: jobs travel by value
	s.mu.RLock()
	started, q, d := s.started, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return "", ErrNotReady
	}

	// Reject before the ID is recorded so a corrected job can reuse it.
	if err := rating.CheckYears(job.Years); err != nil {
		metrics.RecordJob("invalid")
		return job.JobID, err
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = s.now()
	}

	if d.SeenAndRecord(ctx, job.JobID) {
		metrics.RecordJob("duplicate")
		s.logger.Debug(ctx, "duplicate rating job", logger.String("job_id", job.JobID))
		return job.JobID, ErrDuplicateJob
	}
	if !q.Enqueue(ctx, job) {
		// Let the client retry the same job ID.
		d.Unrecord(ctx, job.JobID)
		metrics.RecordJob("rejected")
		return job.JobID, ErrQueueFull
	}
	metrics.RecordJob("accepted")
	return job.JobID, nil
}

// Rating returns a teacher's best stored rating and rank.
func (s *Service) Rating(ctx context.Context, teacherID string) (model.StoredRating, types.Entry, error) {
	s.mu.RLock()
	results := s.results
	s.mu.RUnlock()
	if results == nil {
		return model.StoredRating{}, types.Entry{}, ErrNotReady
	}
	return results.Get(ctx, teacherID)
}

// TopRatings returns the n best-ranked teachers.
func (s *Service) TopRatings(ctx context.Context, n int) ([]types.Entry, error) {
	s.mu.RLock()
	results := s.results
	s.mu.RUnlock()
	if results == nil {
		return nil, ErrNotReady
	}
	return results.TopN(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"refreshSchedule": s.refreshSchedule,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["storedRatings"] = s.results.Count(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		if snap := s.snapshots.Current(); snap != nil {
			stats["snapshot"] = map[string]interface{}{
				"version":  snap.Version,
				"source":   snap.Source,
				"loadedAt": snap.LoadedAt,
				"counts":   snap.Counts(),
			}
		}
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

// observe records one engine evaluation.
func observe(component string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		metrics.RecordErrorByComponent(component, "evaluation_error")
	}
	metrics.RecordEvaluation(component, outcome)
	metrics.RecordEvaluationLatency(component, float64(time.Since(start).Microseconds())/1000)
}
