package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/dropcart/internal/catalog"
	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/events"
	"github.com/timmy/dropcart/internal/lock"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/pricing"
	"github.com/timmy/dropcart/internal/repository"
)

var (
	// ErrStepInProgress is returned when another step of the same job holds the job lock.
	ErrStepInProgress = errors.New("a step of this job is already in progress")
	// ErrInvalidJob is returned by CreateJob for a request that cannot become a job.
	ErrInvalidJob = errors.New("invalid job")
)

// JobStore is the persistence the job engine needs. *repository.JobRepository implements it.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, f repository.JobFilter) ([]domain.Job, int64, error)
	ExistingSupplierIDs(ctx context.Context, jobID string, ids []string) (map[string]bool, error)
	SaveStep(ctx context.Context, w repository.StepWrite) (repository.StepSaved, error)
	MarkRunning(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, msg string) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	ListItems(ctx context.Context, jobID string, limit, offset int) ([]domain.JobItem, error)
	CountItems(ctx context.Context, jobID string) (int64, error)
}

// RuleStore supplies the pricing rules used for a step.
type RuleStore interface {
	RuleSet(ctx context.Context) (pricing.RuleSet, error)
}

// EngineConfig holds job engine settings.
type EngineConfig struct {
	PageSize          int
	MaxPagesPerUnit   int
	MaxSteps          int
	DetailConcurrency int
	LockTTL           time.Duration
}

func (c *EngineConfig) withDefaults() EngineConfig {
	out := EngineConfig{}
	if c != nil {
		out = *c
	}
	if out.PageSize <= 0 {
		out.PageSize = 20
	}
	if out.MaxPagesPerUnit <= 0 {
		out.MaxPagesPerUnit = 5
	}
	if out.MaxSteps <= 0 {
		out.MaxSteps = 2000
	}
	if out.DetailConcurrency <= 0 {
		out.DetailConcurrency = 5
	}
	if out.LockTTL <= 0 {
		out.LockTTL = 2 * time.Minute
	}
	return out
}

// JobEngine drives catalog jobs one bounded step at a time.
type JobEngine struct {
	jobs      JobStore
	rules     RuleStore
	catalog   catalog.Catalog
	pricer    *pricing.Engine
	locker    lock.Locker
	publisher events.Publisher
	exporter  *Exporter
	logger    *logger.Logger
	cfg       EngineConfig
}

// NewJobEngine creates a new job engine.
// Parameters:
//   - jobs: job and item persistence.
//   - rules: pricing rule source.
//   - cat: supplier catalog collaborator.
//   - pricer: pricing engine; nil uses pricing.DefaultEngine.
//   - locker: per-job step lock.
//   - publisher: lifecycle event sink; nil drops events.
//   - exporter: optional result exporter run when a job succeeds.
//   - log: fallback logger.
//   - cfg: engine settings; zero fields take defaults.
// Returns:
//   - *JobEngine: initialized engine.
func NewJobEngine(
	jobs JobStore,
	rules RuleStore,
	cat catalog.Catalog,
	pricer *pricing.Engine,
	locker lock.Locker,
	publisher events.Publisher,
	exporter *Exporter,
	log *logger.Logger,
	cfg *EngineConfig,
) *JobEngine {
	if pricer == nil {
		pricer = pricing.DefaultEngine()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &JobEngine{
		jobs:      jobs,
		rules:     rules,
		catalog:   cat,
		pricer:    pricer,
		locker:    locker,
		publisher: publisher,
		exporter:  exporter,
		logger:    log,
		cfg:       cfg.withDefaults(),
	}
}

// log returns a logger from context if available, otherwise returns the engine logger
func (e *JobEngine) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, e.logger)
}

// jobContext attaches the engine logger when ctx carries none and tags it with the job.
func (e *JobEngine) jobContext(ctx context.Context, job *domain.Job) context.Context {
	ctx = e.log(ctx).WithContext(ctx)
	return logger.SetJob(ctx, job.ID, string(job.Kind))
}

// CreateJobRequest describes a new job. Zero paging fields take the engine defaults.
type CreateJobRequest struct {
	Kind            domain.JobKind `json:"kind" binding:"required"`
	Keywords        []string       `json:"keywords"`
	Categories      []string       `json:"categories"`
	PageSize        int            `json:"page_size"`
	MaxPagesPerUnit int            `json:"max_pages_per_unit"`
	TargetCount     int            `json:"target_count"`
	MinStock        int            `json:"min_stock"`
}

// StepResult reports what one step did.
type StepResult struct {
	Added    int              `json:"added"`
	Done     bool             `json:"done"`
	Advanced bool             `json:"advanced"`
	Status   domain.JobStatus `json:"status"`
	// ExportURL is set on the step that finished the job when results were exported.
	ExportURL string `json:"export_url,omitempty"`
}

// RunOptions tunes RunToCompletion.
type RunOptions struct {
	// MaxSteps bounds the loop; zero uses the engine setting.
	MaxSteps int
}

// RunResult summarises a RunToCompletion call.
type RunResult struct {
	Steps     int              `json:"steps"`
	Added     int              `json:"added"`
	Done      bool             `json:"done"`
	Status    domain.JobStatus `json:"status"`
	ExportURL string           `json:"export_url,omitempty"`
}

// CreateJob validates req and stores a pending job with a fresh cursor.
func (e *JobEngine) CreateJob(ctx context.Context, req CreateJobRequest) (*domain.Job, error) {
	params := domain.JobParams{
		Keywords:        cleanUnits(req.Keywords),
		Categories:      cleanUnits(req.Categories),
		PageSize:        req.PageSize,
		MaxPagesPerUnit: req.MaxPagesPerUnit,
		TargetCount:     req.TargetCount,
		MinStock:        req.MinStock,
		Cursor:          domain.NewCursor(req.Kind),
	}
	if params.PageSize == 0 {
		params.PageSize = e.cfg.PageSize
	}
	if params.MaxPagesPerUnit == 0 {
		params.MaxPagesPerUnit = e.cfg.MaxPagesPerUnit
	}
	if err := params.Validate(req.Kind); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	job := &domain.Job{
		ID:     uuid.NewString(),
		Kind:   req.Kind,
		Status: domain.JobStatusPending,
		Params: params,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	ctx = e.jobContext(ctx, job)
	e.log(ctx).WithField("units", len(job.Units())).Info("Job created")
	e.publish(ctx, events.TypeCreated, job, 0)
	return job, nil
}

// cleanUnits trims entries and drops blanks and repeats, keeping order.
func cleanUnits(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Status returns the current job row.
func (e *JobEngine) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return e.jobs.Get(ctx, jobID)
}

// ListJobs returns jobs newest first with the total count.
func (e *JobEngine) ListJobs(ctx context.Context, f repository.JobFilter) ([]domain.Job, int64, error) {
	return e.jobs.List(ctx, f)
}

// Items returns a page of the job's discovered items with the total count.
func (e *JobEngine) Items(ctx context.Context, jobID string, limit, offset int) ([]domain.JobItem, int64, error) {
	if _, err := e.jobs.Get(ctx, jobID); err != nil {
		return nil, 0, err
	}
	items, err := e.jobs.ListItems(ctx, jobID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := e.jobs.CountItems(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Cancel stops a pending or running job. A step already in flight finishes and keeps its
// work; no further step starts.
// Returns domain.ErrJobTerminal when the job already finished.
func (e *JobEngine) Cancel(ctx context.Context, jobID string) (*domain.Job, error) {
	ok, err := e.jobs.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return job, fmt.Errorf("cancel job %s (%s): %w", jobID, job.Status, domain.ErrJobTerminal)
	}

	ctx = e.jobContext(ctx, job)
	e.log(ctx).Info("Job canceled")
	e.publish(ctx, events.TypeCanceled, job, 0)
	return job, nil
}

// RunOneStep executes a single bounded unit of work for the job.
// Re-invoking a terminal job is a no-op that reports Done with zero items added.
// A fatal error moves the job to error and is returned; persisted progress is kept.
func (e *JobEngine) RunOneStep(ctx context.Context, jobID string) (StepResult, error) {
	release, err := e.locker.Acquire(ctx, lockKey(jobID), e.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return StepResult{}, ErrStepInProgress
		}
		return StepResult{}, fmt.Errorf("failed to lock job %s: %w", jobID, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.log(ctx).WithError(err).Warn("Failed to release job lock")
		}
	}()

	job, err := e.jobs.Get(ctx, jobID)
	if err != nil && (job == nil || !errors.Is(err, domain.ErrInvalidCursor)) {
		return StepResult{}, err
	}
	ctx = logger.SetComponent(e.jobContext(ctx, job), "job_engine")

	if job.Status.IsTerminal() {
		return StepResult{Done: true, Status: job.Status}, nil
	}
	if err != nil {
		// The stored cursor no longer fits the job kind; no step can resume from it.
		e.fail(ctx, job, err)
		return StepResult{Done: job.Status.IsTerminal(), Status: job.Status}, err
	}

	if job.Status == domain.JobStatusPending {
		started, err := e.jobs.MarkRunning(ctx, job.ID)
		if err != nil {
			e.fail(ctx, job, err)
			return StepResult{Done: job.Status.IsTerminal(), Status: job.Status}, err
		}
		if !started {
			// Canceled between load and start.
			if job, err = e.jobs.Get(ctx, jobID); err != nil {
				return StepResult{}, err
			}
			return StepResult{Done: job.Status.IsTerminal(), Status: job.Status}, nil
		}
		job.Status = domain.JobStatusRunning
		e.log(ctx).Info("Job started")
		e.publish(ctx, events.TypeStarted, job, 0)
	}

	start := time.Now()
	res, err := e.step(ctx, job)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) || ctx.Err() != nil {
			return res, err
		}
		e.fail(ctx, job, err)
		return StepResult{Done: job.Status.IsTerminal(), Status: job.Status}, err
	}

	logger.With(logger.Fields{
		"added":    res.Added,
		"advanced": res.Advanced,
		"done":     res.Done,
	}).Since(start).WithStatus(string(res.Status)).Info(ctx, "Step finished")
	return res, nil
}

// RunToCompletion repeats RunOneStep until the job reports done or the step budget runs out.
// Lock contention and version conflicts are returned without touching the job status.
func (e *JobEngine) RunToCompletion(ctx context.Context, jobID string, opts RunOptions) (RunResult, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = e.cfg.MaxSteps
	}

	var out RunResult
	for out.Steps < maxSteps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := e.RunOneStep(ctx, jobID)
		out.Status = res.Status
		if err != nil {
			return out, err
		}
		out.Steps++
		out.Added += res.Added
		if res.ExportURL != "" {
			out.ExportURL = res.ExportURL
		}
		if res.Done {
			out.Done = true
			return out, nil
		}
	}

	e.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID: jobID,
		"max_steps":       maxSteps,
	}).Warn("Step budget exhausted before the job finished")
	return out, nil
}

// fail records err on the job and publishes the failure.
func (e *JobEngine) fail(ctx context.Context, job *domain.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	e.log(ctx).WithError(cause).Error("Step failed, marking job as error")

	ok, err := e.jobs.MarkFailed(ctx, job.ID, cause.Error())
	if err != nil {
		e.log(ctx).WithError(err).Error("Failed to mark job as error")
		return
	}
	if !ok {
		return
	}
	job.Status = domain.JobStatusError
	job.Error = cause.Error()
	e.publish(ctx, events.TypeFailed, job, 0)
}

// publish sends a lifecycle event. Failures are logged and otherwise ignored.
func (e *JobEngine) publish(ctx context.Context, t events.Type, job *domain.Job, added int) {
	ev := events.NewJobEvent(t, job)
	ev.Added = added
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log(ctx).WithError(err).WithField("event", string(t)).Warn("Failed to publish job event")
	}
}

func lockKey(jobID string) string {
	return "job:" + jobID
}
