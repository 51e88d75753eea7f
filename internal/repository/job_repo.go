package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/dropcart/internal/domain"
)

// ErrVersionConflict is returned by SaveStep when the job row changed since it was loaded.
var ErrVersionConflict = errors.New("job version conflict")

// itemInsertBatch bounds the rows per INSERT statement.
const itemInsertBatch = 100

// JobRepository persists catalog jobs and the items they discover.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// JobFilter narrows List results. Zero values match everything.
type JobFilter struct {
	Kind   domain.JobKind
	Status domain.JobStatus
	Limit  int
	Offset int
}

// StepWrite is everything one step persists atomically. Params and Totals describe the
// job before the items are counted; SaveStep adds what it actually inserts.
type StepWrite struct {
	JobID           string
	ExpectedVersion int64
	Params          domain.JobParams
	Totals          domain.JobTotals
	Items           []domain.JobItem
	// Finish moves a running job to success in the same transaction.
	Finish bool
}

// StepSaved reports what SaveStep wrote.
type StepSaved struct {
	Inserted int
	Version  int64
	Finished bool
	Params   domain.JobParams
	Totals   domain.JobTotals
}

// Create inserts a new job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to persist; ID must be set.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Get loads a job and validates its cursor against the job kind.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: the job.
//   - error: domain.ErrJobNotFound, a wrapped domain.ErrInvalidCursor, or a storage error.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if err := job.Params.Cursor.Validate(job.Kind); err != nil {
		return &job, fmt.Errorf("job %s: %w", id, err)
	}
	return &job, nil
}

// List returns jobs newest first together with the total matching count.
func (r *JobRepository) List(ctx context.Context, f JobFilter) ([]domain.Job, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Job{})
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []domain.Job
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&jobs).Error
	return jobs, total, err
}

// ExistingSupplierIDs returns which of ids are already stored for the job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job ID.
//   - ids: supplier identifiers to check.
// Returns:
//   - map[string]bool: set of identifiers already present.
//   - error: non-nil if the query fails.
func (r *JobRepository) ExistingSupplierIDs(ctx context.Context, jobID string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []string
	if err := r.db.WithContext(ctx).Model(&domain.JobItem{}).
		Where("job_id = ? AND supplier_id IN ?", jobID, ids).
		Pluck("supplier_id", &existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing items: %w", err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// SaveStep persists the cursor, totals and new items of one step in a single transaction.
// Items already stored for the job are skipped; the number actually inserted is added to
// Totals.ItemsAdded and to the cursor's collected count before the job row is written.
// The row update carries an optimistic version check so a concurrent writer fails the
// whole step with ErrVersionConflict. Finish moves the job from running to success; a job
// canceled meanwhile keeps its status but still receives the step's work.
func (r *JobRepository) SaveStep(ctx context.Context, w StepWrite) (StepSaved, error) {
	var saved StepSaved
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if len(w.Items) > 0 {
			for i := range w.Items {
				w.Items[i].JobID = w.JobID
			}
			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "job_id"}, {Name: "supplier_id"}},
				DoNothing: true,
			}).CreateInBatches(&w.Items, itemInsertBatch)
			if ins.Error != nil {
				return fmt.Errorf("failed to insert job items: %w", ins.Error)
			}
			saved.Inserted = int(ins.RowsAffected)
		}

		saved.Params = w.Params
		saved.Params.Cursor = w.Params.Cursor.AddCollected(saved.Inserted)
		saved.Totals = w.Totals
		saved.Totals.ItemsAdded += saved.Inserted

		res := tx.Model(&domain.Job{}).
			Where("id = ? AND version = ?", w.JobID, w.ExpectedVersion).
			Updates(map[string]interface{}{
				"params":     saved.Params,
				"totals":     saved.Totals,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		saved.Version = w.ExpectedVersion + 1

		if w.Finish {
			ok, err := transition(tx, w.JobID, domain.JobStatusSuccess, "", now, domain.JobStatusRunning)
			if err != nil {
				return err
			}
			saved.Finished = ok
		}
		return nil
	})
	if err != nil {
		return StepSaved{}, err
	}
	return saved, nil
}

// MarkRunning moves a pending job to running and stamps its start time.
// Returns false when the job was not pending.
func (r *JobRepository) MarkRunning(ctx context.Context, id string) (bool, error) {
	return transition(r.db.WithContext(ctx), id, domain.JobStatusRunning, "", time.Now().UTC(), domain.JobStatusPending)
}

// MarkFailed records msg and moves a pending or running job to error.
func (r *JobRepository) MarkFailed(ctx context.Context, id, msg string) (bool, error) {
	return transition(r.db.WithContext(ctx), id, domain.JobStatusError, msg, time.Now().UTC(),
		domain.JobStatusPending, domain.JobStatusRunning)
}

// Cancel moves a pending or running job to canceled. It does not bump the version so a
// step already in flight can still persist what it fetched.
func (r *JobRepository) Cancel(ctx context.Context, id string) (bool, error) {
	return transition(r.db.WithContext(ctx), id, domain.JobStatusCanceled, "", time.Now().UTC(),
		domain.JobStatusPending, domain.JobStatusRunning)
}

// transition conditionally updates the status of a job currently in one of from.
func transition(db *gorm.DB, id string, to domain.JobStatus, msg string, now time.Time, from ...domain.JobStatus) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch {
	case to == domain.JobStatusRunning:
		updates["started_at"] = now
	case to.IsTerminal():
		updates["finished_at"] = now
	}
	if msg != "" {
		updates["error"] = msg
	}

	res := db.Model(&domain.Job{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to set job %s to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListItems returns a page of the job's items in discovery order.
func (r *JobRepository) ListItems(ctx context.Context, jobID string, limit, offset int) ([]domain.JobItem, error) {
	var items []domain.JobItem
	q := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list job items: %w", err)
	}
	return items, nil
}

// CountItems returns the number of items stored for a job.
func (r *JobRepository) CountItems(ctx context.Context, jobID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.JobItem{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}
