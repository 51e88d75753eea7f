package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// JobKind selects how a catalog job walks the supplier catalog.
type JobKind string

const (
	// JobKindFinder pages through keyword searches.
	JobKindFinder JobKind = "catalog-finder"
	// JobKindScanner pages through supplier categories.
	JobKindScanner JobKind = "catalog-scanner"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	return k == JobKindFinder || k == JobKindScanner
}

// JobStatus represents the lifecycle state of a catalog job.
// Values include JobStatusPending, JobStatusRunning, JobStatusSuccess, JobStatusError and JobStatusCanceled.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusSuccess  JobStatus = "success"
	JobStatusError    JobStatus = "error"
	JobStatusCanceled JobStatus = "canceled"
)

// IsTerminal reports whether no further steps may run for a job in this status.
// A failed job is terminal as well: retrying requires a new job.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusError, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Job is one resumable catalog discovery task.
type Job struct {
	ID         string     `gorm:"type:text;primaryKey" json:"id"`
	Kind       JobKind    `gorm:"type:text;not null;index" json:"kind"`
	Status     JobStatus  `gorm:"type:text;not null;index;default:pending" json:"status"`
	Params     JobParams  `gorm:"type:text" json:"params"`
	Totals     JobTotals  `gorm:"type:text" json:"totals"`
	Version    int64      `gorm:"not null;default:0" json:"version"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "catalog_jobs"
}

// Units returns the ordered work list of the job: keywords for finders, categories for scanners.
func (j *Job) Units() []string {
	if j.Kind == JobKindScanner {
		return j.Params.Categories
	}
	return j.Params.Keywords
}

// JobParams is the persisted configuration of a job, including its cursor.
type JobParams struct {
	Keywords        []string `json:"keywords,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	PageSize        int      `json:"page_size"`
	MaxPagesPerUnit int      `json:"max_pages_per_unit"`
	// TargetCount stops a finder once this many candidates were collected. Zero means no limit.
	TargetCount int    `json:"target_count,omitempty"`
	MinStock    int    `json:"min_stock,omitempty"`
	Cursor      Cursor `json:"cursor"`
}

// Validate checks the params against the job kind, including the cursor shape.
func (p JobParams) Validate(kind JobKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown job kind %q", kind)
	}
	switch kind {
	case JobKindFinder:
		if len(p.Keywords) == 0 {
			return fmt.Errorf("%s job requires at least one keyword", kind)
		}
	case JobKindScanner:
		if len(p.Categories) == 0 {
			return fmt.Errorf("%s job requires at least one category", kind)
		}
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", p.PageSize)
	}
	if p.MaxPagesPerUnit <= 0 {
		return fmt.Errorf("max pages per unit must be positive, got %d", p.MaxPagesPerUnit)
	}
	if p.TargetCount < 0 || p.MinStock < 0 {
		return fmt.Errorf("target count and min stock must not be negative")
	}
	return p.Cursor.Validate(kind)
}

// Value implements the driver.Valuer interface for database serialization.
func (p JobParams) Value() (driver.Value, error) {
	return jsonValue(p, "{}")
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *JobParams) Scan(value interface{}) error {
	*p = JobParams{}
	return scanJSON(value, p, "JobParams")
}

// JobTotals are running aggregate counters of a job.
type JobTotals struct {
	Steps             int `json:"steps"`
	PagesFetched      int `json:"pages_fetched"`
	PageFailures      int `json:"page_failures"`
	ItemsSeen         int `json:"items_seen"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	DetailFailures    int `json:"detail_failures"`
	FilteredOut       int `json:"filtered_out"`
	ItemsAdded        int `json:"items_added"`
}

// Value implements the driver.Valuer interface for database serialization.
func (t JobTotals) Value() (driver.Value, error) {
	return jsonValue(t, "{}")
}

// Scan implements the sql.Scanner interface for database deserialization.
func (t *JobTotals) Scan(value interface{}) error {
	*t = JobTotals{}
	return scanJSON(value, t, "JobTotals")
}
