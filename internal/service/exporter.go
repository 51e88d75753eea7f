package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/storage"
)

const (
	exportPageSize    = 500
	exportContentType = "application/x-ndjson"
)

// ItemLister pages through the items of a job.
type ItemLister interface {
	ListItems(ctx context.Context, jobID string, limit, offset int) ([]domain.JobItem, error)
}

// Exporter writes the items of a finished job to object storage as JSON lines.
type Exporter struct {
	items   ItemLister
	storage storage.ObjectStorage
}

// NewExporter creates a new Exporter.
func NewExporter(items ItemLister, objectStorage storage.ObjectStorage) *Exporter {
	return &Exporter{items: items, storage: objectStorage}
}

// ExportKey returns the object key for a job's export.
func ExportKey(job *domain.Job) string {
	return fmt.Sprintf("exports/%s/%s.jsonl", job.Kind, job.ID)
}

// Export uploads every item of job, one JSON object per line, and returns the object URL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: the finished job.
// Returns:
//   - string: URL of the uploaded object.
//   - error: non-nil if items cannot be read or the upload fails.
func (x *Exporter) Export(ctx context.Context, job *domain.Job) (string, error) {
	start := time.Now()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for offset := 0; ; offset += exportPageSize {
		items, err := x.items.ListItems(ctx, job.ID, exportPageSize, offset)
		if err != nil {
			return "", err
		}
		for i := range items {
			if err := enc.Encode(&items[i]); err != nil {
				return "", fmt.Errorf("failed to encode item %s: %w", items[i].SupplierID, err)
			}
		}
		count += len(items)
		if len(items) < exportPageSize {
			break
		}
	}

	key := ExportKey(job)
	if err := x.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), exportContentType); err != nil {
		return "", err
	}

	logger.With(logger.Fields{"key": key}).WithCount(count).Since(start).Info(ctx, "Job results exported")
	return x.storage.GetURL(key), nil
}
