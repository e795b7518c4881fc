package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/quiz-runner-service/internal/entity"
)

// ErrRunNotFound indicates no status or history entry exists for the
// requested run.
var ErrRunNotFound = errors.New("run not found")

// RunStatusRepository tracks the externally observable state of chain runs,
// keyed by start URL. Entries expire so stale runs do not accumulate.
type RunStatusRepository interface {
	// Set stores or replaces the status for a run with the given expiry.
	Set(ctx context.Context, status *entity.RunStatus, expiry time.Duration) error
	// Get retrieves the status for the given start URL. A missing entry is
	// reported via the implementation's not-found error.
	Get(ctx context.Context, startURL string) (*entity.RunStatus, error)
}

// RunRecordRepository persists chain run history for telemetry. Run records
// are the only durable output of a chain; scraped page data is never stored.
type RunRecordRepository interface {
	// Save inserts or updates the record identified by its RunID and StartedAt.
	Save(ctx context.Context, record *entity.RunRecord) error
	// FindByRunID retrieves the most recent record for a run ID.
	FindByRunID(ctx context.Context, runID string) (*entity.RunRecord, error)
}
