package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
)

// RunRecordRepoImpl provides a concrete implementation for the
// RunRecordRepository interface using PostgreSQL.
type RunRecordRepoImpl struct {
	db *pgxpool.Pool
}

// NewRunRecordRepo creates a new instance of RunRecordRepoImpl.
func NewRunRecordRepo(db *pgxpool.Pool) *RunRecordRepoImpl {
	return &RunRecordRepoImpl{db: db}
}

// Save stores or updates the chain run record in the database.
func (r *RunRecordRepoImpl) Save(ctx context.Context, record *entity.RunRecord) error {
	query := `
		INSERT INTO chain_runs (run_id, start_url, email, state, questions_solved, failure_reason, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, started_at) DO UPDATE SET
			state = EXCLUDED.state,
			questions_solved = EXCLUDED.questions_solved,
			failure_reason = EXCLUDED.failure_reason,
			finished_at = EXCLUDED.finished_at;
	`

	_, err := r.db.Exec(ctx, query,
		record.RunID,
		record.StartURL,
		record.Email,
		record.State,
		record.QuestionsSolved,
		record.FailureReason,
		record.StartedAt,
		record.FinishedAt,
	)
	return err
}

// FindByRunID retrieves the most recent record for a run ID.
func (r *RunRecordRepoImpl) FindByRunID(ctx context.Context, runID string) (*entity.RunRecord, error) {
	query := `
		SELECT id, run_id, start_url, email, state, questions_solved, failure_reason, started_at, finished_at
		FROM chain_runs
		WHERE run_id = $1
		ORDER BY started_at DESC
		LIMIT 1;
	`
	row := r.db.QueryRow(ctx, query, runID)

	var record entity.RunRecord
	err := row.Scan(
		&record.ID,
		&record.RunID,
		&record.StartURL,
		&record.Email,
		&record.State,
		&record.QuestionsSolved,
		&record.FailureReason,
		&record.StartedAt,
		&record.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrRunNotFound
		}
		return nil, err
	}
	return &record, nil
}
