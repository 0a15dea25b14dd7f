package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/qanoonai/backend/internal/storage/models"
)

const jobColumns = `id, status, processed, embedded, failed, error_message, started_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*models.IngestionJob, error) {
	var j models.IngestionJob
	err := row.Scan(&j.ID, &j.Status, &j.Processed, &j.Embedded, &j.Failed, &j.ErrorMessage,
		&j.StartedAt, &j.UpdatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ingestion job: %w", err)
	}
	return &j, nil
}

func (c *Client) CreateJob(ctx context.Context, job *models.IngestionJob) error {
	_, err := c.pool.Exec(ctx, `INSERT INTO ingestion_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, string(job.Status), job.Processed, job.Embedded, job.Failed, job.ErrorMessage,
		job.StartedAt, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion job: %w", err)
	}
	return nil
}

// UpdateJob persists the job's status and counters. Jobs already in a
// terminal state are never modified.
func (c *Client) UpdateJob(ctx context.Context, job *models.IngestionJob) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE ingestion_jobs SET status = $2, processed = $3, embedded = $4, failed = $5,
			error_message = $6, updated_at = $7, completed_at = $8
		WHERE id = $1 AND status IN ('pending', 'running')`,
		job.ID, string(job.Status), job.Processed, job.Embedded, job.Failed, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update ingestion job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", job.ID, models.ErrJobTerminal)
	}
	return nil
}

func (c *Client) GetJob(ctx context.Context, id uuid.UUID) (*models.IngestionJob, error) {
	return scanJob(c.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id))
}

func (c *Client) LatestJob(ctx context.Context) (*models.IngestionJob, error) {
	return scanJob(c.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs
		ORDER BY started_at DESC LIMIT 1`))
}

func (c *Client) ActiveJob(ctx context.Context) (*models.IngestionJob, error) {
	return scanJob(c.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs
		WHERE status IN ('pending', 'running') ORDER BY started_at DESC LIMIT 1`))
}
