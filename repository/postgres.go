package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"converthub/database"
	"converthub/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateConversion(ctx context.Context, rec *ConversionRecord) error {
	query := `
		INSERT INTO conversions (task_id, operation, filename, file_hash, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		rec.TaskID,
		rec.Operation,
		rec.Filename,
		rec.FileHash,
		rec.Status,
		rec.ErrorMessage,
	).Scan(&rec.CreatedAt)
}

func (r *PostgresRepo) UpdateConversionStatus(ctx context.Context, taskID string, status models.TaskStatus, resultURL, errorMessage string) error {
	query := `
		UPDATE conversions
		SET status = $1, result_url = $2, error_message = $3
	`

	if status.Terminal() {
		query += `, completed_at = NOW()`
	}

	query += ` WHERE task_id = $4`

	result, err := r.db.Pool.Exec(ctx, query, status, resultURL, errorMessage, taskID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (r *PostgresRepo) GetConversion(ctx context.Context, taskID string) (*ConversionRecord, error) {
	query := `
		SELECT task_id, operation, filename, file_hash, status, COALESCE(result_url, ''), COALESCE(error_message, ''), created_at, completed_at
		FROM conversions
		WHERE task_id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, taskID)

	var rec ConversionRecord
	err := row.Scan(
		&rec.TaskID,
		&rec.Operation,
		&rec.Filename,
		&rec.FileHash,
		&rec.Status,
		&rec.ResultURL,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &rec, nil
}

func (r *PostgresRepo) SaveBatch(ctx context.Context, rec *BatchRecord) error {
	query := `
		INSERT INTO batches (batch_id, operation, total_files, completed, failed, zip_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		rec.BatchID,
		rec.Operation,
		rec.TotalFiles,
		rec.Completed,
		rec.Failed,
		rec.ZipURL,
	).Scan(&rec.CreatedAt)
}
