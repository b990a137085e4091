// Package changefeed persists and dispatches record change notifications.
// Writers append a row per changed source record; the dispatcher claims
// pending rows and hands them to the trigger gate. The table is the durable
// buffer between ingest and reconciliation, so a worker crash never loses a
// change.
package changefeed

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusDispatching    Status = "dispatching"
	StatusDispatched     Status = "dispatched"
	StatusFailed         Status = "failed"
	errRepoNotConfigured        = "changefeed repository not configured"
)

type Change struct {
	ID        int64
	Pipeline  string
	PK        string
	SK        string
	Status    Status
	Attempts  int
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends a change notification for the record key.
func (r *Repository) Insert(ctx context.Context, pipeline, pk, sk string) (int64, error) {
	if pipeline == "" {
		return 0, errors.New("pipeline is required")
	}
	if pk == "" {
		return 0, errors.New("pk is required")
	}
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO record_changes (pipeline, pk, sk, status)
		 VALUES ($1, $2, $3, 'pending')
		 RETURNING id`,
		pipeline, pk, sk,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ClaimPending atomically moves up to limit pending rows to dispatching and
// returns them. Rows claimed by a concurrent dispatcher are skipped.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Change, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM record_changes
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE record_changes c
	SET status = 'dispatching', attempts = attempts + 1, updated_at = now()
	FROM cte
	WHERE c.id = cte.id
	RETURNING c.id, c.pipeline, c.pk, c.sk, c.status, c.attempts, c.created_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Change
	for rows.Next() {
		var ch Change
		var status string
		if err := rows.Scan(&ch.ID, &ch.Pipeline, &ch.PK, &ch.SK, &status, &ch.Attempts, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Status = Status(status)
		results = append(results, ch)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// MarkPending returns a claimed row to the pending state for a later retry.
func (r *Repository) MarkPending(ctx context.Context, id int64, lastError *string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE record_changes
		 SET status = 'pending', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}

// MarkDispatched finalizes a successfully handled change.
func (r *Repository) MarkDispatched(ctx context.Context, id int64) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE record_changes
		 SET status = 'dispatched', last_error = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

// MarkFailed parks a change that can never be handled, such as a
// notification for a record that does not exist.
func (r *Repository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE record_changes
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}
