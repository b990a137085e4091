package store

import (
	"context"
	"encoding/json"

	"seatool_alerts/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a single JSONB documents relation.
// Logical table names map to the table_name column, not to SQL tables, so
// adding a pipeline never requires a migration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a document store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, table string, key Key) (json.RawMessage, bool, error) {
	var item json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT item FROM documents WHERE table_name = $1 AND pk = $2 AND sk = $3`,
		table, key.PK, key.SK,
	).Scan(&item)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.TransientIO("store get failed", err).WithOp("store.Get")
	}
	return item, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, table string, key Key, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "store put: marshal item", err).WithOp("store.Put")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (table_name, pk, sk, item, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (table_name, pk, sk)
		 DO UPDATE SET item = EXCLUDED.item, updated_at = now()`,
		table, key.PK, key.SK, data,
	)
	if err != nil {
		return apperr.TransientIO("store put failed", err).WithOp("store.Put")
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, table string, key Key, fields map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "store update: marshal fields", err).WithOp("store.Update")
	}

	var item json.RawMessage
	err = s.pool.QueryRow(ctx,
		`INSERT INTO documents (table_name, pk, sk, item, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (table_name, pk, sk)
		 DO UPDATE SET item = documents.item || EXCLUDED.item, updated_at = now()
		 RETURNING item`,
		table, key.PK, key.SK, data,
	).Scan(&item)
	if err != nil {
		return nil, apperr.TransientIO("store update failed", err).WithOp("store.Update")
	}
	return item, nil
}

func (s *PostgresStore) Scan(ctx context.Context, table string, filter Filter) ([]json.RawMessage, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(filter) == 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT item FROM documents WHERE table_name = $1 ORDER BY pk, sk`, table)
	} else {
		var filterJSON []byte
		filterJSON, err = json.Marshal(filter)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "store scan: marshal filter", err).WithOp("store.Scan")
		}
		rows, err = s.pool.Query(ctx,
			`SELECT item FROM documents WHERE table_name = $1 AND item @> $2 ORDER BY pk, sk`,
			table, filterJSON)
	}
	if err != nil {
		return nil, apperr.TransientIO("store scan failed", err).WithOp("store.Scan")
	}
	defer rows.Close()

	var items []json.RawMessage
	for rows.Next() {
		var item json.RawMessage
		if err := rows.Scan(&item); err != nil {
			return nil, apperr.TransientIO("store scan: read row", err).WithOp("store.Scan")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.TransientIO("store scan: rows", err).WithOp("store.Scan")
	}
	return items, nil
}
