package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps documents in a postgres table with JSONB payloads.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn not provided")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping docstore: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	migrateErr := runMigrations(db, "postgres", "migrations/postgres")
	db.Close()
	if migrateErr != nil {
		pool.Close()
		return nil, migrateErr
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string) ([]Document, error) {
	if err := validate(collection, "-"); err != nil {
		return nil, wrap("query", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, order_key, data FROM documents WHERE collection = $1 ORDER BY order_key DESC, id ASC`,
		collection)
	if err != nil {
		return nil, wrap("query", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &doc.OrderKey, &data); err != nil {
			return nil, wrap("query", err)
		}
		doc.Data = data
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query", err)
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validate(collection, id); err != nil {
		return Document{}, wrap("get", err)
	}

	doc := Document{ID: id}
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT order_key, data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&doc.OrderKey, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, wrap("get", ErrNotFound)
	}
	if err != nil {
		return Document{}, wrap("get", err)
	}
	doc.Data = data
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection string, doc Document) error {
	if err := validate(collection, doc.ID); err != nil {
		return wrap("set", err)
	}
	_, err := s.pool.Exec(ctx, upsertPostgres, collection, doc.ID, doc.OrderKey, []byte(doc.Data))
	return wrap("set", err)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := validate(collection, id); err != nil {
		return wrap("delete", err)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return wrap("delete", err)
}

func (s *PostgresStore) Commit(ctx context.Context, collection string, docs []Document) error {
	for _, doc := range docs {
		if err := validate(collection, doc.ID); err != nil {
			return wrap("commit", err)
		}
	}
	if len(docs) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, doc := range docs {
			batch.Queue(upsertPostgres, collection, doc.ID, doc.OrderKey, []byte(doc.Data))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrap("commit", err)
}

// Close releases every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const upsertPostgres = `INSERT INTO documents (collection, id, order_key, data, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (collection, id) DO UPDATE SET
    order_key = EXCLUDED.order_key,
    data = EXCLUDED.data,
    updated_at = now()`

func classifyPostgres(err error) (Code, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgresCode(pgErr.Code), true
	}
	if pgconn.Timeout(err) {
		return CodeDeadlineExceeded, true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return CodeUnavailable, true
	}
	return "", false
}

// postgresCode maps a SQLSTATE to a code.
func postgresCode(sqlState string) Code {
	switch sqlState {
	case "40001", "40P01":
		return CodeAborted
	case "57014":
		return CodeDeadlineExceeded
	case "57P01", "57P02", "57P03":
		return CodeUnavailable
	case "42501", "28000", "28P01":
		return CodePermissionDenied
	}
	switch {
	case strings.HasPrefix(sqlState, "08"):
		return CodeUnavailable
	case strings.HasPrefix(sqlState, "53"):
		return CodeResourceExhausted
	case strings.HasPrefix(sqlState, "22"), strings.HasPrefix(sqlState, "23"):
		return CodeInvalidArgument
	case strings.HasPrefix(sqlState, "XX"):
		return CodeInternal
	}
	return CodeUnknown
}
