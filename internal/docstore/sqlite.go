package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

var migrateMu sync.Mutex

// SQLiteStore keeps documents in a single sqlite table keyed by (collection, id).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating when needed) the sqlite database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path not provided")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create docstore dir: %w", err)
		}
	}

	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping docstore: %w", err)
	}

	if err := runMigrations(db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB, dialect, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run docstore migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("verify docstore migration version: %w", err)
	}
	log.Printf("[docstore] %s schema at version %d", dialect, version)
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string) ([]Document, error) {
	if err := validate(collection, "-"); err != nil {
		return nil, wrap("query", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_key, data FROM documents WHERE collection = ? ORDER BY order_key DESC, id ASC`,
		collection)
	if err != nil {
		return nil, wrap("query", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			doc  Document
			data string
		)
		if err := rows.Scan(&doc.ID, &doc.OrderKey, &data); err != nil {
			return nil, wrap("query", err)
		}
		doc.Data = []byte(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query", err)
	}
	return docs, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validate(collection, id); err != nil {
		return Document{}, wrap("get", err)
	}

	var (
		doc  = Document{ID: id}
		data string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT order_key, data FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&doc.OrderKey, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, wrap("get", ErrNotFound)
	}
	if err != nil {
		return Document{}, wrap("get", err)
	}
	doc.Data = []byte(data)
	return doc, nil
}

func (s *SQLiteStore) Set(ctx context.Context, collection string, doc Document) error {
	if err := validate(collection, doc.ID); err != nil {
		return wrap("set", err)
	}
	_, err := s.db.ExecContext(ctx, upsertSQLite, collection, doc.ID, doc.OrderKey, string(doc.Data), time.Now().UnixMilli())
	return wrap("set", err)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if err := validate(collection, id); err != nil {
		return wrap("delete", err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return wrap("delete", err)
}

func (s *SQLiteStore) Commit(ctx context.Context, collection string, docs []Document) error {
	for _, doc := range docs {
		if err := validate(collection, doc.ID); err != nil {
			return wrap("commit", err)
		}
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("commit", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQLite)
	if err != nil {
		return wrap("commit", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, collection, doc.ID, doc.OrderKey, string(doc.Data), now); err != nil {
			return wrap("commit", err)
		}
	}

	return wrap("commit", tx.Commit())
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const upsertSQLite = `INSERT INTO documents (collection, id, order_key, data, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET
    order_key = excluded.order_key,
    data = excluded.data,
    updated_at = excluded.updated_at`

func classifySQLite(err error) (Code, bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrProtocol:
		return CodeUnavailable, true
	case sqlite3.ErrLocked, sqlite3.ErrAbort, sqlite3.ErrInterrupt:
		return CodeAborted, true
	case sqlite3.ErrFull, sqlite3.ErrNomem, sqlite3.ErrTooBig:
		return CodeResourceExhausted, true
	case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
		return CodePermissionDenied, true
	case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrRange:
		return CodeInvalidArgument, true
	case sqlite3.ErrNotFound:
		return CodeNotFound, true
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrSchema, sqlite3.ErrInternal, sqlite3.ErrMisuse:
		return CodeInternal, true
	}
	return CodeUnknown, true
}
