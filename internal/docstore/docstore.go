// Package docstore implements the remote document store that holds per-user watchlist
// collections. Documents live in named collections, are addressed by id and are read back
// ordered by their order key, newest first.
package docstore

import (
	"context"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// Code classifies a backend failure independently of the driver that produced it.
type Code string

const (
	CodeOK                Code = "ok"
	CodeUnknown           Code = "unknown"
	CodeCanceled          Code = "canceled"
	CodeInvalidArgument   Code = "invalid-argument"
	CodeDeadlineExceeded  Code = "deadline-exceeded"
	CodeNotFound          Code = "not-found"
	CodePermissionDenied  Code = "permission-denied"
	CodeResourceExhausted Code = "resource-exhausted"
	CodeAborted           Code = "aborted"
	CodeUnavailable       Code = "unavailable"
	CodeInternal          Code = "internal"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrCollectionMissing = errors.New("collection is required")
	ErrDocumentIDMissing = errors.New("document id is required")
	ErrUnsupportedDriver = errors.New("unsupported document store driver")
)

// Error wraps a backend failure with the operation that failed and its classified code.
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("docstore %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the classified code of err. Errors that were not produced by this package are
// classified on the fly.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var derr *Error
	if errors.As(err, &derr) && derr.Code != "" {
		return derr.Code
	}
	return classify(err)
}

// NewError builds a classified error. It is exported for alternative Store implementations and fakes.
func NewError(op string, code Code, err error) error {
	return &Error{Op: op, Code: code, Err: err}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var derr *Error
	if errors.As(err, &derr) {
		return err
	}
	return &Error{Op: op, Code: classify(err), Err: err}
}

func classify(err error) Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCollectionMissing), errors.Is(err, ErrDocumentIDMissing):
		return CodeInvalidArgument
	case errors.Is(err, driver.ErrBadConn):
		return CodeUnavailable
	}

	if code, ok := classifySQLite(err); ok {
		return code
	}
	if code, ok := classifyPostgres(err); ok {
		return code
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeDeadlineExceeded
		}
		return CodeUnavailable
	}
	return CodeUnknown
}

// Document is a single JSON payload stored in a collection.
type Document struct {
	ID       string          `json:"id"`
	OrderKey int64           `json:"orderKey"`
	Data     json.RawMessage `json:"data"`
}

// Store is the remote document store contract shared by every backend.
type Store interface {
	// Query returns every document in the collection ordered by OrderKey descending.
	Query(ctx context.Context, collection string) ([]Document, error)
	// Get returns a single document or an error classified as CodeNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, collection string, doc Document) error
	// Delete removes a document. Deleting a missing document succeeds.
	Delete(ctx context.Context, collection, id string) error
	// Commit writes all documents atomically.
	Commit(ctx context.Context, collection string, docs []Document) error
	Close() error
}

// Open connects to the configured backend. driverName is "sqlite" or "postgres".
func Open(ctx context.Context, driverName, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driverName)) {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(ctx, dsn)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driverName)
	}
}

// UserCollection returns the collection path that holds a user's watchlist documents.
func UserCollection(userID, name string) string {
	return "users/" + strings.TrimSpace(userID) + "/" + name
}

func validate(collection, id string) error {
	if strings.TrimSpace(collection) == "" {
		return ErrCollectionMissing
	}
	if strings.TrimSpace(id) == "" {
		return ErrDocumentIDMissing
	}
	return nil
}
