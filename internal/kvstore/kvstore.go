// Package kvstore is the device-local key-value store used for guest watchlists. Every key is
// a single file holding the whole value.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrFilesystemRequired = errors.New("filesystem not provided")
	ErrKeyRequired        = errors.New("key is required")
)

// DefaultDevice is the namespace used when a client does not identify its device.
const DefaultDevice = "default"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store reads and writes string values on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New creates a store rooted at dir on fs. The directory is created when missing.
func New(fsys afero.Fs, dir string) (*Store, error) {
	if fsys == nil {
		return nil, ErrFilesystemRequired
	}
	dir = strings.TrimSpace(dir)
	if dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create kv dir: %w", err)
		}
		fsys = afero.NewBasePathFs(fsys, dir)
	}
	return &Store{fs: fsys}, nil
}

// NewOS creates a store on the host filesystem.
func NewOS(dir string) (*Store, error) {
	return New(afero.NewOsFs(), dir)
}

// Device returns a store scoped to one device's namespace.
func (s *Store) Device(deviceID string) *Store {
	name := sanitize(deviceID)
	if name == "" {
		name = DefaultDevice
	}
	return &Store{fs: afero.NewBasePathFs(s.fs, filepath.Join("devices", name))}
}

// Get returns the value stored under key. The boolean is false when the key has never been set.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	name, err := fileName(key)
	if err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set replaces the value under key. The write goes through a temp file and a rename so readers
// never observe a partially written value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	name, err := fileName(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(".", 0o755); err != nil {
		return fmt.Errorf("create kv dir: %w", err)
	}

	// Each write gets its own temp file so concurrent writers never share one.
	file, err := afero.TempFile(s.fs, ".", name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s temp file: %w", key, err)
	}
	tmp := filepath.Base(file.Name())

	if _, err := file.WriteString(value); err != nil {
		file.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", key, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("sync %s: %w", key, err)
	}

	if err := file.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("close %s temp file: %w", key, err)
	}

	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func fileName(key string) (string, error) {
	name := sanitize(key)
	if name == "" {
		return "", ErrKeyRequired
	}
	return name + ".json", nil
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	value = unsafeChars.ReplaceAllString(value, "_")
	return strings.Trim(value, ".")
}
