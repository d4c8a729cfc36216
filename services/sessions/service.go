package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"twowatch/models"
)

const DefaultTTL = 30 * 24 * time.Hour

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrAccountRequired    = errors.New("account id is required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// Service issues and validates bearer tokens.
type Service struct {
	mu       sync.Mutex
	path     string
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]models.Session
}

// NewService creates a sessions service persisting tokens inside storageDir. A non-positive ttl
// uses DefaultTTL.
func NewService(storageDir string, ttl time.Duration) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	svc := &Service{
		path:     filepath.Join(storageDir, "sessions.json"),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]models.Session),
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	return svc, nil
}

// Create issues a new token for the account.
func (s *Service) Create(accountID string) (models.Session, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return models.Session{}, ErrAccountRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	session := models.Session{
		Token:     uuid.NewString(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[session.Token] = session
	s.purgeExpiredLocked(now)

	if err := s.saveLocked(); err != nil {
		delete(s.sessions, session.Token)
		return models.Session{}, err
	}

	return session, nil
}

// Validate returns the session for token if it exists and has not expired.
func (s *Service) Validate(token string) (models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Session{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		delete(s.sessions, token)
		_ = s.saveLocked()
		return models.Session{}, ErrSessionExpired
	}
	return session, nil
}

// Revoke deletes the token. Revoking an unknown token is not an error.
func (s *Service) Revoke(token string) error {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return nil
	}
	delete(s.sessions, token)
	return s.saveLocked()
}

// RevokeAccount deletes every token of the account and returns how many were removed.
func (s *Service) RevokeAccount(accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.AccountID == accountID {
			delete(s.sessions, token)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveLocked()
}

func (s *Service) purgeExpiredLocked(now time.Time) {
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
		}
	}
}

func (s *Service) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open sessions file: %w", err)
	}
	defer file.Close()

	var stored []models.Session
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}

	now := s.now()
	for _, session := range stored {
		if session.Token == "" || session.AccountID == "" || session.Expired(now) {
			continue
		}
		s.sessions[session.Token] = session
	}
	return nil
}

func (s *Service) saveLocked() error {
	stored := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		stored = append(stored, session)
	}
	sort.Slice(stored, func(i, j int) bool {
		return stored[i].CreatedAt.Before(stored[j].CreatedAt)
	})

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sessions temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace sessions file: %w", err)
	}
	return nil
}

type contextKey struct{}

// WithAccountID returns a context carrying the signed-in account id.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, contextKey{}, accountID)
}

// AccountIDFromContext returns the account id stored by WithAccountID.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// ContextIdentity reports the account id carried by the call's context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (string, bool) {
	return AccountIDFromContext(ctx)
}
