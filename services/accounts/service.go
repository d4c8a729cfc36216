package accounts

import (
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
	"golang.org/x/crypto/bcrypt"

	"twowatch/models"
)

const minPasswordLength = 8

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailInvalid       = errors.New("email is invalid")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
)

// Service manages persistence of accounts. An account's ID is the user id that owns a remote
// watchlist, so it never changes once issued.
type Service struct {
	mu       sync.RWMutex
	path     string
	accounts map[string]models.Account
	byEmail  map[string]string
	cost     int
}

// NewService creates an accounts service storing data inside the provided directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}

	svc := &Service{
		path:     filepath.Join(storageDir, "accounts.json"),
		accounts: make(map[string]models.Account),
		byEmail:  make(map[string]string),
		cost:     bcrypt.DefaultCost,
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	return svc, nil
}

// Register creates an account with a hashed password.
func (s *Service) Register(email, password, displayName string) (models.Account, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return models.Account{}, err
	}
	if len(password) < minPasswordLength {
		return models.Account{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[normalized]; exists {
		return models.Account{}, ErrEmailTaken
	}

	id := uuid.NewString()
	if _, exists := s.accounts[id]; exists {
		return models.Account{}, fmt.Errorf("generated duplicate account id")
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:           id,
		Email:        normalized,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.accounts[id] = account
	s.byEmail[normalized] = id

	if err := s.saveLocked(); err != nil {
		delete(s.accounts, id)
		delete(s.byEmail, normalized)
		return models.Account{}, err
	}

	return account, nil
}

// Authenticate checks the credentials and returns the matching account.
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(email, password string) (models.Account, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return models.Account{}, ErrInvalidCredentials
	}

	s.mu.RLock()
	id, ok := s.byEmail[normalized]
	account := s.accounts[id]
	s.mu.RUnlock()

	if !ok || account.PasswordHash == "" {
		return models.Account{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Account{}, ErrInvalidCredentials
	}

	return account, nil
}

// Get returns the account with the given ID if present.
func (s *Service) Get(id string) (models.Account, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Account{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	return account, ok
}

// Exists reports whether an account with the provided ID is registered.
func (s *Service) Exists(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// List returns all accounts sorted by creation time, then email.
func (s *Service) List() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedLocked()
}

// Rename updates the account's display name.
func (s *Service) Rename(id, displayName string) (models.Account, error) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}

	account.DisplayName = strings.TrimSpace(displayName)
	account.UpdatedAt = time.Now().UTC()
	s.accounts[id] = account

	if err := s.saveLocked(); err != nil {
		return models.Account{}, err
	}

	return account, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(id, current, next string) error {
	if len(next) < minPasswordLength {
		return ErrPasswordTooShort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return ErrAccountNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = string(hash)
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = account

	return s.saveLocked()
}

// Delete removes an account by ID.
func (s *Service) Delete(id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	delete(s.accounts, id)
	delete(s.byEmail, account.Email)

	return s.saveLocked()
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrEmailRequired
	}
	at := strings.LastIndex(normalized, "@")
	if at <= 0 || at == len(normalized)-1 || strings.ContainsAny(normalized, " \t\r\n") {
		return "", ErrEmailInvalid
	}
	return normalized, nil
}

func (s *Service) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open accounts file: %w", err)
	}
	defer file.Close()

	var stored []models.Account
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}

	for _, account := range stored {
		if strings.TrimSpace(account.ID) == "" {
			continue
		}
		email, err := normalizeEmail(account.Email)
		if err != nil {
			continue
		}
		account.Email = email
		if account.CreatedAt.IsZero() {
			account.CreatedAt = time.Now().UTC()
		}
		if account.UpdatedAt.IsZero() {
			account.UpdatedAt = account.CreatedAt
		}
		s.accounts[account.ID] = account
		s.byEmail[email] = account.ID
	}

	return nil
}

func (s *Service) sortedLocked() []models.Account {
	accounts := make([]models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].Email < accounts[j].Email
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	return accounts
}

func (s *Service) saveLocked() error {
	return writeJSONFile(s.path, s.sortedLocked())
}

func writeJSONFile(path string, value any) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create accounts temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode accounts: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync accounts: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close accounts temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace accounts file: %w", err)
	}

	return nil
}
