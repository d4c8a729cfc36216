package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"twowatch/internal/docstore"
	"twowatch/models"
)

const (
	// LocalKey is the single key holding a device's guest watchlist.
	LocalKey = "2watch_watchlist"
	// CollectionName is the per-user remote collection holding watchlist documents.
	CollectionName = "watchlist"
)

var (
	ErrIdentityRequired    = errors.New("identity provider not provided")
	ErrLocalStoreRequired  = errors.New("local store not provided")
	ErrRemoteStoreRequired = errors.New("remote store not provided")
)

// IdentityProvider reports the signed-in user for the current call, if any.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// StaticIdentity is an identity fixed at construction time. The empty value is a guest.
type StaticIdentity string

func (s StaticIdentity) CurrentUserID(context.Context) (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// KeyValueStore is the device-local storage primitive.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// DocumentStore is the remote storage primitive holding one collection per user.
type DocumentStore interface {
	Query(ctx context.Context, collection string) ([]docstore.Document, error)
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
	Set(ctx context.Context, collection string, doc docstore.Document) error
	Delete(ctx context.Context, collection, id string) error
	Commit(ctx context.Context, collection string, docs []docstore.Document) error
}

// Store manages the watchlist of whichever scope is active: the device-local guest list, or the
// remote list of the signed-in user. Remote failures that look temporary fall back to the local
// list so guests-turned-users keep working while the backend is degraded.
type Store struct {
	identity IdentityProvider
	local    KeyValueStore
	remote   DocumentStore
	retry    RetryPolicy
	throttle *LogThrottle
	now      func() time.Time
	localKey string
}

// Option customises a Store.
type Option func(*Store)

// WithRetryPolicy replaces the default retry policy for remote calls.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// WithLogThrottle shares a log throttle between stores.
func WithLogThrottle(t *LogThrottle) Option {
	return func(s *Store) {
		if t != nil {
			s.throttle = t
		}
	}
}

// WithClock overrides the clock used to stamp addedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocalKey overrides the local storage key.
func WithLocalKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.localKey = key
		}
	}
}

// NewStore creates a watchlist store over the given identity provider and backends.
func NewStore(identity IdentityProvider, local KeyValueStore, remote DocumentStore, opts ...Option) (*Store, error) {
	if identity == nil {
		return nil, ErrIdentityRequired
	}
	if local == nil {
		return nil, ErrLocalStoreRequired
	}
	if remote == nil {
		return nil, ErrRemoteStoreRequired
	}

	s := &Store{
		identity: identity,
		local:    local,
		remote:   remote,
		retry:    DefaultRetryPolicy(),
		throttle: NewLogThrottle(defaultThrottleWindow),
		now:      time.Now,
		localKey: LocalKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WithLocal returns a store bound to another local namespace. Remote store, identity, retry
// policy and log throttle are shared with s.
func (s *Store) WithLocal(local KeyValueStore) *Store {
	clone := *s
	if local != nil {
		clone.local = local
	}
	return &clone
}

// List returns the active scope's items, newest first. It never fails: unreadable storage yields
// an empty list. A transient remote failure serves the local list instead, while any other
// remote failure yields an empty list rather than possibly stale local data.
func (s *Store) List(ctx context.Context) []models.WatchlistItem {
	userID, signedIn := s.currentUser(ctx)
	if !signedIn {
		return s.localList(ctx)
	}

	items, err := s.remoteList(ctx, userID)
	switch {
	case err == nil:
		return items
	case IsTransient(err):
		s.throttle.Printf("list", docstore.CodeOf(err),
			"[watchlist] remote list unavailable for user %s, serving local watchlist: %v", userID, err)
		return s.localList(ctx)
	default:
		log.Printf("[watchlist] remote list failed for user %s: %v", userID, err)
		return []models.WatchlistItem{}
	}
}

// Add saves a new entry stamped with the current time. It returns false when the entry already
// exists in the active scope or could not be stored.
func (s *Store) Add(ctx context.Context, entry models.WatchlistEntry) bool {
	if !validKey(entry.ID, entry.MediaType) {
		return false
	}
	item := entry.Stamp(s.now().UnixMilli())

	userID, signedIn := s.currentUser(ctx)
	if !signedIn {
		return s.localAdd(ctx, item)
	}

	if s.remoteContains(ctx, userID, item.ID, item.MediaType) {
		return false
	}

	err := s.remoteSet(ctx, userID, item)
	switch {
	case err == nil:
		return true
	case IsTransient(err):
		s.throttle.Printf("add", docstore.CodeOf(err),
			"[watchlist] remote add unavailable for user %s, saving %s locally: %v", userID, item.Key(), err)
		return s.localAdd(ctx, item)
	default:
		log.Printf("[watchlist] remote add of %s failed for user %s: %v", item.Key(), userID, err)
		return false
	}
}

// Remove deletes the entry with the given key. Removing an absent entry succeeds.
func (s *Store) Remove(ctx context.Context, id int64, mediaType models.MediaType) bool {
	if !validKey(id, mediaType) {
		return false
	}

	userID, signedIn := s.currentUser(ctx)
	if !signedIn {
		return s.localRemove(ctx, id, mediaType)
	}

	docID := models.WatchlistDocumentID(id, mediaType)
	collection := docstore.UserCollection(userID, CollectionName)
	err := s.retry.Do(ctx, func() error {
		return s.remote.Delete(ctx, collection, docID)
	}, s.onRetry("remove"))

	switch {
	case err == nil:
		return true
	case IsTransient(err):
		s.throttle.Printf("remove", docstore.CodeOf(err),
			"[watchlist] remote remove unavailable for user %s, removing %s locally: %v", userID, docID, err)
		return s.localRemove(ctx, id, mediaType)
	default:
		log.Printf("[watchlist] remote remove of %s failed for user %s: %v", docID, userID, err)
		return false
	}
}

// IsInWatchlist reports whether the entry exists in the active scope. Failures read as false.
func (s *Store) IsInWatchlist(ctx context.Context, id int64, mediaType models.MediaType) bool {
	if !validKey(id, mediaType) {
		return false
	}

	userID, signedIn := s.currentUser(ctx)
	if !signedIn {
		items, err := s.readLocal(ctx)
		if err != nil {
			log.Printf("[watchlist] check local watchlist: %v", err)
			return false
		}
		return containsKey(items, id, mediaType)
	}
	return s.remoteContains(ctx, userID, id, mediaType)
}

// MergeLocalIntoRemote copies local entries missing from the signed-in user's remote watchlist in
// one atomic batch, returning how many were written. It is meant to run once after sign-in. Any
// failure aborts the merge; local data is left in place either way.
func (s *Store) MergeLocalIntoRemote(ctx context.Context) int {
	userID, signedIn := s.currentUser(ctx)
	if !signedIn {
		return 0
	}

	local, err := s.readLocal(ctx)
	if err != nil {
		log.Printf("[watchlist] merge skipped, local watchlist unreadable: %v", err)
		return 0
	}
	if len(local) == 0 {
		return 0
	}

	remote, err := s.remoteList(ctx, userID)
	if err != nil {
		s.logMergeFailure("merge-read", userID, err)
		return 0
	}

	seen := make(map[string]struct{}, len(remote)+len(local))
	for _, item := range remote {
		seen[item.Key()] = struct{}{}
	}

	pending := make([]docstore.Document, 0, len(local))
	for _, item := range local {
		if !validKey(item.ID, item.MediaType) {
			continue
		}
		key := item.Key()
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}

		doc, err := encodeDocument(item)
		if err != nil {
			log.Printf("[watchlist] merge skipping %s: %v", key, err)
			continue
		}
		pending = append(pending, doc)
	}
	if len(pending) == 0 {
		return 0
	}

	collection := docstore.UserCollection(userID, CollectionName)
	err = s.retry.Do(ctx, func() error {
		return s.remote.Commit(ctx, collection, pending)
	}, s.onRetry("merge"))
	if err != nil {
		s.logMergeFailure("merge-commit", userID, err)
		return 0
	}

	log.Printf("[watchlist] merged %d local item(s) into remote watchlist for user %s", len(pending), userID)
	return len(pending)
}

func (s *Store) logMergeFailure(op, userID string, err error) {
	if IsTransient(err) {
		s.throttle.Printf(op, docstore.CodeOf(err),
			"[watchlist] merge aborted for user %s, remote unavailable: %v", userID, err)
		return
	}
	log.Printf("[watchlist] merge aborted for user %s: %v", userID, err)
}

func (s *Store) currentUser(ctx context.Context) (string, bool) {
	userID, ok := s.identity.CurrentUserID(ctx)
	userID = strings.TrimSpace(userID)
	return userID, ok && userID != ""
}

func (s *Store) onRetry(op string) func(uint, error) {
	return func(n uint, err error) {
		s.throttle.Printf(op+"-retry", docstore.CodeOf(err),
			"[watchlist] remote %s attempt %d failed: %v", op, n+1, err)
	}
}

func (s *Store) remoteList(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	collection := docstore.UserCollection(userID, CollectionName)

	var docs []docstore.Document
	err := s.retry.Do(ctx, func() error {
		var err error
		docs, err = s.remote.Query(ctx, collection)
		return err
	}, s.onRetry("list"))
	if err != nil {
		return nil, err
	}

	items := make([]models.WatchlistItem, 0, len(docs))
	for _, doc := range docs {
		var item models.WatchlistItem
		if err := json.Unmarshal(doc.Data, &item); err != nil {
			log.Printf("[watchlist] skipping malformed document %s in %s: %v", doc.ID, collection, err)
			continue
		}
		items = append(items, item)
	}
	sortNewestFirst(items)
	return items, nil
}

func (s *Store) remoteSet(ctx context.Context, userID string, item models.WatchlistItem) error {
	doc, err := encodeDocument(item)
	if err != nil {
		return err
	}
	collection := docstore.UserCollection(userID, CollectionName)
	return s.retry.Do(ctx, func() error {
		return s.remote.Set(ctx, collection, doc)
	}, s.onRetry("add"))
}

func (s *Store) remoteContains(ctx context.Context, userID string, id int64, mediaType models.MediaType) bool {
	collection := docstore.UserCollection(userID, CollectionName)
	docID := models.WatchlistDocumentID(id, mediaType)

	err := s.retry.Do(ctx, func() error {
		_, err := s.remote.Get(ctx, collection, docID)
		return err
	}, s.onRetry("check"))

	switch code := docstore.CodeOf(err); {
	case err == nil:
		return true
	case code == docstore.CodeNotFound:
		return false
	case IsTransient(err):
		s.throttle.Printf("check", code, "[watchlist] remote check of %s unavailable for user %s: %v", docID, userID, err)
		return false
	default:
		log.Printf("[watchlist] remote check of %s failed for user %s: %v", docID, userID, err)
		return false
	}
}

func (s *Store) localList(ctx context.Context) []models.WatchlistItem {
	items, err := s.readLocal(ctx)
	if err != nil {
		log.Printf("[watchlist] read local watchlist: %v", err)
		return []models.WatchlistItem{}
	}
	sortNewestFirst(items)
	return items
}

func (s *Store) localAdd(ctx context.Context, item models.WatchlistItem) bool {
	items, err := s.readLocal(ctx)
	if err != nil {
		log.Printf("[watchlist] add %s: read local watchlist: %v", item.Key(), err)
		return false
	}
	if containsKey(items, item.ID, item.MediaType) {
		return false
	}

	items = append([]models.WatchlistItem{item}, items...)
	if err := s.writeLocal(ctx, items); err != nil {
		log.Printf("[watchlist] add %s: %v", item.Key(), err)
		return false
	}
	return true
}

func (s *Store) localRemove(ctx context.Context, id int64, mediaType models.MediaType) bool {
	items, err := s.readLocal(ctx)
	if err != nil {
		log.Printf("[watchlist] remove %s: read local watchlist: %v", models.WatchlistDocumentID(id, mediaType), err)
		return false
	}

	kept := items[:0]
	for _, item := range items {
		if !item.Matches(id, mediaType) {
			kept = append(kept, item)
		}
	}

	if err := s.writeLocal(ctx, kept); err != nil {
		log.Printf("[watchlist] remove %s: %v", models.WatchlistDocumentID(id, mediaType), err)
		return false
	}
	return true
}

// readLocal returns the stored local list in stored order. Missing or malformed content reads as
// an empty list; only storage failures are returned as errors.
func (s *Store) readLocal(ctx context.Context) ([]models.WatchlistItem, error) {
	raw, ok, err := s.local.Get(ctx, s.localKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []models.WatchlistItem{}, nil
	}

	var items []models.WatchlistItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("[watchlist] ignoring malformed local watchlist: %v", err)
		return []models.WatchlistItem{}, nil
	}
	if items == nil {
		items = []models.WatchlistItem{}
	}
	return items, nil
}

func (s *Store) writeLocal(ctx context.Context, items []models.WatchlistItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.local.Set(ctx, s.localKey, string(data))
}

func encodeDocument(item models.WatchlistItem) (docstore.Document, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: item.Key(), OrderKey: item.AddedAt, Data: data}, nil
}

func containsKey(items []models.WatchlistItem, id int64, mediaType models.MediaType) bool {
	for _, item := range items {
		if item.Matches(id, mediaType) {
			return true
		}
	}
	return false
}

func validKey(id int64, mediaType models.MediaType) bool {
	return id > 0 && mediaType.Valid()
}

func sortNewestFirst(items []models.WatchlistItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt > items[j].AddedAt
	})
}
