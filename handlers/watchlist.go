package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"twowatch/internal/kvstore"
	"twowatch/models"
	"twowatch/services/metadata"
	"twowatch/services/watchlist"
)

// WatchlistStore is the watchlist surface one request works against.
type WatchlistStore interface {
	List(ctx context.Context) []models.WatchlistItem
	Add(ctx context.Context, entry models.WatchlistEntry) bool
	Remove(ctx context.Context, id int64, mediaType models.MediaType) bool
	IsInWatchlist(ctx context.Context, id int64, mediaType models.MediaType) bool
	MergeLocalIntoRemote(ctx context.Context) int
}

var _ WatchlistStore = (*watchlist.Store)(nil)

// StoreScope returns the store bound to a device's guest namespace.
type StoreScope func(deviceID string) WatchlistStore

// DeviceScope binds store to the per-device namespaces of root.
func DeviceScope(store *watchlist.Store, root *kvstore.Store) StoreScope {
	return func(deviceID string) WatchlistStore {
		return store.WithLocal(root.Device(deviceID))
	}
}

// TitleLookup fetches title details for a watchlist entry.
type TitleLookup interface {
	Entry(ctx context.Context, mediaType models.MediaType, id int64) (models.WatchlistEntry, error)
}

var _ TitleLookup = (*metadata.Service)(nil)

type WatchlistHandler struct {
	Scope StoreScope
	// Titles fills in missing title details on add. Optional.
	Titles TitleLookup
}

func NewWatchlistHandler(scope StoreScope, titles TitleLookup) *WatchlistHandler {
	return &WatchlistHandler{Scope: scope, Titles: titles}
}

func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.Scope(deviceID(r)).List(r.Context())
	if items == nil {
		items = []models.WatchlistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body models.WatchlistEntry
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mediaType, ok := models.ParseMediaType(string(body.MediaType))
	if !ok || body.ID <= 0 {
		http.Error(w, errInvalidTitleKey.Error(), http.StatusBadRequest)
		return
	}
	body.MediaType = mediaType
	body.Title = strings.TrimSpace(body.Title)

	if body.Title == "" && h.Titles != nil {
		entry, err := h.Titles.Entry(r.Context(), mediaType, body.ID)
		if err != nil {
			log.Printf("[watchlist] title lookup failed for %s: %v", body.Key(), err)
		} else {
			body = entry
		}
	}

	added := h.Scope(deviceID(r)).Add(r.Context(), body)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

func (h *WatchlistHandler) Check(w http.ResponseWriter, r *http.Request) {
	mediaType, id, err := titleKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	present := h.Scope(deviceID(r)).IsInWatchlist(r.Context(), id, mediaType)
	writeJSON(w, http.StatusOK, map[string]bool{"inWatchlist": present})
}

func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	mediaType, id, err := titleKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	removed := h.Scope(deviceID(r)).Remove(r.Context(), id, mediaType)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *WatchlistHandler) Merge(w http.ResponseWriter, r *http.Request) {
	merged := h.Scope(deviceID(r)).MergeLocalIntoRemote(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"merged": merged})
}

func (h *WatchlistHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
