package models

import (
	"strconv"
	"strings"
)

// MediaType distinguishes movies from TV series. Catalog ids are only unique per media type.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// ParseMediaType normalises a user supplied media type. "series" is accepted as an alias for tv.
func ParseMediaType(value string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie", "movies":
		return MediaTypeMovie, true
	case "tv", "series", "show":
		return MediaTypeTV, true
	}
	return "", false
}

// Valid reports whether the media type is one of the known values.
func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

// WatchlistItem represents a media entry saved by the user for quick access.
// The JSON shape matches what the mobile app persists on device.
type WatchlistItem struct {
	ID          int64     `json:"id"`
	MediaType   MediaType `json:"mediaType"`
	Title       string    `json:"title"`
	PosterPath  *string   `json:"poster_path"`
	VoteAverage float64   `json:"vote_average"`
	AddedAt     int64     `json:"addedAt"` // unix milliseconds, set once on creation
}

// WatchlistEntry captures data required to add a watchlist item; AddedAt is stamped by the store.
type WatchlistEntry struct {
	ID          int64     `json:"id"`
	MediaType   MediaType `json:"mediaType"`
	Title       string    `json:"title"`
	PosterPath  *string   `json:"poster_path"`
	VoteAverage float64   `json:"vote_average"`
}

// Stamp converts the entry into a stored item added at the given time.
func (e WatchlistEntry) Stamp(addedAt int64) WatchlistItem {
	return WatchlistItem{
		ID:          e.ID,
		MediaType:   e.MediaType,
		Title:       e.Title,
		PosterPath:  e.PosterPath,
		VoteAverage: e.VoteAverage,
		AddedAt:     addedAt,
	}
}

// Key returns a stable identifier for the watchlist entry combining media type and ID.
func (e WatchlistEntry) Key() string {
	return WatchlistDocumentID(e.ID, e.MediaType)
}

// Key returns a stable identifier for the watchlist item combining media type and ID.
func (w WatchlistItem) Key() string {
	return WatchlistDocumentID(w.ID, w.MediaType)
}

// Matches reports whether the item has the given composite key.
func (w WatchlistItem) Matches(id int64, mediaType MediaType) bool {
	return w.ID == id && w.MediaType == mediaType
}

// WatchlistDocumentID builds the remote document key "{mediaType}_{id}".
func WatchlistDocumentID(id int64, mediaType MediaType) string {
	return string(mediaType) + "_" + strconv.FormatInt(id, 10)
}
