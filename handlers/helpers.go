package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"twowatch/models"
)

// DeviceIDHeader names the guest namespace a request reads and writes.
const DeviceIDHeader = "X-Device-ID"

var (
	errInvalidTitleKey = errors.New("valid mediaType (movie|tv) and positive id are required")
	errInvalidYear     = errors.New("year must be a non-negative integer")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func deviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(DeviceIDHeader))
}

// titleKey reads the {mediaType}/{id} route variables.
func titleKey(r *http.Request) (models.MediaType, int64, error) {
	vars := mux.Vars(r)
	mediaType, ok := models.ParseMediaType(vars["mediaType"])
	if !ok {
		return "", 0, errInvalidTitleKey
	}
	id, err := strconv.ParseInt(strings.TrimSpace(vars["id"]), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errInvalidTitleKey
	}
	return mediaType, id, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
