package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"twowatch/models"
	"twowatch/services/metadata"
)

type whereToWatchService interface {
	WhereToWatch(ctx context.Context, mediaType models.MediaType, id int64, region string) (models.WhereToWatch, error)
}

var _ whereToWatchService = (*metadata.Service)(nil)

type TitlesHandler struct {
	Service whereToWatchService
}

func NewTitlesHandler(service whereToWatchService) *TitlesHandler {
	return &TitlesHandler{Service: service}
}

func (h *TitlesHandler) WhereToWatch(w http.ResponseWriter, r *http.Request) {
	mediaType, id, err := titleKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	region := strings.TrimSpace(r.URL.Query().Get("region"))
	result, err := h.Service.WhereToWatch(r.Context(), mediaType, id, region)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, metadata.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		case errors.Is(err, metadata.ErrTitleNotFound):
			status = http.StatusNotFound
		case errors.Is(err, metadata.ErrUnsupportedMediaType):
			status = http.StatusBadRequest
		default:
			log.Printf("[titles] where-to-watch %s/%d failed: %v", mediaType, id, err)
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TitlesHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
