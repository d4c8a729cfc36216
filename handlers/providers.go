package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"twowatch/internal/launcher"
	"twowatch/models"
	"twowatch/services/providers"
)

type linkResolver interface {
	ResolveWebURL(providerID int, q models.LinkQuery) (string, bool)
	FallbackSearchURL(title string) string
	Registry() *providers.Registry
	WithOpener(opener providers.Opener) *providers.Resolver
}

var _ linkResolver = (*providers.Resolver)(nil)

// ProviderLinkResponse describes every link the client can use for one provider and title.
type ProviderLinkResponse struct {
	Provider    models.StreamingProvider `json:"provider"`
	DisplayName string                   `json:"displayName"`
	WebURL      string                   `json:"webUrl,omitempty"`
	DeepLink    string                   `json:"deepLink,omitempty"`
	FallbackURL string                   `json:"fallbackUrl,omitempty"`
}

type ProvidersHandler struct {
	Resolver linkResolver
	// Schemes limits what the open endpoint hands back to clients.
	Schemes []string
}

func NewProvidersHandler(resolver linkResolver) *ProvidersHandler {
	return &ProvidersHandler{Resolver: resolver}
}

func (h *ProvidersHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Resolver.Registry().Providers())
}

func (h *ProvidersHandler) Link(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["provider"]
	provider, ok := h.Resolver.Registry().Find(ref)
	if !ok {
		msg := "unknown provider"
		if guess, found := h.Resolver.Registry().Suggest(ref); found {
			msg = fmt.Sprintf("unknown provider %q, did you mean %q?", ref, guess.Name)
		}
		http.Error(w, msg, http.StatusNotFound)
		return
	}

	query, err := linkQueryFromURL(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := ProviderLinkResponse{
		Provider:    provider,
		DisplayName: h.Resolver.Registry().DisplayName(provider.ProviderID),
	}
	if webURL, ok := h.Resolver.ResolveWebURL(provider.ProviderID, query); ok {
		resp.WebURL = webURL
	}
	if deepLink, ok := h.Resolver.Registry().DeepLink(provider.ProviderID, query.Title); ok {
		resp.DeepLink = deepLink
	}
	if query.Title != "" {
		resp.FallbackURL = h.Resolver.FallbackSearchURL(query.Title)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Open runs the resolver against a capturing opener; the client navigates to the returned URL.
func (h *ProvidersHandler) Open(w http.ResponseWriter, r *http.Request) {
	var body models.OpenRequest
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	providerID := 0
	if provider, ok := h.Resolver.Registry().Find(mux.Vars(r)["provider"]); ok {
		providerID = provider.ProviderID
	} else if id, err := strconv.Atoi(strings.TrimSpace(mux.Vars(r)["provider"])); err == nil {
		providerID = id
	}

	opener := launcher.NewCaptureOpener(h.Schemes...)
	result := h.Resolver.WithOpener(opener).Open(r.Context(), providerID, body)
	writeJSON(w, http.StatusOK, result)
}

func (h *ProvidersHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func linkQueryFromURL(r *http.Request) (models.LinkQuery, error) {
	values := r.URL.Query()
	query := models.LinkQuery{
		Title:  strings.TrimSpace(values.Get("title")),
		ImdbID: strings.TrimSpace(values.Get("imdbId")),
	}
	if raw := strings.TrimSpace(values.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 0 {
			return models.LinkQuery{}, errInvalidYear
		}
		query.Year = year
	}
	return query, nil
}
