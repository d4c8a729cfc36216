package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"twowatch/handlers"
	"twowatch/models"
	"twowatch/services/providers"
)

func newProvidersHandler() *handlers.ProvidersHandler {
	return handlers.NewProvidersHandler(providers.NewResolver(nil, nil))
}

func TestProvidersListSortedByName(t *testing.T) {
	h := newProvidersHandler()
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/providers", nil))

	var list []models.StreamingProvider
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) == 0 {
		t.Fatalf("expected providers")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("providers not sorted: %q before %q", list[i-1].Name, list[i].Name)
		}
	}
}

func TestProvidersLink(t *testing.T) {
	h := newProvidersHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/providers/8/link?title=The+Office&year=2005", nil)
	req = mux.SetURLVars(req, map[string]string{"provider": "8"})
	rec := httptest.NewRecorder()
	h.Link(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp handlers.ProviderLinkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WebURL != "https://www.netflix.com/search?q=The%20Office%202005" {
		t.Fatalf("unexpected web url %q", resp.WebURL)
	}
	if resp.DisplayName != "Netflix" {
		t.Fatalf("unexpected display name %q", resp.DisplayName)
	}
	if resp.DeepLink == "" || resp.FallbackURL != providers.DefaultFallbackSearchURL+"The%20Office" {
		t.Fatalf("unexpected links: %+v", resp)
	}
}

func TestProvidersLinkByNameAndAmazonImdb(t *testing.T) {
	h := newProvidersHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/providers/amazon-prime-video/link?title=Fleabag&imdbId=tt5687612", nil)
	req = mux.SetURLVars(req, map[string]string{"provider": "Amazon Prime Video"})
	rec := httptest.NewRecorder()
	h.Link(rec, req)

	var resp handlers.ProviderLinkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WebURL != "https://www.amazon.com/gp/video/detail/tt5687612" {
		t.Fatalf("unexpected web url %q", resp.WebURL)
	}
}

func TestProvidersLinkErrors(t *testing.T) {
	h := newProvidersHandler()

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/providers/99999/link", nil), map[string]string{"provider": "99999"})
	rec := httptest.NewRecorder()
	h.Link(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", rec.Code)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/providers/8/link?title=X&year=soon", nil), map[string]string{"provider": "8"})
	rec = httptest.NewRecorder()
	h.Link(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad year, got %d", rec.Code)
	}
}

func TestProvidersOpenReturnsProviderURL(t *testing.T) {
	h := newProvidersHandler()

	req := postJSON(t, "/api/providers/8/open", map[string]any{"title": "Dark"})
	req = mux.SetURLVars(req, map[string]string{"provider": "8"})
	rec := httptest.NewRecorder()
	h.Open(rec, req)

	var result models.OpenResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || !result.OpenedApp || result.URL != "https://www.netflix.com/search?q=Dark" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestProvidersOpenUnknownProviderFallsBack(t *testing.T) {
	h := newProvidersHandler()

	req := postJSON(t, "/api/providers/4242/open", map[string]any{
		"title":           "Dark",
		"providerPageUrl": "https://www.themoviedb.org/tv/70523/watch?locale=US",
	})
	req = mux.SetURLVars(req, map[string]string{"provider": "4242"})
	rec := httptest.NewRecorder()
	h.Open(rec, req)

	var result models.OpenResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.OpenedApp || result.URL != "https://www.themoviedb.org/tv/70523/watch?locale=US" {
		t.Fatalf("unexpected result %+v", result)
	}

	req = postJSON(t, "/api/providers/nope/open", map[string]any{"title": "Dark"})
	req = mux.SetURLVars(req, map[string]string{"provider": "nope"})
	rec = httptest.NewRecorder()
	h.Open(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.URL != providers.DefaultFallbackSearchURL+"Dark" || result.OpenedApp {
		t.Fatalf("expected aggregator search, got %+v", result)
	}
}
