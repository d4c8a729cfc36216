package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"twowatch/models"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewService("test-key", "en-US", "us", nil, server.Client())
	svc.tmdb.baseURL = server.URL
	svc.tmdb.delay = time.Millisecond
	svc.tmdb.minInterval = 0
	return svc
}

func tmdbFixture(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/movie/155", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api key on %s", r.URL)
		}
		w.Write([]byte(`{"id":155,"title":"The Dark Knight","release_date":"2008-07-16","poster_path":"/dk.jpg","vote_average":8.5}`))
	})
	mux.HandleFunc("/movie/155/external_ids", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"imdb_id":"tt0468569"}`))
	})
	mux.HandleFunc("/movie/155/watch/providers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":155,"results":{
			"US":{
				"link":"https://www.themoviedb.org/movie/155/watch?locale=US",
				"flatrate":[{"provider_id":384,"provider_name":"Max","logo_path":"/max.jpg","display_priority":2}],
				"rent":[
					{"provider_id":10,"provider_name":"Amazon Video","logo_path":"/amz.jpg","display_priority":5},
					{"provider_id":2,"provider_name":"Apple TV","logo_path":"/apple.jpg","display_priority":4}
				],
				"buy":[
					{"provider_id":10,"provider_name":"Amazon Video","logo_path":"/amz.jpg","display_priority":5},
					{"provider_id":1899,"provider_name":"Some New Store","logo_path":"/new.jpg","display_priority":9}
				]
			},
			"GB":{"link":"https://www.themoviedb.org/movie/155/watch?locale=GB"}
		}}`))
	})
	return mux
}

func TestWhereToWatchMergesOffers(t *testing.T) {
	svc := newTestService(t, tmdbFixture(t))

	got, err := svc.WhereToWatch(context.Background(), models.MediaTypeMovie, 155, "")
	if err != nil {
		t.Fatalf("where to watch returned error: %v", err)
	}

	if got.Title != "The Dark Knight" || got.Year != 2008 || got.ImdbID != "tt0468569" || got.Region != "US" {
		t.Fatalf("unexpected title info: %+v", got)
	}
	if got.ProviderPageURL != "https://www.themoviedb.org/movie/155/watch?locale=US" {
		t.Fatalf("unexpected provider page url %q", got.ProviderPageURL)
	}
	if len(got.Providers) != 4 {
		t.Fatalf("expected 4 distinct providers, got %d: %+v", len(got.Providers), got.Providers)
	}

	wantOrder := []int{384, 2, 10, 1899}
	for i, id := range wantOrder {
		if got.Providers[i].ProviderID != id {
			t.Fatalf("provider %d: expected id %d, got %d", i, id, got.Providers[i].ProviderID)
		}
	}

	maxLink := got.Providers[0]
	if maxLink.WebURL != "https://play.max.com/search?q=The%20Dark%20Knight%202008" {
		t.Fatalf("unexpected max url %q", maxLink.WebURL)
	}
	if maxLink.DeepLink != "max://search/The%20Dark%20Knight" {
		t.Fatalf("unexpected max deep link %q", maxLink.DeepLink)
	}
	if maxLink.Icon != "logo-hbo" || maxLink.LogoPath != "https://image.tmdb.org/t/p/w92/max.jpg" {
		t.Fatalf("unexpected max artwork: %+v", maxLink)
	}

	amazon := got.Providers[2]
	if amazon.WebURL != "https://www.amazon.com/gp/video/detail/tt0468569" {
		t.Fatalf("expected amazon detail page, got %q", amazon.WebURL)
	}
	if len(amazon.Offers) != 2 || amazon.Offers[0] != "rent" || amazon.Offers[1] != "buy" {
		t.Fatalf("expected rent and buy offers, got %v", amazon.Offers)
	}

	unknown := got.Providers[3]
	if unknown.Name != "Some New Store" || unknown.WebURL != "" || unknown.DeepLink != "" {
		t.Fatalf("unknown provider should keep tmdb name and have no links: %+v", unknown)
	}
}

func TestWhereToWatchRegionWithoutOffers(t *testing.T) {
	svc := newTestService(t, tmdbFixture(t))

	got, err := svc.WhereToWatch(context.Background(), models.MediaTypeMovie, 155, "gb")
	if err != nil {
		t.Fatalf("where to watch returned error: %v", err)
	}
	if got.Region != "GB" || len(got.Providers) != 0 {
		t.Fatalf("expected empty GB providers, got %+v", got)
	}
	if got.ProviderPageURL == "" {
		t.Fatal("expected provider page url for GB")
	}

	got, err = svc.WhereToWatch(context.Background(), models.MediaTypeMovie, 155, "FR")
	if err != nil {
		t.Fatalf("where to watch returned error: %v", err)
	}
	if got.Providers == nil || len(got.Providers) != 0 || got.ProviderPageURL != "" {
		t.Fatalf("expected empty result for FR, got %+v", got)
	}
}

func TestWhereToWatchNotConfigured(t *testing.T) {
	svc := NewService("", "", "", nil, nil)
	if _, err := svc.WhereToWatch(context.Background(), models.MediaTypeTV, 1, "US"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if svc.Configured() {
		t.Fatal("expected unconfigured service")
	}
}

func TestWhereToWatchRejectsMediaType(t *testing.T) {
	svc := newTestService(t, tmdbFixture(t))
	if _, err := svc.WhereToWatch(context.Background(), "person", 1, "US"); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
}

func TestWhereToWatchNotFound(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_code":34}`, http.StatusNotFound)
	}))

	if _, err := svc.WhereToWatch(context.Background(), models.MediaTypeTV, 42, "US"); !errors.Is(err, ErrTitleNotFound) {
		t.Fatalf("expected ErrTitleNotFound, got %v", err)
	}
}

func TestTMDBClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","vote_average":8.9,"poster_path":"/bb.jpg"}`))
	}))

	entry, err := svc.Entry(context.Background(), models.MediaTypeTV, 1396)
	if err != nil {
		t.Fatalf("entry returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if entry.Title != "Breaking Bad" || entry.PosterPath == nil || *entry.PosterPath != "/bb.jpg" || entry.VoteAverage != 8.9 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestTMDBClientDoesNotRetryClientErrors(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := svc.Entry(context.Background(), models.MediaTypeMovie, 1); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestParseTMDBYear(t *testing.T) {
	cases := []struct {
		primary, fallback string
		want              int
	}{
		{"2008-07-16", "", 2008},
		{"", "2011-04-17", 2011},
		{"bad", "1999-01-01", 1999},
		{"", "", 0},
	}
	for _, tc := range cases {
		if got := parseTMDBYear(tc.primary, tc.fallback); got != tc.want {
			t.Fatalf("parseTMDBYear(%q, %q) = %d, want %d", tc.primary, tc.fallback, got, tc.want)
		}
	}
}
