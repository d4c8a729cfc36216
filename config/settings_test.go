package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	mgr := NewManager(path)

	s, err := mgr.Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if s.Watchlist.LocalKey != "2watch_watchlist" {
		t.Fatalf("unexpected local key %q", s.Watchlist.LocalKey)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected defaults to be written: %v", err)
	}
	if s.Sessions.TTL() != 30*24*time.Hour {
		t.Fatalf("unexpected session ttl %v", s.Sessions.TTL())
	}
	if s.Watchlist.RetryBaseDelay() != 300*time.Millisecond || s.Watchlist.LogThrottleWindow() != 30*time.Second {
		t.Fatalf("unexpected watchlist timings: %+v", s.Watchlist)
	}
}

func TestLoadBackfillsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := `{"server":{"port":9000},"storage":{"driver":"Postgres","dsn":"postgres://localhost/twowatch"},"metadata":{"tmdbApiKey":"abc"}}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	s, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if s.Server.Port != 9000 || s.Server.Host != "0.0.0.0" {
		t.Fatalf("unexpected server settings %+v", s.Server)
	}
	if s.Storage.Driver != "postgres" || s.Storage.DSN != "postgres://localhost/twowatch" || s.Storage.DataDir != "cache" {
		t.Fatalf("unexpected storage settings %+v", s.Storage)
	}
	if s.Metadata.TMDBAPIKey != "abc" || s.Metadata.Region != "US" {
		t.Fatalf("unexpected metadata settings %+v", s.Metadata)
	}
	if s.Watchlist.RetryAttempts != 2 || s.Links.FallbackSearchURL == "" {
		t.Fatalf("expected watchlist and links defaults, got %+v %+v", s.Watchlist, s.Links)
	}
}

func TestLoadClampsRetryAttempts(t *testing.T) {
	for raw, want := range map[int]int{-1: 2, 0: 2, 1: 1, 2: 2, 50: MaxRetryAttempts} {
		path := filepath.Join(t.TempDir(), "settings.json")
		body := fmt.Sprintf(`{"watchlist":{"retryAttempts":%d}}`, raw)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write settings: %v", err)
		}
		s, err := NewManager(path).Load()
		if err != nil {
			t.Fatalf("load returned error: %v", err)
		}
		if s.Watchlist.RetryAttempts != want {
			t.Fatalf("retryAttempts %d: expected %d, got %d", raw, want, s.Watchlist.RetryAttempts)
		}
	}
}

func TestLoadPostgresWithoutDSNStaysEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"storage":{"driver":"postgres"}}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	s, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if s.Storage.DSN != "" {
		t.Fatalf("sqlite default dsn must not leak into postgres config, got %q", s.Storage.DSN)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "settings.json"))
	s := DefaultSettings()
	s.Links.FallbackSearchURL = "https://search.example/?q="
	if err := mgr.Save(s); err != nil {
		t.Fatalf("save returned error: %v", err)
	}
	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if loaded.Links.FallbackSearchURL != "https://search.example/?q=" {
		t.Fatalf("unexpected fallback url %q", loaded.Links.FallbackSearchURL)
	}
}

func TestLoadWithoutPath(t *testing.T) {
	if _, err := NewManager("").Load(); err == nil {
		t.Fatal("expected error for empty path")
	}
}
