package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Storage   StorageSettings   `json:"storage"`
	Watchlist WatchlistSettings `json:"watchlist"`
	Links     LinksSettings     `json:"links"`
	Metadata  MetadataSettings  `json:"metadata"`
	Sessions  SessionSettings   `json:"sessions"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// AllowedOrigins feeds the CORS middleware; "*" allows any origin.
	AllowedOrigins []string `json:"allowedOrigins"`
}

// StorageSettings selects the remote document store and where local data lives.
type StorageSettings struct {
	Driver  string `json:"driver"` // sqlite | postgres
	DSN     string `json:"dsn"`    // database file for sqlite, connection string for postgres
	DataDir string `json:"dataDir"`
}

// MaxRetryAttempts caps watchlist.retryAttempts: one call plus at most one retry.
const MaxRetryAttempts = 2

type WatchlistSettings struct {
	LocalKey string `json:"localKey"`
	// RetryAttempts counts the first call; values above MaxRetryAttempts are clamped.
	RetryAttempts      int `json:"retryAttempts"`
	RetryBaseDelayMs   int `json:"retryBaseDelayMs"`
	LogThrottleSeconds int `json:"logThrottleSeconds"`
}

func (w WatchlistSettings) RetryBaseDelay() time.Duration {
	return time.Duration(w.RetryBaseDelayMs) * time.Millisecond
}

func (w WatchlistSettings) LogThrottleWindow() time.Duration {
	return time.Duration(w.LogThrottleSeconds) * time.Second
}

type LinksSettings struct {
	FallbackSearchURL string `json:"fallbackSearchUrl"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
	Region     string `json:"region"`
}

type SessionSettings struct {
	TTLHours int `json:"ttlHours"`
}

func (s SessionSettings) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:  ServerSettings{Host: "0.0.0.0", Port: 7788, AllowedOrigins: []string{"*"}},
		Storage: StorageSettings{Driver: "sqlite", DSN: "cache/twowatch.db", DataDir: "cache"},
		Watchlist: WatchlistSettings{
			LocalKey:           "2watch_watchlist",
			RetryAttempts:      2,
			RetryBaseDelayMs:   300,
			LogThrottleSeconds: 30,
		},
		Links:    LinksSettings{FallbackSearchURL: "https://www.justwatch.com/us/search?q="},
		Metadata: MetadataSettings{TMDBAPIKey: "", Language: "en-US", Region: "US"},
		Sessions: SessionSettings{TTLHours: 24 * 30},
		Log: LogConfig{
			File:       "cache/logs/backend.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	backfill(&s)
	return s, nil
}

// backfill replaces zero values left by older or partial settings files with defaults.
func backfill(s *Settings) {
	d := DefaultSettings()

	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Server.Port <= 0 {
		s.Server.Port = d.Server.Port
	}
	if s.Server.AllowedOrigins == nil {
		s.Server.AllowedOrigins = d.Server.AllowedOrigins
	}

	s.Storage.Driver = strings.ToLower(strings.TrimSpace(s.Storage.Driver))
	if s.Storage.Driver == "" {
		s.Storage.Driver = d.Storage.Driver
	}
	if strings.TrimSpace(s.Storage.DSN) == "" && s.Storage.Driver == d.Storage.Driver {
		s.Storage.DSN = d.Storage.DSN
	}
	if strings.TrimSpace(s.Storage.DataDir) == "" {
		s.Storage.DataDir = d.Storage.DataDir
	}

	if strings.TrimSpace(s.Watchlist.LocalKey) == "" {
		s.Watchlist.LocalKey = d.Watchlist.LocalKey
	}
	if s.Watchlist.RetryAttempts <= 0 {
		s.Watchlist.RetryAttempts = d.Watchlist.RetryAttempts
	}
	if s.Watchlist.RetryAttempts > MaxRetryAttempts {
		s.Watchlist.RetryAttempts = MaxRetryAttempts
	}
	if s.Watchlist.RetryBaseDelayMs <= 0 {
		s.Watchlist.RetryBaseDelayMs = d.Watchlist.RetryBaseDelayMs
	}
	if s.Watchlist.LogThrottleSeconds <= 0 {
		s.Watchlist.LogThrottleSeconds = d.Watchlist.LogThrottleSeconds
	}

	if strings.TrimSpace(s.Links.FallbackSearchURL) == "" {
		s.Links.FallbackSearchURL = d.Links.FallbackSearchURL
	}

	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = d.Metadata.Language
	}
	if strings.TrimSpace(s.Metadata.Region) == "" {
		s.Metadata.Region = d.Metadata.Region
	}

	if s.Sessions.TTLHours <= 0 {
		s.Sessions.TTLHours = d.Sessions.TTLHours
	}

	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = d.Log.File
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = d.Log.Level
	}
	if s.Log.MaxSize <= 0 {
		s.Log.MaxSize = d.Log.MaxSize
	}
	if s.Log.MaxBackups <= 0 {
		s.Log.MaxBackups = d.Log.MaxBackups
	}
	if s.Log.MaxAge <= 0 {
		s.Log.MaxAge = d.Log.MaxAge
	}
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
