package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"twowatch/config"
	"twowatch/internal/docstore"
	"twowatch/internal/kvstore"
	"twowatch/services/accounts"
	"twowatch/services/providers"
	"twowatch/services/watchlist"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	settings   config.Settings
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	if path := os.Getenv("TWOWATCH_CONFIG"); path != "" {
		return path
	}
	return filepath.Join("cache", "settings.json")
}

func (c *commandContext) ensureSettings() (config.Settings, error) {
	c.configOnce.Do(func() {
		c.settings, c.configErr = config.NewManager(c.configPath()).Load()
	})
	return c.settings, c.configErr
}

func (c *commandContext) resolver() (*providers.Resolver, error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	return providers.NewResolver(nil, nil, providers.WithFallbackSearchURL(settings.Links.FallbackSearchURL)), nil
}

func (c *commandContext) accounts() (*accounts.Service, error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	return accounts.NewService(settings.Storage.DataDir)
}

// withStore opens the configured backends and runs fn against a store acting as user on device.
// An empty user is a guest.
func (c *commandContext) withStore(ctx context.Context, user, device string, fn func(*watchlist.Store) error) error {
	settings, err := c.ensureSettings()
	if err != nil {
		return err
	}

	if user = strings.TrimSpace(user); user != "" {
		accountsSvc, err := c.accounts()
		if err != nil {
			return err
		}
		if !accountsSvc.Exists(user) {
			return fmt.Errorf("%w: %s", accounts.ErrAccountNotFound, user)
		}
	}

	if driver := strings.ToLower(settings.Storage.Driver); driver == "" || driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(settings.Storage.DSN), 0755); err != nil {
			return err
		}
	}
	remote, err := docstore.Open(ctx, settings.Storage.Driver, settings.Storage.DSN)
	if err != nil {
		return err
	}
	defer remote.Close()

	localRoot, err := kvstore.NewOS(filepath.Join(settings.Storage.DataDir, "local"))
	if err != nil {
		return err
	}

	store, err := watchlist.NewStore(
		watchlist.StaticIdentity(user),
		localRoot.Device(device),
		remote,
		watchlist.WithLocalKey(settings.Watchlist.LocalKey),
		watchlist.WithRetryPolicy(watchlist.RetryPolicy{
			MaxAttempts: uint(settings.Watchlist.RetryAttempts),
			Backoff:     watchlist.ExponentialBackoff(settings.Watchlist.RetryBaseDelay()),
		}),
	)
	if err != nil {
		return err
	}
	return fn(store)
}
