package kvstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingKey(t *testing.T) {
	store, err := New(afero.NewMemMapFs(), "kv")
	require.NoError(t, err)

	value, ok, err := store.Get(context.Background(), "2watch_watchlist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestSetThenGet(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store, err := New(fsys, "kv")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "2watch_watchlist", `[{"id":1}]`))
	require.NoError(t, store.Set(ctx, "2watch_watchlist", `[]`))

	value, ok, err := store.Get(ctx, "2watch_watchlist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, value)

	leftovers, err := afero.Glob(fsys, "kv/*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestConcurrentSetsNeverTearReads(t *testing.T) {
	dir := t.TempDir()
	root, err := NewOS(dir)
	require.NoError(t, err)
	store := root.Device("phone")
	ctx := context.Background()

	long := `[` + strings.Repeat(`{"id":1,"mediaType":"movie","title":"Heat"},`, 200) + `{"id":2}]`
	short := `[]`
	require.NoError(t, store.Set(ctx, "2watch_watchlist", long))

	for round := 0; round < 200; round++ {
		var wg sync.WaitGroup
		errs := make(chan error, 3)
		wg.Add(3)
		go func() {
			defer wg.Done()
			errs <- store.Set(ctx, "2watch_watchlist", long)
		}()
		go func() {
			defer wg.Done()
			errs <- store.Set(ctx, "2watch_watchlist", short)
		}()
		go func() {
			defer wg.Done()
			value, ok, err := store.Get(ctx, "2watch_watchlist")
			if err == nil && (!ok || (value != long && value != short)) {
				err = fmt.Errorf("round %d: read %d bytes matching neither write", round, len(value))
			}
			errs <- err
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, "devices", "phone", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDevicesAreIsolated(t *testing.T) {
	store, err := New(afero.NewMemMapFs(), "kv")
	require.NoError(t, err)
	ctx := context.Background()

	phone := store.Device("phone-1")
	tablet := store.Device("tablet/../../escape")

	require.NoError(t, phone.Set(ctx, "k", "phone"))
	require.NoError(t, tablet.Set(ctx, "k", "tablet"))

	got, _, err := phone.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "phone", got)

	got, _, err = tablet.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "tablet", got)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyKeyRejected(t *testing.T) {
	store, err := New(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrKeyRequired)
	assert.ErrorIs(t, store.Set(context.Background(), "", "x"), ErrKeyRequired)
}

func TestCanceledContext(t *testing.T) {
	store, err := New(afero.NewMemMapFs(), "kv")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", "v"), context.Canceled)
}
