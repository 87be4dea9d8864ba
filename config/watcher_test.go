package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfigFile(t *testing.T, path, appName string) {
	t.Helper()
	content := "app:\n  name: " + appName + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewWatcher_LoadsInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cella.yaml")
	writeConfigFile(t, path, "initial")

	watcher, err := NewWatcher(path, NewLoader(), discardLogger())
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Equal(t, "initial", watcher.GetConfig().App.Name)
}

func TestNewWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), NewLoader(), discardLogger())
	assert.Error(t, err)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cella.yaml")
	writeConfigFile(t, path, "before")

	watcher, err := NewWatcher(path, NewLoader(), discardLogger())
	require.NoError(t, err)
	defer watcher.Stop()

	changed := make(chan *Config, 1)
	watcher.OnChange(func(oldConfig, newConfig *Config) {
		changed <- newConfig
	})
	require.NoError(t, watcher.Start())

	writeConfigFile(t, path, "after")

	select {
	case newConfig := <-changed:
		assert.Equal(t, "after", newConfig.App.Name)
		assert.Equal(t, "after", watcher.GetConfig().App.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatcher_KeepsPreviousConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cella.yaml")
	writeConfigFile(t, path, "valid")

	watcher, err := NewWatcher(path, NewLoader(), discardLogger())
	require.NoError(t, err)
	defer watcher.Stop()
	require.NoError(t, watcher.Start())

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: bogus\n"), 0o644))

	// The failed reload is debounced and logged; the old config survives.
	time.Sleep(3 * debounceDelay)
	assert.Equal(t, "valid", watcher.GetConfig().App.Name)
}

func TestWatcher_StopIsIdempotentSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cella.yaml")
	writeConfigFile(t, path, "app")

	watcher, err := NewWatcher(path, NewLoader(), discardLogger())
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	require.NoError(t, watcher.Stop())
}
