package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arrstack/arrstack/internal/core/catalog"
	"github.com/arrstack/arrstack/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// =============================================================================
// Base Config Tests
// =============================================================================

func TestGetBaseConfig_Empty(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetBaseConfig(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveBaseConfig_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cfg := domain.DefaultBaseConfig()
	cfg.Timezone = "Europe/London"
	cfg.VPN.Enabled = true
	cfg.VPN.Username = "user"
	cfg.VPN.Password = "pass"

	err := store.SaveBaseConfig(ctx, cfg)
	require.NoError(t, err)

	retrieved, err := store.GetBaseConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, retrieved)
}

func TestSaveBaseConfig_Overwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cfg := domain.DefaultBaseConfig()
	require.NoError(t, store.SaveBaseConfig(ctx, cfg))

	cfg.MediaDir = "/srv/media"
	require.NoError(t, store.SaveBaseConfig(ctx, cfg))

	retrieved, err := store.GetBaseConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/srv/media", retrieved.MediaDir)
}

// =============================================================================
// Selection Tests
// =============================================================================

func TestGetSelection_Empty(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetSelection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveSelection_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sel := domain.DefaultSelection().Normalize(catalog.Default())
	sel.Toggle("plex", true)
	sel.Toggle("transmission", false)

	require.NoError(t, store.SaveSelection(ctx, sel))

	retrieved, err := store.GetSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, sel, retrieved)
	assert.True(t, retrieved[catalog.CategoryMediaServer]["plex"])
	assert.False(t, retrieved[catalog.CategoryDownloadClient]["transmission"])
}

// =============================================================================
// Install Status Tests
// =============================================================================

func TestGetInstallStatus_Empty(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetInstallStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveInstallStatus_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	st := domain.InstallStatus{
		RunID:         "run-42",
		CurrentStage:  "docker_setup",
		StageName:     "Docker Setup",
		StageProgress: 50,
		Progress:      31,
		State:         domain.InstallInProgress,
		Logs:          []string{"Starting installation process"},
		Errors:        []string{},
		StartedAt:     &started,
	}

	require.NoError(t, store.SaveInstallStatus(ctx, st))

	retrieved, err := store.GetInstallStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, retrieved)
}

func TestSaveInstallStatus_LatestWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	st := domain.InstallStatus{RunID: "run-1", State: domain.InstallInProgress, Progress: 12}
	require.NoError(t, store.SaveInstallStatus(ctx, st))

	st.Progress = 87
	st.State = domain.InstallCompleted
	require.NoError(t, store.SaveInstallStatus(ctx, st))

	retrieved, err := store.GetInstallStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87, retrieved.Progress)
	assert.Equal(t, domain.InstallCompleted, retrieved.State)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveBaseConfig(ctx, domain.DefaultBaseConfig()); err != nil {
			return err
		}
		return tx.SaveSelection(ctx, domain.DefaultSelection())
	})
	require.NoError(t, err)

	_, err = store.GetBaseConfig(ctx)
	assert.NoError(t, err)
	_, err = store.GetSelection(ctx)
	assert.NoError(t, err)
}

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveBaseConfig(ctx, domain.DefaultBaseConfig()); err != nil {
			return err
		}
		return sentinel
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))

	// The write inside the failed transaction must not be visible.
	_, err = store.GetBaseConfig(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWithTx_ReadsOwnWrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		cfg := domain.DefaultBaseConfig()
		cfg.PUID = 1234
		if err := tx.SaveBaseConfig(ctx, cfg); err != nil {
			return err
		}
		got, err := tx.GetBaseConfig(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, 1234, got.PUID)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// Error Tests
// =============================================================================

func TestStoreError_Message(t *testing.T) {
	err := NewStoreError("GetBaseConfig", "base_config", "not found", ErrNotFound)
	assert.Equal(t, "GetBaseConfig base_config: not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}
