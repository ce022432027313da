package tier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const adminID = int64(99)

func TestSetExtended_RejectsNonAdmin(t *testing.T) {
	t.Parallel()

	registry := Load(nil, filepath.Join(t.TempDir(), "users.json"), adminID)
	err := registry.SetExtended(7, 42, true)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, registry.IsExtended(42))
}

func TestSetExtended_ImmediatelyObservable(t *testing.T) {
	t.Parallel()

	registry := Load(nil, filepath.Join(t.TempDir(), "users.json"), adminID)
	require.NoError(t, registry.SetExtended(adminID, 42, true))
	require.True(t, registry.IsExtended(42))

	require.NoError(t, registry.SetExtended(adminID, 42, false))
	require.False(t, registry.IsExtended(42))
}

func TestSetExtended_SurvivesRestart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.json")
	registry := Load(nil, path, adminID)
	require.NoError(t, registry.SetExtended(adminID, 42, true))
	require.NoError(t, registry.SetExtended(adminID, 7, true))

	// Simulated restart: reload from durable state.
	reloaded := Load(nil, path, adminID)
	require.True(t, reloaded.IsExtended(42))
	require.True(t, reloaded.IsExtended(7))
	require.False(t, reloaded.IsExtended(8))
}

func TestSetExtended_DisableUnknownUser(t *testing.T) {
	t.Parallel()

	registry := Load(nil, filepath.Join(t.TempDir(), "users.json"), adminID)
	err := registry.SetExtended(adminID, 42, false)
	require.ErrorIs(t, err, ErrNotEnabled)
}

func TestLoad_MissingFileIsEmptySet(t *testing.T) {
	t.Parallel()

	registry := Load(nil, filepath.Join(t.TempDir(), "users.json"), adminID)
	require.False(t, registry.IsExtended(1))
}

func TestLoad_CorruptFileIsEmptySet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("nonsense"), 0o644))
	registry := Load(nil, path, adminID)
	require.False(t, registry.IsExtended(1))

	// Recovery: a successful mutation rewrites the file cleanly.
	require.NoError(t, registry.SetExtended(adminID, 5, true))
	reloaded := Load(nil, path, adminID)
	require.True(t, reloaded.IsExtended(5))
}

func TestPersistedFormatIsSortedIDArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.json")
	registry := Load(nil, path, adminID)
	require.NoError(t, registry.SetExtended(adminID, 300, true))
	require.NoError(t, registry.SetExtended(adminID, 12, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "[12, 300]", string(data))
}
