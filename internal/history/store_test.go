package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yetazero/GeminiTelegramBot/internal/tier"
)

func newTestStore(t *testing.T, standardCap, extendedCap int) *Store {
	t.Helper()
	root := t.TempDir()
	store, err := NewStore(nil,
		filepath.Join(root, "chat_histories"),
		filepath.Join(root, "full_chat_histories"),
		standardCap, extendedCap,
	)
	require.NoError(t, err)
	return store
}

func exchange(i int) []Turn {
	return []Turn{
		{Role: RoleUser, Parts: []string{fmt.Sprintf("question %d", i)}},
		{Role: RoleModel, Parts: []string{fmt.Sprintf("answer %d", i)}},
	}
}

func TestAppendLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 20, 200)
	var written []Turn
	for i := 0; i < 4; i++ {
		written = append(written, exchange(i)...)
	}
	_, err := store.Append(42, TierStandard, written...)
	require.NoError(t, err)

	loaded := store.Load(42, TierStandard)
	require.Equal(t, written, loaded)
}

func TestAppend_TrimsOldestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 4, 200)
	for i := 0; i < 5; i++ {
		_, err := store.Append(1, TierStandard, exchange(i)...)
		require.NoError(t, err)
	}

	loaded := store.Load(1, TierStandard)
	require.Len(t, loaded, 4)
	require.Equal(t, []string{"question 3"}, loaded[0].Parts)
	require.Equal(t, []string{"answer 4"}, loaded[3].Parts)
}

func TestAppend_ZeroTurnsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 4, 200)
	for i := 0; i < 5; i++ {
		_, err := store.Append(1, TierStandard, exchange(i)...)
		require.NoError(t, err)
	}
	before := store.Load(1, TierStandard)

	_, err := store.Append(1, TierStandard)
	require.NoError(t, err)
	require.Equal(t, before, store.Load(1, TierStandard))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 20, 200)
	require.Empty(t, store.Load(7, TierStandard))
	require.Empty(t, store.Load(7, TierExtended))
}

func TestLoad_CorruptFileIsEmptyAndNonFatal(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 20, 200)
	_, err := store.Append(5, TierStandard, exchange(0)...)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.path(5, TierStandard), []byte("{not json"), 0o644))
	require.Empty(t, store.Load(5, TierStandard))

	// The store recovers: the next append starts a new log.
	saved, err := store.Append(5, TierStandard, exchange(1)...)
	require.NoError(t, err)
	require.Len(t, saved, 2)
}

func TestReset_DeletesBothTiers(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 20, 200)
	_, err := store.Append(9, TierStandard, exchange(0)...)
	require.NoError(t, err)
	_, err = store.Append(9, TierExtended, exchange(1)...)
	require.NoError(t, err)

	require.NoError(t, store.Reset(9))
	_, statErr := os.Stat(store.path(9, TierStandard))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(store.path(9, TierExtended))
	require.True(t, os.IsNotExist(statErr))

	// Resetting an already-clean user is fine.
	require.NoError(t, store.Reset(9))
}

func TestTiersAreIndependentFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, 4, 200)
	_, err := store.Append(3, TierStandard, exchange(0)...)
	require.NoError(t, err)
	_, err = store.Append(3, TierExtended, exchange(1)...)
	require.NoError(t, err)

	require.Equal(t, []string{"question 0"}, store.Load(3, TierStandard)[0].Parts)
	require.Equal(t, []string{"question 1"}, store.Load(3, TierExtended)[0].Parts)
}

// After the admin grants the extended tier, subsequent writes for that user
// use the extended cap instead of the standard one.
func TestExtendedTierUsesExtendedCap(t *testing.T) {
	t.Parallel()

	const admin = int64(1000)
	store := newTestStore(t, 4, 200)
	registry := tier.Load(nil, filepath.Join(t.TempDir(), "full_history_users.json"), admin)

	require.NoError(t, registry.SetExtended(admin, 42, true))

	selected := TierStandard
	if registry.IsExtended(42) {
		selected = TierExtended
	}
	require.Equal(t, TierExtended, selected)

	for i := 0; i < 10; i++ {
		_, err := store.Append(42, selected, exchange(i)...)
		require.NoError(t, err)
	}
	// 20 turns stored: over the standard cap of 4, under the extended 200.
	require.Len(t, store.Load(42, selected), 20)
}
