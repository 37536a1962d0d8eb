package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/profile"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "orbit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sq,
	}
}

func TestBackends(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "k", []byte("one")))
			require.NoError(t, b.Put(ctx, "k", []byte("two")))
			got, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "two", string(got), "last write wins")

			require.NoError(t, b.Delete(ctx, "k"))
			_, err = b.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, b.Delete(ctx, "k"), "deleting a missing key is fine")

			require.NoError(t, b.Put(ctx, "session:a", []byte("a")))
			require.NoError(t, b.Put(ctx, "session:b", []byte("b")))
			require.NoError(t, b.Put(ctx, "profiles", []byte("{}")))
			keys, err := b.Keys(ctx, "session:")
			require.NoError(t, err)
			assert.Equal(t, []string{"session:a", "session:b"}, keys)

			assert.NoError(t, b.Ping(ctx))
		})
	}
}

func TestStorePruneSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), logger.Nop())
	for _, id := range []string{"default", "work", "gone"} {
		require.NoError(t, s.SaveSnapshot(ctx, id, &domain.Snapshot{}))
	}

	n, err := s.PruneSnapshots(ctx, []string{"default", "work"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.LoadSnapshot(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadSnapshot(ctx, "work")
	assert.NoError(t, err)
}

func TestStoreSnapshotsArePerProfile(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, logger.Nop())

			_, err := s.LoadSnapshot(ctx, "work")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SaveSnapshot(ctx, "work", sampleSnapshot()))
			empty := domain.EmptySnapshot()
			empty.CustomBackdrop = "plain"
			require.NoError(t, s.SaveSnapshot(ctx, domain.DefaultProfileID, empty))

			work, err := s.LoadSnapshot(ctx, "work")
			require.NoError(t, err)
			assert.Equal(t, "t1", work.ActiveTabID)

			def, err := s.LoadSnapshot(ctx, domain.DefaultProfileID)
			require.NoError(t, err)
			assert.Empty(t, def.Tabs)
			assert.Equal(t, "plain", def.CustomBackdrop)

			require.NoError(t, s.DeleteSnapshot(ctx, "work"))
			_, err = s.LoadSnapshot(ctx, "work")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreIncognitoReload(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), logger.Nop())

	snap := sampleSnapshot()
	snap.IsIncognito = true
	require.NoError(t, s.SaveSnapshot(ctx, "p", snap))

	got, err := s.LoadSnapshot(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, got.Tabs)
	assert.Empty(t, got.ArchivedTabs)
	assert.Empty(t, got.GlobalHistory)
}

func TestStoreMalformedSnapshotFallsBack(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Put(ctx, SessionKey("p"), []byte("not json")))

	got, err := NewStore(b, logger.Nop()).LoadSnapshot(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySnapshot(), got)
}

func TestStoreRegistry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := NewStore(b, logger.Nop())

	_, err := s.LoadRegistry(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	reg := profile.New()
	p := reg.CreateProfile("Work")
	require.NoError(t, reg.SetActive(p.ID))
	require.NoError(t, s.SaveRegistry(ctx, reg.Export()))

	st, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, st.ActiveProfileID)
	assert.Len(t, st.Profiles, 2)

	require.NoError(t, b.Put(ctx, registryKey, []byte("{")))
	_, err = s.LoadRegistry(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}
