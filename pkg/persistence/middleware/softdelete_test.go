package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newSoftDelete(t *testing.T) (*middleware.SoftDeleteStore, *MockStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	under := NewMockStore()
	store := middleware.NewSoftDeleteStore(under,
		middleware.WithRestoreWindow(24*time.Hour),
		middleware.WithClock(clock.now),
	)
	return store, under, clock
}

func TestSoftDelete_HidesDeletedForms(t *testing.T) {
	ctx := context.Background()
	store, under, _ := newSoftDelete(t)

	require.NoError(t, store.Save(ctx, newForm("f1", "org")))
	require.NoError(t, store.Save(ctx, newForm("f2", "org")))
	require.NoError(t, store.Delete(ctx, "f1"))

	_, err := store.Load(ctx, "f1")
	assert.ErrorIs(t, err, domain.ErrFormNotFound)

	raw, err := under.Load(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, raw.Deleted())

	live, err := store.List(ctx, "org")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "f2", live[0].ID)

	deleted, err := store.ListDeleted(ctx, "org")
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "f1", deleted[0].ID)
}

func TestSoftDelete_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, under, clock := newSoftDelete(t)

	require.NoError(t, store.Delete(ctx, "missing"))
	require.NoError(t, store.Save(ctx, newForm("f1", "org")))
	require.NoError(t, store.Delete(ctx, "f1"))
	first := *under.data["f1"].DeletedAt

	clock.t = clock.t.Add(time.Hour)
	require.NoError(t, store.Delete(ctx, "f1"))
	assert.True(t, under.data["f1"].DeletedAt.Equal(first))
}

func TestSoftDelete_Restore(t *testing.T) {
	ctx := context.Background()
	store, _, clock := newSoftDelete(t)
	require.NoError(t, store.Save(ctx, newForm("f1", "org")))
	require.NoError(t, store.Delete(ctx, "f1"))

	clock.t = clock.t.Add(23 * time.Hour)
	form, err := store.Restore(ctx, "f1")
	require.NoError(t, err)
	assert.False(t, form.Deleted())

	loaded, err := store.Load(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", loaded.ID)

	// Restoring a live form is a no-op.
	_, err = store.Restore(ctx, "f1")
	assert.NoError(t, err)

	_, err = store.Restore(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFormNotFound)
}

func TestSoftDelete_RestoreWindowExpired(t *testing.T) {
	ctx := context.Background()
	store, _, clock := newSoftDelete(t)
	require.NoError(t, store.Save(ctx, newForm("f1", "org")))
	require.NoError(t, store.Delete(ctx, "f1"))

	clock.t = clock.t.Add(25 * time.Hour)
	_, err := store.Restore(ctx, "f1")
	assert.ErrorIs(t, err, domain.ErrRestoreWindowExpired)
}

func TestSoftDelete_Purge(t *testing.T) {
	ctx := context.Background()
	store, under, clock := newSoftDelete(t)
	for _, id := range []string{"old", "recent", "live"} {
		require.NoError(t, store.Save(ctx, newForm(id, "org")))
	}
	require.NoError(t, store.Delete(ctx, "old"))
	clock.t = clock.t.Add(20 * time.Hour)
	require.NoError(t, store.Delete(ctx, "recent"))
	clock.t = clock.t.Add(5 * time.Hour)

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotContains(t, under.data, "old")
	assert.Contains(t, under.data, "recent")
	assert.Contains(t, under.data, "live")
}

func TestSoftDelete_WatchForwarding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := middleware.NewSoftDeleteStore(NewMockStore()).Watch(ctx)
	assert.ErrorIs(t, err, domain.ErrWatchUnsupported)

	mem := memory.NewStore()
	events, err := middleware.NewSoftDeleteStore(mem).Watch(ctx)
	require.NoError(t, err)
	require.NoError(t, mem.Save(ctx, newForm("f1", "org")))

	select {
	case e := <-events:
		assert.Equal(t, "f1", e.FormID)
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}
}
