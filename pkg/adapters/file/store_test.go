package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunFormStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	forms, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, forms)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store := file.New(t.TempDir())
	err := store.Save(context.Background(), &domain.Form{ID: "../escape"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Load(context.Background(), "a/b")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	require.NoError(t, store.Save(context.Background(), &domain.Form{ID: "f1", OrganizationID: "org"}))
	require.NoError(t, store.Save(context.Background(), &domain.Form{ID: "f1", OrganizationID: "org"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f1.json", entries[0].Name())
}

func TestFileStore_Watch(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Watch(ctx)
	require.NoError(t, err)

	// An edit made by another process.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ext.json"), []byte(`{"id":"ext"}`), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.FormID == "ext" {
				assert.Equal(t, "save", e.Op)
				return
			}
		case <-deadline:
			t.Fatal("no change event for ext")
		}
	}
}
