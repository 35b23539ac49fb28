package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/foodbot/internal/photostore"
)

func newStore(t *testing.T) (*LocalPhotoStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalPhotoStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store, dir
}

func TestLocalPhotoStoreSaveAndGet(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()
	imageData := []byte("fake png data")

	key, err := store.Save(ctx, "food-images/U1", "image/png", bytes.NewReader(imageData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "food-images/U1/"))
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(key)))

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/png", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestLocalPhotoStoreDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	key, err := store.Save(ctx, "p", "image/jpeg", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, photostore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), photostore.ErrNotFound)
}

func TestLocalPhotoStoreNotFound(t *testing.T) {
	store, _ := newStore(t)

	_, _, err := store.Get(context.Background(), "nonexistent.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestLocalPhotoStorePathTraversal(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, _, err := store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, photostore.ErrNotFound))

	assert.Error(t, store.Delete(ctx, "../outside.jpg"))

	_, err = store.Save(ctx, "../../escape", "image/jpeg", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestLocalPhotoStoreWriteError(t *testing.T) {
	store, dir := newStore(t)

	_, err := store.Save(context.Background(), "p", "image/jpeg", &failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "p"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingReader struct{}

func (f *failingReader) Read(_ []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestLocalPhotoStoreLeavesNoTempFiles(t *testing.T) {
	store, dir := newStore(t)

	key, err := store.Save(context.Background(), "u", "image/gif", strings.NewReader("gif"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "u"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(key), entries[0].Name())
	assert.Equal(t, ".gif", filepath.Ext(key))
}
