package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileMediaStore_SaveImage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, "/media/", zap.NewNop())
	require.NoError(t, err)

	url, err := store.SaveImage("page-123", []byte("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "/media/page-123.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "page-123.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestFileMediaStore_SaveAudio(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, "https://cdn.example.com/media", zap.NewNop())
	require.NoError(t, err)

	url, err := store.SaveAudio("page-123", []byte("mp3-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/page-123.mp3", url)
}

func TestFileMediaStore_EmptyData(t *testing.T) {
	store, err := NewFileMediaStore(t.TempDir(), "/media", zap.NewNop())
	require.NoError(t, err)

	_, err = store.SaveImage("page-123", nil)

	assert.ErrorIs(t, err, ErrMediaSaveFailed)
}

func TestFileMediaStore_StripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileMediaStore(dir, "/media", zap.NewNop())
	require.NoError(t, err)

	url, err := store.SaveImage("../../etc/passwd", []byte("data"))

	require.NoError(t, err)
	assert.Equal(t, "/media/passwd.png", url)
	_, statErr := os.Stat(filepath.Join(dir, "passwd.png"))
	assert.NoError(t, statErr)
}

func TestNewFileMediaStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")

	_, err := NewFileMediaStore(dir, "/media", zap.NewNop())

	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
