package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesMissingDir", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "archive", "nested")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		require.NoError(t, store.Ping(context.Background()))
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		t.Parallel()
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)
	base, err := filepath.Abs(tempDir)
	require.NoError(t, err)

	t.Run("WritesNestedObject", func(t *testing.T) {
		path := "news/ab/cd.json"
		data := []byte(`{"title":"t"}`)
		uri, err := store.PutObject(context.Background(), path, "application/json", data)
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(base, path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(base, path))
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("OverwritesExisting", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "x.json", "", []byte("one"))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "x.json", "", []byte("two"))
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(base, "x.json"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(readData))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../outside.json", "", []byte("data"))
		assert.ErrorContains(t, err, "escapes")
	})
}
