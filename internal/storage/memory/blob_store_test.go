package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "news/abc.json", "application/json", payload)
	require.NoError(t, err)
	require.Equal(t, "memory://news/abc.json", uri)

	payload[0] = 'C'
	stored, ok := store.Object("news/abc.json")
	require.True(t, ok)
	require.Equal(t, "content", string(stored), "stored copy must not alias the caller's slice")
	require.Equal(t, []string{"news/abc.json"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", []byte("x"))
	require.Error(t, err)

	_, ok := NewBlobStore().Object("missing")
	require.False(t, ok)
}
