package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler, prefix string) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "news-archive", Prefix: prefix})
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"title":"t"}`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/news-archive/o")
		assert.Equal(t, "raw/news/abc.json", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))
		fmt.Fprintln(w, `{"name":"raw/news/abc.json","bucket":"news-archive"}`)
	})

	store := newTestStore(t, handler, "/raw/")
	uri, err := store.PutObject(context.Background(), "news/abc.json", "application/json", payload)
	require.NoError(t, err)
	assert.Equal(t, "gs://news-archive/raw/news/abc.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, handler, "")
	_, err := store.PutObject(context.Background(), "news/abc.json", "application/json", []byte("x"))
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	store := &BlobStore{bucket: "b"}
	assert.Equal(t, "news/a.json", store.objectName("/news/a.json"))
	assert.Empty(t, store.objectName("  "))
	store.prefix = "raw"
	assert.Equal(t, "raw/news/a.json", store.objectName("news/a.json"))
}
