package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	store, err := New(client, Config{Bucket: "reports", CacheControl: "no-cache"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck // test cleanup
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var body string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/reports/o")
		assert.Equal(t, "p1/report.json", r.URL.Query().Get("name"))
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		body = string(raw)
		fmt.Fprintln(w, `{"bucket":"reports","name":"p1/report.json"}`)
	})
	store := newTestStore(t, handler)

	uri, err := store.PutObject(context.Background(), "/p1/report.json", "application/json", strings.NewReader(`{"percent":40}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://reports/p1/report.json", uri)
	assert.Contains(t, body, `{"percent":40}`)
	assert.Contains(t, body, "application/json")
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := store.PutObject(context.Background(), "p1/report.json", "application/json", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), " ", "application/json", strings.NewReader("{}"))
	assert.Error(t, err)
}
