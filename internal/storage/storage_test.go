package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/dropcart/internal/config"
)

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"abc.r2.cloudflarestorage.com", StorageTypeR2},
		{"https://s3.eu-west-1.amazonaws.com", StorageTypeS3},
		{"", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, detectStorageType(tt.endpoint))
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/"))
	assert.Equal(t, "host", normalizeEndpoint("https://host/bucket/path"))
	assert.Equal(t, "host:1", normalizeEndpoint("host:1"))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	ok, err := m.Exists(ctx, "exports/a.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Upload(ctx, "exports/a.jsonl", strings.NewReader("{}\n"), 3, "application/x-ndjson"))
	ok, _ = m.Exists(ctx, "exports/a.jsonl")
	assert.True(t, ok)
	assert.Equal(t, "application/x-ndjson", m.ContentType("exports/a.jsonl"))
	assert.Equal(t, "memory://exports/a.jsonl", m.GetURL("exports/a.jsonl"))

	rc, err := m.Download(ctx, "exports/a.jsonl")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "{}\n", string(body))

	require.NoError(t, m.Delete(ctx, "exports/a.jsonl"))
	_, err = m.Download(ctx, "exports/a.jsonl")
	assert.Error(t, err)
}

// fakeS3 answers path-style HEAD and GET requests for a single bucket.
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/exports-bucket/")
		body, ok := objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Storage_ExistsAndDownload(t *testing.T) {
	srv := fakeS3(t, map[string]string{"exports/catalog-finder/j1.jsonl": "{\"supplier_id\":\"p1\"}\n"})
	ctx := context.Background()

	s, err := NewStorage(ctx, config.StorageConfig{
		Endpoint:       srv.URL,
		AccessKey:      "test",
		SecretKey:      "test",
		Bucket:         "exports-bucket",
		Region:         "us-east-1",
		ForcePathStyle: true,
	})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "exports/catalog-finder/j1.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "exports/catalog-finder/missing.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)

	rc, err := s.Download(ctx, "exports/catalog-finder/j1.jsonl")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{\"supplier_id\":\"p1\"}\n", string(body))

	assert.Equal(t, srv.URL+"/exports-bucket/exports/catalog-finder/j1.jsonl", s.GetURL("exports/catalog-finder/j1.jsonl"))
}
