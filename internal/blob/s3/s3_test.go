package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	c := &Client{prefix: "deployments"}
	assert.Equal(t, "deployments/0xabc/dep-1.json", c.Key("/0xabc/dep-1.json"))

	c = &Client{}
	assert.Equal(t, "a/b.json", c.Key("a/b.json"))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000"))
	assert.Equal(t, "https://r2.example.com", normaliseEndpoint("r2.example.com"))
}

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.Error(t, err)
}

func TestWriterPut_PathStyle(t *testing.T) {
	var (
		mu          sync.Mutex
		method      string
		path        string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "matchbox",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
		Prefix:         "deployments",
	})
	require.NoError(t, err)

	err = NewWriter(c).Put(context.Background(), "0xowner/dep-1.json", strings.NewReader(`{"id":"dep-1"}`), "application/json")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/matchbox/deployments/0xowner/dep-1.json", path)
	assert.Equal(t, "application/json", contentType)
}
