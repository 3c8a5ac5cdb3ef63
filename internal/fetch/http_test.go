package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom-value", r.Header.Get("X-Custom"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>ok</h1></body></html>"))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(HTTPPolicy{DefaultTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer f.Close()

	res, err := f.Fetch(context.Background(), Request{
		TargetURL: srv.URL,
		Headers:   map[string]string{"X-Custom": "custom-value"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Contains(t, string(res.HTML), "ok")

	completed, failed, bytes := f.Stats()
	assert.Equal(t, int64(1), completed)
	assert.Equal(t, int64(0), failed)
	assert.Greater(t, bytes, int64(0))
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f, err := NewHTTPFetcher(HTTPPolicy{DefaultTimeout: time.Second})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Fetch(context.Background(), Request{TargetURL: "://bad"})
	assert.Error(t, err)
}

func TestNewHTTPFetcher_RejectsZeroTimeout(t *testing.T) {
	_, err := NewHTTPFetcher(HTTPPolicy{})
	assert.Error(t, err)
}
