package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/v1/items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Echo-Query", r.URL.RawQuery)
		w.Header().Set("X-Echo-Auth", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}).Methods(http.MethodGet)
	r.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}).Methods(http.MethodPost)
	r.HandleFunc("/v1/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(`{"ok":true}`))
		_ = zw.Close()
	})
	r.HandleFunc("/v1/zstd", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		zw, _ := zstd.NewWriter(w)
		_, _ = zw.Write([]byte(`{"ok":true}`))
		_ = zw.Close()
	})
	r.HandleFunc("/v1/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	r.HandleFunc("/v1/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	r.HandleFunc("/v1/big", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestDoGet(t *testing.T) {
	srv := newServer(t)
	p := NewPool(Config{})
	defer p.Close()

	resp, err := p.Do(context.Background(), srv.URL+"/v1/", &Request{
		Path:   "/items?page=2",
		Query:  url.Values{"limit": {"10"}},
		Header: http.Header{"Authorization": {"Bearer t"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `[{"id":1}]`, string(resp.Body))
	assert.Equal(t, "limit=10&page=2", resp.Header.Get("X-Echo-Query"))
	assert.Equal(t, "Bearer t", resp.Header.Get("X-Echo-Auth"))
}

func TestDoPostBody(t *testing.T) {
	srv := newServer(t)
	p := NewPool(Config{})
	defer p.Close()

	resp, err := p.Do(context.Background(), srv.URL+"/v1", &Request{
		Method: http.MethodPost,
		Path:   "search",
		Body:   []byte(`{"q":"x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"x"}`, string(resp.Body))
}

func TestDoContentEncoding(t *testing.T) {
	srv := newServer(t)
	p := NewPool(Config{})
	defer p.Close()

	for _, path := range []string{"/gzip", "/zstd"} {
		resp, err := p.Do(context.Background(), srv.URL+"/v1", &Request{Path: path})
		require.NoError(t, err, path)
		assert.Equal(t, `{"ok":true}`, string(resp.Body), path)
	}
}

func TestDoStatusError(t *testing.T) {
	srv := newServer(t)
	p := NewPool(Config{})
	defer p.Close()

	_, err := p.Do(context.Background(), srv.URL+"/v1", &Request{Path: "/fail"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, se.Error(), "upstream exploded")
}

func TestDoResponseTimeout(t *testing.T) {
	srv := newServer(t)
	p := NewPool(Config{ResponseTimeout: 50 * time.Millisecond})
	defer p.Close()

	_, err := p.Do(context.Background(), srv.URL+"/v1", &Request{Path: "/slow"})
	require.Error(t, err)
}

func TestDoBodyLimit(t *testing.T) {
	srv := newServer(t)
	p := NewPool(Config{MaxBodyBytes: 1024})
	defer p.Close()

	_, err := p.Do(context.Background(), srv.URL+"/v1", &Request{Path: "/big"})
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestJoin(t *testing.T) {
	u, err := Join("https://api.example.com/v2/", "/users", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2/users", u)

	u, err = Join("https://api.example.com", "", url.Values{"a": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com?a=1", u)

	_, err = Join("not a url", "/x", nil)
	require.Error(t, err)
}
