package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		Timeout:    2 * time.Second,
		BackoffMin: time.Millisecond,
		BackoffMax: 5 * time.Millisecond,
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClientWithOptions(server.URL, nil, fastOptions())
	body, err := client.Get(context.Background(), "/swap", map[string]string{"src": "0x1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad amount"))
	}))
	defer server.Close()

	client := NewClientWithOptions(server.URL, nil, fastOptions())
	_, err := client.Get(context.Background(), "/swap", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad amount", string(apiErr.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_SignerAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("amount"))
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewClientWithOptions(server.URL, BearerSigner{Token: "secret"}, fastOptions())
	_, err := client.Get(context.Background(), "/swap", map[string]string{"amount": "100"})
	require.NoError(t, err)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.MaxRetries = -1
	client := NewClientWithOptions(server.URL, nil, opts)
	require.NoError(t, client.Check())

	for i := 0; i < 10; i++ {
		_, _ = client.Get(context.Background(), "/", nil)
	}

	before := atomic.LoadInt32(&attempts)
	_, err := client.Get(context.Background(), "/", nil)
	assert.Error(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&attempts))
	assert.Error(t, client.Check())
}
