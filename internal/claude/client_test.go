package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/enclaro/backend/internal/retry"
)

func testRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		TransientDelay: time.Millisecond,
		RateLimitDelay: 2 * time.Millisecond,
	}
}

func replyJSON(text string) string {
	return `{"content":[{"type":"text","text":` + mustMarshal(text) + `}]}`
}

func mustMarshal(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestInvoke_Success(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.Equal(t, apiVersion, r.Header.Get("Anthropic-Version"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Write([]byte(replyJSON("Respuesta simulada")))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	result, err := client.Invoke(context.Background(), "sistema", "usuario")
	require.NoError(t, err)
	require.Equal(t, "Respuesta simulada", result)

	require.Equal(t, defaultModel, gotBody["model"])
	require.Equal(t, float64(defaultMaxTokens), gotBody["max_tokens"])
	require.Equal(t, "sistema", gotBody["system"])

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	turn := messages[0].(map[string]any)
	require.Equal(t, "user", turn["role"])
	require.Equal(t, "usuario", turn["content"])
}

func TestInvoke_RateLimitRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
			return
		}
		w.Write([]byte(replyJSON("ok")))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	result, err := client.Invoke(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, int32(3), calls.Load())
}

func TestInvoke_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	_, err := client.Invoke(context.Background(), "s", "u")
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestInvoke_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"authentication_error"}}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "wrong", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	_, err := client.Invoke(context.Background(), "s", "u")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load(), "401 must fail after exactly one upstream call")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestInvoke_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	_, err := client.Invoke(context.Background(), "s", "u")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load(), "non-429 status must fail after exactly one upstream call")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestInvoke_TransportErrorRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the connection mid-response to force a transport error.
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				conn.Close()
			}
			return
		}
		w.Write([]byte(replyJSON("recuperado")))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	result, err := client.Invoke(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "recuperado", result)
	require.Equal(t, int32(2), calls.Load())
}

func TestInvoke_MissingAPIKey(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	_, err := client.Invoke(context.Background(), "s", "u")
	require.ErrorIs(t, err, ErrNoAPIKey)
	require.Equal(t, int32(0), calls.Load(), "no network call without a credential")
}

func TestInvoke_EmptyContentYieldsEmptyString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	result, err := client.Invoke(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "", result)
}

func TestInvoke_FirstTextBlockWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"thinking","text":"x"},{"type":"text","text":"primero"},{"type":"text","text":"segundo"}]}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})
	defer client.Close()

	result, err := client.Invoke(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "primero", result)
}

func TestClose_ThenReuse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(replyJSON("ok")))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "secret", BaseURL: srv.URL, Retry: testRetryConfig()})

	_, err := client.Invoke(context.Background(), "s", "u")
	require.NoError(t, err)

	client.Close()

	// The pool is re-created transparently after a shutdown-style Close.
	result, err := client.Invoke(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "ok", result)

	client.Close()
}
