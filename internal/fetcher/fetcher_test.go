package fetcher

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleeps returns a Sleep hook that records requested delays without waiting.
func recordSleeps() (func(context.Context, time.Duration) error, func() []time.Duration) {
	var mu sync.Mutex
	var delays []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	get := func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Duration(nil), delays...)
	}
	return sleep, get
}

func TestFetchJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"total_tweets": 12}`))
	}))
	defer server.Close()

	f := New(Options{Timeout: time.Second, MaxRetries: 2})
	body, err := f.FetchJSON(context.Background(), server.URL+"/get_weighted_sentiment_all")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_tweets": 12}`, string(body))
}

func TestFetchJSON_TimeoutEveryAttempt(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	sleep, delays := recordSleeps()
	f := New(Options{Timeout: 20 * time.Millisecond, MaxRetries: 2, Sleep: sleep})

	_, err := f.FetchJSON(context.Background(), server.URL+"/get_sentiment_by_day")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays())
}

func TestFetchJSON_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	sleep, delays := recordSleeps()
	f := New(Options{Timeout: time.Second, MaxRetries: 2, Sleep: sleep})

	_, err := f.FetchJSON(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Len(t, delays(), 2)
}

func TestFetchJSON_DelaysDoubleWithManyRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sleep, delays := recordSleeps()
	f := New(Options{Timeout: time.Second, MaxRetries: 40, RetryDelayBase: time.Second, Sleep: sleep})

	_, err := f.FetchJSON(context.Background(), server.URL)
	require.Error(t, err)

	got := delays()
	require.Len(t, got, 40)
	for i := 0; i <= 33; i++ {
		assert.Equal(t, time.Second<<uint(i), got[i], "attempt %d", i)
	}
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "attempt %d", i)
	}
}

func TestMaxDelay(t *testing.T) {
	assert.Equal(t, time.Second, maxDelay(time.Second, 0))
	assert.Equal(t, 16*time.Second, maxDelay(time.Second, 4))
	assert.Equal(t, time.Duration(math.MaxInt64), maxDelay(time.Second, 40))
}

func TestFetchJSON_Non2xxIsStatusError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"not modified", http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			sleep, _ := recordSleeps()
			f := New(Options{Timeout: time.Second, MaxRetries: 1, Sleep: sleep})

			_, err := f.FetchJSON(context.Background(), server.URL)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, int32(2), attempts.Load())
		})
	}
}

func TestFetchJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	sleep, _ := recordSleeps()
	f := New(Options{Timeout: time.Second, Sleep: sleep})

	_, err := f.FetchJSON(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestFetchJSON_ParentCancelled(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	f := New(Options{Timeout: time.Second, MaxRetries: 5, Sleep: sleep})

	_, err := f.FetchJSON(ctx, server.URL)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestPathLabel(t *testing.T) {
	assert.Equal(t, "/get_sentiment_iterations", pathLabel("http://h:5001/get_sentiment_iterations?timestamp=2025-01-01T00:00:00"))
	assert.Equal(t, "/", pathLabel("http://h:5001"))
}
