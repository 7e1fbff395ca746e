// Package fetcher retrieves JSON documents over HTTP with a per-attempt
// timeout and exponential backoff between attempts.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"

	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/metrics"
)

const maxBodyBytes = 32 << 20

// ErrMalformedJSON is returned when a 2xx response body is not valid JSON.
var ErrMalformedJSON = errors.New("response body is not valid JSON")

// StatusError represents a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d from %s", e.StatusCode, e.URL)
}

// Options configures a Fetcher. Zero values take the defaults below.
type Options struct {
	Timeout        time.Duration // per attempt, default 10s
	MaxRetries     int           // extra attempts after the first, default 0
	RetryDelayBase time.Duration // delay before the first retry, default 1s
	HTTPClient     *http.Client
	Metrics        *metrics.Metrics

	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Fetcher performs GET requests that expect a JSON body.
type Fetcher struct {
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
	delayBase  time.Duration
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		httpClient: opts.HTTPClient,
		metrics:    opts.Metrics,
		sleep:      opts.Sleep,
		delayBase:  opts.RetryDelayBase,
	}
	if f.timeout <= 0 {
		f.timeout = 10 * time.Second
	}
	if f.maxRetries < 0 {
		f.maxRetries = 0
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{}
	}
	if f.sleep == nil {
		f.sleep = sleepContext
	}
	if f.delayBase <= 0 {
		f.delayBase = time.Second
	}
	return f
}

// maxDelay returns base*2^retries, saturating instead of overflowing.
func maxDelay(base time.Duration, retries int) time.Duration {
	d := base
	for i := 0; i < retries; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// FetchJSON issues up to MaxRetries+1 GET attempts against rawURL and returns
// the first 2xx body. Each attempt is bounded by the configured timeout and
// attempt n waits base*2^n before retrying. Cancelling ctx aborts at once.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	b := &backoff.Backoff{
		Min:    f.delayBase,
		Max:    maxDelay(f.delayBase, f.maxRetries),
		Factor: 2,
		Jitter: false,
	}
	label := pathLabel(rawURL)

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := f.attempt(ctx, rawURL)
		f.metrics.ObserveAttempt(label, err)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		logger.Warn("Attempt %d failed for %s: %v", attempt+1, rawURL, err)

		if attempt == f.maxRetries {
			break
		}
		if err := f.sleep(ctx, b.ForAttempt(float64(attempt))); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", rawURL, f.maxRetries+1, lastErr)
}

// attempt performs one bounded request.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: body}
	}
	if !json.Valid(body) {
		return nil, ErrMalformedJSON
	}

	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pathLabel keeps metric cardinality bounded by dropping host and query.
func pathLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
