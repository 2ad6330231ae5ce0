package registrar

import (
	"context"
	"io"
	"net/http"
	"time"
)

// maxAttempts is the retry budget for a single logical API call.
const maxAttempts = 3

// httpDoer wraps an HTTP client with the shared retry policy: HTTP 429 and
// 5xx responses and network errors are retried with exponential backoff
// (2^attempt seconds); any other non-2xx status fails immediately.
type httpDoer struct {
	client *http.Client

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func newHTTPDoer(timeout time.Duration) *httpDoer {
	return &httpDoer{
		client: &http.Client{Timeout: timeout},
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do executes newReq up to maxAttempts times and returns the response body
// of the first 2xx answer. newReq must build a fresh request per attempt
// because request bodies are consumed.
func (d *httpDoer) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, wrapError(KindNetworkError, err, "build request")
		}
		req = req.WithContext(ctx)

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = wrapError(KindNetworkError, err, "request failed (attempt %d)", attempt)
			if backoffErr := d.backoff(ctx, attempt); backoffErr != nil {
				return nil, lastErr
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return nil, wrapError(KindNetworkError, readErr, "read response body")
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = newError(KindHTTPError, "upstream status %d (attempt %d)", resp.StatusCode, attempt)
			if backoffErr := d.backoff(ctx, attempt); backoffErr != nil {
				return nil, lastErr
			}
			continue
		default:
			return nil, newError(KindHTTPError, "upstream status %d: %s", resp.StatusCode, truncate(body, 200))
		}
	}

	return nil, wrapError(KindMaxRetries, lastErr, "gave up after %d attempts", maxAttempts)
}

// backoff sleeps 2^attempt seconds before the next try. The final attempt
// skips the sleep; do returns MAX_RETRIES right after.
func (d *httpDoer) backoff(ctx context.Context, attempt int) error {
	if attempt >= maxAttempts {
		return nil
	}
	return d.sleep(ctx, time.Duration(1<<uint(attempt))*time.Second)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
