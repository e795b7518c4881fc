package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fetcher is a retrying HTTP GET client used for non-browser resource
// downloads. It follows redirects and backs off exponentially between
// attempts.
type Fetcher struct {
	client      *http.Client
	maxRetries  uint64
	baseBackoff time.Duration
}

// NewFetcher creates a Fetcher performing up to maxRetries attempts with
// exponential backoff starting at baseBackoff.
func NewFetcher(timeout time.Duration, maxRetries int, baseBackoff time.Duration) *Fetcher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		maxRetries:  uint64(maxRetries),
		baseBackoff: baseBackoff,
	}
}

// Fetch downloads the resource at url, retrying transient failures. It
// returns the response body bytes, or an error after all attempts failed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.baseBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		data, err := f.fetchOnce(ctx, url)
		if err != nil {
			slog.Warn("Resource fetch attempt failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		body = data
		return nil
	}

	// maxRetries counts total attempts, so allow maxRetries-1 retries.
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, f.maxRetries-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		slog.Error("Resource fetch exhausted all attempts", "url", url, "attempts", attempt, "error", err)
		return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", url, attempt, err)
	}

	slog.Info("Fetched resource", "url", url, "bytes", len(body), "attempts", attempt)
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
