package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
)

// Client posts answer payloads to scoring endpoints and interprets the
// verdict. Submission URLs are validated against the scheme and an optional
// domain allowlist before any network call.
type Client struct {
	httpClient     *http.Client
	maxRetries     uint64
	baseBackoff    time.Duration
	allowedDomains []string
}

// NewClient creates a submission client. An empty allowedDomains list allows
// any http(s) host.
func NewClient(timeout time.Duration, maxRetries int, baseBackoff time.Duration, allowedDomains []string) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     uint64(maxRetries),
		baseBackoff:    baseBackoff,
		allowedDomains: allowedDomains,
	}
}

// Submit posts the payload as JSON and returns the normalized verdict.
func (c *Client) Submit(ctx context.Context, submitURL string, payload entity.AnswerPayload) (*entity.Verdict, error) {
	if err := c.checkTarget(submitURL); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission payload: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var verdict *entity.Verdict
	attempt := 0
	operation := func() error {
		attempt++
		v, err := c.submitOnce(ctx, submitURL, body)
		if err != nil {
			slog.Warn("Submission attempt failed", "url", submitURL, "attempt", attempt, "error", err)
			return err
		}
		verdict = v
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("submission to %s failed after %d attempts: %w", submitURL, attempt, err)
	}

	slog.Info("Submission verdict received", "url", submitURL, "correct", bool(verdict.Correct), "next_url", verdict.NextURL)
	return verdict, nil
}

func (c *Client) submitOnce(ctx context.Context, submitURL string, body []byte) (*entity.Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scoring endpoint returned status %d", resp.StatusCode)
	}

	// A missing "correct" field decodes to false rather than erroring;
	// textual "true"/"false" is coerced by FlexBool.
	var verdict entity.Verdict
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("scoring endpoint returned malformed verdict: %w", err))
	}
	return &verdict, nil
}

func (c *Client) checkTarget(submitURL string) error {
	parsed, err := url.Parse(submitURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %s", repository.ErrUnsafeSubmitURL, submitURL)
	}
	if len(c.allowedDomains) == 0 {
		return nil
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range c.allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %s is not allow-listed", repository.ErrUnsafeSubmitURL, host)
}
