package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/manav03panchal/timely/internal/config"
)

// HTTPClient posts webhook payloads with retry logic.
type HTTPClient struct {
	client     *resty.Client
	maxRetries int
	retryDelay []time.Duration
}

// NewHTTPClient creates a client using the runtime HTTP settings.
func NewHTTPClient() *HTTPClient {
	cfg := config.Global.HTTP
	r := resty.New()
	r.SetTimeout(cfg.Timeout)
	r.SetHeader("User-Agent", "timely/1.0")
	return &HTTPClient{
		client:     r,
		maxRetries: cfg.MaxRetries,
		retryDelay: append([]time.Duration(nil), cfg.RetryDelays...),
	}
}

// SetRetryDelays replaces the delay schedule between attempts.
func (c *HTTPClient) SetRetryDelays(delays ...time.Duration) {
	c.retryDelay = delays
}

// SetMaxRetries sets the number of retries after the first attempt.
func (c *HTTPClient) SetMaxRetries(n int) {
	c.maxRetries = n
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
}

// Retryable reports whether a later attempt could succeed.
func (r *SendResult) Retryable() bool {
	if r.Error == nil {
		return false
	}
	return r.StatusCode == 0 || r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500
}

func (c *HTTPClient) delay(attempt int) time.Duration {
	if len(c.retryDelay) == 0 {
		return 0
	}
	if attempt >= len(c.retryDelay) {
		return c.retryDelay[len(c.retryDelay)-1]
	}
	return c.retryDelay[attempt]
}

// Send POSTs body to url. Network errors, 429 and 5xx are retried; other
// client errors are returned at once.
func (c *HTTPClient) Send(ctx context.Context, url string, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		if attempt > 0 {
			select {
			case <-ctx.Done():
				result.Error = ctx.Err()
				result.Duration = time.Since(start)
				return result
			case <-time.After(c.delay(attempt)):
			}
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", contentType).
			SetBody(body).
			Post(url)
		if err != nil {
			result.StatusCode = 0
			result.Error = fmt.Errorf("request failed: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		result.StatusCode = resp.StatusCode()
		switch {
		case resp.IsSuccess():
			result.Error = nil
			result.Duration = time.Since(start)
			return result
		case resp.StatusCode() == http.StatusTooManyRequests:
			result.Error = fmt.Errorf("rate limited (HTTP 429)")
			continue
		case resp.StatusCode() >= 500:
			result.Error = fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode(), resp.String())
			continue
		}

		result.Error = fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode(), resp.String())
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	if result.Error == nil {
		result.Error = fmt.Errorf("max retries exceeded")
	}
	return result
}
