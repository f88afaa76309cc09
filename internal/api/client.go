// Package api is the REST client of the alarm backend.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
)

// HeaderSocketID tags a mutation with the realtime session that issued it so
// the server does not echo the change back to that socket.
const HeaderSocketID = "X-Socket-ID"

// TokenSource provides bearer tokens. Refresh obtains a new access token,
// coalescing concurrent callers.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient replaces the underlying transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the alarm backend.
type Client struct {
	http *resty.Client

	mu       sync.RWMutex
	tokens   TokenSource
	socketID func() string
}

// New creates a client for opts.BaseURL, e.g. "http://localhost:3000/api".
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = config.Global.HTTP.Timeout
	}
	var r *resty.Client
	if opts.HTTPClient != nil {
		r = resty.NewWithClient(opts.HTTPClient)
	} else {
		r = resty.New()
	}
	r.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	r.SetTimeout(timeout)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", "timely/1.0")

	c := &Client{http: r}
	r.OnBeforeRequest(c.decorate)
	return c
}

// SetTokenSource installs the bearer token provider.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

// SetSocketID installs the provider of the current realtime session id.
func (c *Client) SetSocketID(fn func() string) {
	c.mu.Lock()
	c.socketID = fn
	c.mu.Unlock()
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) tokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

func isAuthPath(path string) bool {
	return strings.Contains(path, "/auth/")
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// decorate adds the bearer token to non-auth requests and the socket id to
// alarm mutations.
func (c *Client) decorate(_ *resty.Client, req *resty.Request) error {
	if isAuthPath(req.URL) {
		return nil
	}
	c.mu.RLock()
	tokens, socketID := c.tokens, c.socketID
	c.mu.RUnlock()

	if tokens != nil {
		if tok := tokens.AccessToken(); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	if socketID != nil && isMutation(req.Method) && strings.Contains(req.URL, "/alarms") {
		if id := socketID(); id != "" {
			req.SetHeader(HeaderSocketID, id)
		}
	}
	return nil
}

// do performs one request. A 401 on a non-auth path triggers one refresh
// and one retry with the new token.
func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	start := time.Now()
	resp, err := c.send(ctx, method, path, body)
	if err == nil && resp.StatusCode() == http.StatusUnauthorized && !isAuthPath(path) {
		if ts := c.tokenSource(); ts != nil {
			logging.DebugContext(ctx, "access token rejected, refreshing", logging.KeyOperation, op)
			if _, rerr := ts.Refresh(ctx); rerr != nil {
				return nil, timelyerrors.Wrapf(timelyerrors.ErrSessionExpired, "%s: %v", op, rerr)
			}
			resp, err = c.send(ctx, method, path, body)
		}
	}
	if err != nil {
		logging.WarnContext(ctx, "request failed", logging.KeyOperation, op, logging.KeyError, err)
		return nil, timelyerrors.NewTransportError(op, err)
	}

	logging.DebugContext(ctx, "request complete",
		logging.KeyOperation, op,
		logging.KeyStatus, resp.StatusCode(),
		logging.KeyDuration, time.Since(start).Milliseconds(),
	)
	if resp.IsError() {
		return nil, timelyerrors.NewStatusError(op, resp.StatusCode(), http.StatusText(resp.StatusCode()), errorDetail(resp.Body()))
	}
	return resp.Body(), nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return req.Execute(method, path)
}

// errorDetail extracts the server's message from an error body.
func errorDetail(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
