package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// RemoteError is a failure reported by the daemon's control API. It unwraps
// to the sentinel matching its kind.
type RemoteError struct {
	Kind       timelyerrors.Kind
	Message    string
	Suggestion string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ErrorKind reports the kind the daemon classified the failure as.
func (e *RemoteError) ErrorKind() timelyerrors.Kind {
	return e.Kind
}

func (e *RemoteError) Unwrap() error {
	switch e.Kind {
	case timelyerrors.KindNotFound:
		return timelyerrors.ErrAlarmNotFound
	case timelyerrors.KindUnauthorized:
		return timelyerrors.ErrNotAuthenticated
	case timelyerrors.KindTransport:
		return timelyerrors.ErrTransport
	}
	return nil
}

// Client drives a running daemon over its control API. Its methods mirror
// the alarm operations of reconcile.Service.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the daemon listening on addr.
func NewClient(addr string) *Client {
	r := resty.New().
		SetBaseURL("http://" + addr + controlPrefix).
		SetTimeout(config.Global.HTTP.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: r}
}

// List returns the daemon's alarms, loading them first if needed.
func (c *Client) List(ctx context.Context) ([]model.Alarm, error) {
	var out []model.Alarm
	return out, c.do(ctx, http.MethodGet, "/alarms", nil, &out)
}

// Get returns one alarm.
func (c *Client) Get(ctx context.Context, id int64) (model.Alarm, error) {
	var out model.Alarm
	return out, c.do(ctx, http.MethodGet, fmt.Sprintf("/alarms/%d", id), nil, &out)
}

// Create creates an alarm.
func (c *Client) Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error) {
	var out model.Alarm
	return out, c.do(ctx, http.MethodPost, "/alarms", in, &out)
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error) {
	var out model.Alarm
	return out, c.do(ctx, http.MethodPatch, fmt.Sprintf("/alarms/%d", id), patch, &out)
}

// Delete deletes an alarm.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/alarms/%d", id), nil, nil)
}

// Toggle sets an alarm's active flag.
func (c *Client) Toggle(ctx context.Context, id int64, active bool) (model.Alarm, error) {
	var out model.Alarm
	return out, c.do(ctx, http.MethodPost, fmt.Sprintf("/alarms/%d/toggle", id), toggleBody{Active: active}, &out)
}

// Sync pushes the daemon's alarms to the server and adopts the result.
func (c *Client) Sync(ctx context.Context) ([]model.Alarm, error) {
	var out []model.Alarm
	return out, c.do(ctx, http.MethodPost, "/alarms/sync", nil, &out)
}

// Whoami reports the daemon's login state.
func (c *Client) Whoami(ctx context.Context) (WhoamiBody, error) {
	var out WhoamiBody
	return out, c.do(ctx, http.MethodGet, "/session", nil, &out)
}

// Login signs the daemon in.
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (model.User, error) {
	var out model.User
	return out, c.do(ctx, http.MethodPost, "/session", CredentialsBody{Username: usernameOrEmail, Password: password}, &out)
}

// Register creates an account and signs the daemon in.
func (c *Client) Register(ctx context.Context, username, email, password string) (model.User, error) {
	var out model.User
	return out, c.do(ctx, http.MethodPost, "/session/register", CredentialsBody{Username: username, Email: email, Password: password}, &out)
}

// Logout signs the daemon out. Its native alarms are cancelled.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/session", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return timelyerrors.NewSystemErrorWithOp("daemon "+path, "daemon unreachable", err)
	}
	if resp.IsError() {
		var eb errorBody
		if jerr := json.Unmarshal(resp.Body(), &eb); jerr != nil || eb.Error == "" {
			return &RemoteError{Kind: timelyerrors.KindUnknown, Message: fmt.Sprintf("daemon returned HTTP %d", resp.StatusCode())}
		}
		if eb.Kind == timelyerrors.KindInvalid {
			return timelyerrors.NewUserError(eb.Error, eb.Suggestion)
		}
		return &RemoteError{Kind: eb.Kind, Message: eb.Error, Suggestion: eb.Suggestion}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return timelyerrors.Wrap(timelyerrors.ErrInvalidResponse, err.Error())
	}
	return nil
}
