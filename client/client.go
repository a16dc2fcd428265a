// Package client is a Go client for the runtime protocol and launch endpoint,
// for integrators driving courseware attempts outside a browser.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ProtocolError is a runtime call answered with a non-zero error code.
type ProtocolError struct {
	Operation string
	Code      string
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: error %s: %s", e.Operation, e.Code, e.Message)
}

// HTTPError is a non-2xx response outside the runtime protocol.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return "http " + strconv.Itoa(e.Status) + ": " + e.Message
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type runtimeData struct {
	Success   bool              `json:"success"`
	ErrorCode string            `json:"errorCode"`
	Value     string            `json:"value"`
	Values    map[string]string `json:"values"`
}

// LaunchResult is the answer of the launch endpoint.
type LaunchResult struct {
	URL            string `json:"url"`
	RegistrationID string `json:"registration_id"`
	Resumed        bool   `json:"resumed"`
}

// Client talks to one service instance.
type Client struct {
	http        *resty.Client
	runtimePath string
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// WithRuntimePath overrides the runtime endpoint prefix (default /runtime).
func WithRuntimePath(p string) Option {
	return func(c *Client) { c.runtimePath = p }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetRetryCount(2).
			SetRetryWaitTime(100 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			}),
		runtimePath: "/runtime",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*envelope, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&env).
		SetError(&env).
		Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &HTTPError{Status: resp.StatusCode(), Message: env.Message}
	}
	return &env, nil
}

func (c *Client) call(ctx context.Context, op string, body map[string]interface{}) (*runtimeData, error) {
	env, err := c.post(ctx, c.runtimePath+"/"+op, body)
	if err != nil {
		return nil, err
	}
	var data runtimeData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	if !data.Success || (data.ErrorCode != "" && data.ErrorCode != "0") {
		return &data, &ProtocolError{Operation: op, Code: data.ErrorCode, Message: env.Message}
	}
	return &data, nil
}

// Launch opens an attempt at a package; needs a token.
func (c *Client) Launch(ctx context.Context, packageID uint) (*LaunchResult, error) {
	env, err := c.post(ctx, fmt.Sprintf("/package/%d/launch", packageID), nil)
	if err != nil {
		return nil, err
	}
	var res LaunchResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return nil, fmt.Errorf("launch: decode response: %w", err)
	}
	return &res, nil
}

// Initialize activates the registration and returns its stored values.
func (c *Client) Initialize(ctx context.Context, rid string) (map[string]string, error) {
	data, err := c.call(ctx, "initialize", map[string]interface{}{"rid": rid})
	if err != nil {
		return nil, err
	}
	if data.Values == nil {
		data.Values = map[string]string{}
	}
	return data.Values, nil
}

// GetValue reads one key; an unwritten key is "".
func (c *Client) GetValue(ctx context.Context, rid, key string) (string, error) {
	data, err := c.call(ctx, "get", map[string]interface{}{"rid": rid, "key": key})
	if err != nil {
		return "", err
	}
	return data.Value, nil
}

// SetValue writes one key.
func (c *Client) SetValue(ctx context.Context, rid, key, value string) error {
	_, err := c.call(ctx, "set", map[string]interface{}{"rid": rid, "key": key, "value": value})
	return err
}

// Commit flushes values as one batch; values may be nil.
func (c *Client) Commit(ctx context.Context, rid string, values map[string]string) error {
	_, err := c.call(ctx, "commit", map[string]interface{}{"rid": rid, "values": values})
	return err
}

// Finish flushes values and closes the registration.
func (c *Client) Finish(ctx context.Context, rid string, values map[string]string) error {
	_, err := c.call(ctx, "finish", map[string]interface{}{"rid": rid, "values": values})
	return err
}
