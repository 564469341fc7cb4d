package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/types"
)

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// HTTPClient replaces the underlying transport, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to one ptyhost server.
type Client struct {
	resty *resty.Client
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// CreateRequest starts a shell. Zero values take the server defaults.
type CreateRequest struct {
	ID   string `json:"id,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// Output is one non-blocking read of a shell. Found is false when the tab
// does not exist.
type Output struct {
	Data   string `json:"data"`
	Exited bool   `json:"exited"`
	Found  bool   `json:"found"`
}

// Health is the server's health report.
type Health struct {
	Status        string  `json:"status"`
	Sessions      int     `json:"sessions"`
	SpawnBreaker  string  `json:"spawn_breaker"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type writeRequest struct {
	Data     string `json:"data"`
	Encoding string `json:"encoding,omitempty"`
}

type writeResponse struct {
	Bytes int `json:"bytes"`
}

type resizeRequest struct {
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

type listResponse struct {
	Sessions []pty.Info `json:"sessions"`
	Count    int        `json:"count"`
}

type executeRequest struct {
	ToolID   string                 `json:"tool_id"`
	Params   map[string]interface{} `json:"params,omitempty"`
	ClientID string                 `json:"client_id,omitempty"`
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ptyctl/1.0"
	}

	var r *resty.Client
	if opts.HTTPClient != nil {
		r = resty.NewWithClient(opts.HTTPClient)
	} else {
		r = resty.New()
	}
	r.SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{resty: r}
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.resty.BaseURL
}

// Create starts a shell and returns its description.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*pty.Info, error) {
	var info pty.Info
	if err := c.do(ctx, http.MethodPost, "/shells", req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Write sends input to a shell and returns the number of bytes accepted.
// Input that is not valid UTF-8 is sent base64 encoded.
func (c *Client) Write(ctx context.Context, tabID string, data []byte) (int, error) {
	body := writeRequest{Data: string(data)}
	if !utf8.Valid(data) {
		body = writeRequest{
			Data:     base64.StdEncoding.EncodeToString(data),
			Encoding: "base64",
		}
	}

	var resp writeResponse
	if err := c.do(ctx, http.MethodPost, shellPath(tabID, "write"), body, &resp); err != nil {
		return 0, err
	}
	return resp.Bytes, nil
}

// Read returns buffered output without blocking.
func (c *Client) Read(ctx context.Context, tabID string) (Output, error) {
	var out Output
	err := c.do(ctx, http.MethodGet, shellPath(tabID, "read"), nil, &out)
	return out, err
}

// Resize changes a shell's window size.
func (c *Client) Resize(ctx context.Context, tabID string, rows, cols uint16) error {
	return c.do(ctx, http.MethodPost, shellPath(tabID, "resize"), resizeRequest{Rows: rows, Cols: cols}, nil)
}

// Close terminates a shell. Closing an unknown tab succeeds.
func (c *Client) Close(ctx context.Context, tabID string) error {
	return c.do(ctx, http.MethodDelete, shellPath(tabID, ""), nil, nil)
}

// Get describes one shell.
func (c *Client) Get(ctx context.Context, tabID string) (*pty.Info, error) {
	var info pty.Info
	if err := c.do(ctx, http.MethodGet, shellPath(tabID, ""), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// List describes every live shell.
func (c *Client) List(ctx context.Context) ([]pty.Info, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/shells", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Health fetches the server health report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Execute runs a service tool such as "terminal.list_sessions".
func (c *Client) Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error) {
	var result types.Result
	req := executeRequest{ToolID: toolID, Params: params}
	if err := c.do(ctx, http.MethodPost, "/services/execute", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	apiErr := &APIError{}
	req := c.resty.R().SetContext(ctx).SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}

func shellPath(tabID, action string) string {
	p := "/shells/" + url.PathEscape(tabID)
	if action != "" {
		p += "/" + action
	}
	return p
}
