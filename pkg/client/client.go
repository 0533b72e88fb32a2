// Package client provides a Go SDK for a running brofiler monitor. Agents and
// applications can import this package instead of scraping the CLI output.
//
// Usage:
//
//	c := client.New("http://127.0.0.1:9470")
//	status, err := c.Status(ctx)
//	diag, err := c.Diagnostic(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saveenergy/brofiler/pkg/diagnostic"
	"github.com/saveenergy/brofiler/pkg/types"
)

var ErrUnauthorized = errors.New("unauthorized: check the API key")

// APIError is a non-2xx response from the monitor.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("monitor returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("monitor returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a single brofiler monitor.
type Client struct {
	serverURL  string
	httpClient *http.Client
	apiKey     string
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the API key sent with registry writes.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ServerURL() string {
	return c.serverURL
}

// DiagnosticResult mirrors GET /api/v1/diagnostic.
type DiagnosticResult struct {
	Summary *struct {
		Snapshots          int                    `json:"snapshots"`
		RollingSuccessRate float64                `json:"rolling_success_rate"`
		RollingLossRate    float64                `json:"rolling_loss_rate"`
		Inconsistent       int                    `json:"inconsistent"`
		Latest             types.DeviceStatSample `json:"latest"`
	} `json:"summary,omitempty"`
	Throughput     types.ThroughputMetrics    `json:"throughput"`
	Interpretation *diagnostic.Interpretation `json:"interpretation"`
}

// DeviceEntry is a registered cluster node.
type DeviceEntry struct {
	Device    types.DeviceDescriptor `json:"device"`
	CreatedAt time.Time              `json:"created_at"`
}

// Healthy returns nil if the monitor is reachable and healthy.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("monitor unreachable: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("monitor unreachable: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monitor unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/api/v1/version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

func (c *Client) Status(ctx context.Context) (*types.StatusResponse, error) {
	var out types.StatusResponse
	if err := c.getJSON(ctx, "/api/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns up to limit most recent device snapshots. A limit of zero
// uses the monitor's default.
func (c *Client) History(ctx context.Context, limit int) (*types.HistoryResponse, error) {
	var out types.HistoryResponse
	if err := c.getJSON(ctx, withLimit("/api/v1/history", limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Links(ctx context.Context, limit int) (*types.LinksResponse, error) {
	var out types.LinksResponse
	if err := c.getJSON(ctx, withLimit("/api/v1/links", limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Diagnostic(ctx context.Context) (*DiagnosticResult, error) {
	var out DiagnosticResult
	if err := c.getJSON(ctx, "/api/v1/diagnostic", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Devices(ctx context.Context) ([]DeviceEntry, error) {
	var out struct {
		Devices []DeviceEntry `json:"devices"`
	}
	if err := c.getJSON(ctx, "/api/v1/devices", &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

func (c *Client) Device(ctx context.Context, name string) (*DeviceEntry, error) {
	var out DeviceEntry
	if err := c.getJSON(ctx, "/api/v1/devices/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterDevice adds a node to the monitor's registry and node.cfg.
func (c *Client) RegisterDevice(ctx context.Context, d types.DeviceDescriptor) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, "/api/v1/devices", body)
}

func (c *Client) DeregisterDevice(ctx context.Context, name string) error {
	return c.send(ctx, http.MethodDelete, "/api/v1/devices/"+url.PathEscape(name), nil)
}

// AddScript appends a script load directive on the monitor host.
func (c *Client) AddScript(ctx context.Context, script string) error {
	body, err := json.Marshal(map[string]string{"script": script})
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, "/api/v1/scripts", body)
}

// --- Internal helpers ---

func withLimit(path string, limit int) string {
	if limit <= 0 {
		return path
	}
	return path + "?limit=" + strconv.Itoa(limit)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("monitor unreachable: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("monitor unreachable: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &payload)
	return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
}
