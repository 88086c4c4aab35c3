// Package device talks to the HVAC unit over its property/action HTTP API.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hvac_gateway/internal/models"
)

// DefaultTimeout bounds every request when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// maxBody caps how much of a reply is read.
const maxBody = 1 << 20

// Options configures a Client.
type Options struct {
	// Host is the device host, with or without scheme.
	Host string
	// Name is the device path segment.
	Name    string
	Timeout time.Duration
	// Bulk selects one GET /all/properties per state read instead of
	// one request per property.
	Bulk bool
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client issues exactly one HTTP request per logical device operation.
type Client struct {
	baseURL string
	bulk    bool
	http    *http.Client
}

// NewClient builds a client for {host}/{name}.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, fmt.Errorf("device host is required")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("device name is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: BaseURL(opts.Host, opts.Name),
		bulk:    opts.Bulk,
		http:    hc,
	}, nil
}

// BaseURL joins host and device name, prepending http:// when the host has
// no scheme.
func BaseURL(host, name string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/" + strings.Trim(name, "/")
}

// BaseURL returns the device root URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, op, method, path, body string) ([]byte, error) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	if body != "" {
		req.Header.Set("Content-Type", "text/plain")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &RemoteError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	return b, nil
}

func (c *Client) readProperty(ctx context.Context, name string, dst any) error {
	op := "read " + name
	b, err := c.do(ctx, op, http.MethodGet, "/properties/"+name, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func (c *Client) readFloat(ctx context.Context, name string) (float64, error) {
	var v float64
	err := c.readProperty(ctx, name, &v)
	return v, err
}

func (c *Client) readBool(ctx context.Context, name string) (bool, error) {
	var v bool
	err := c.readProperty(ctx, name, &v)
	return v, err
}

// writeProperty reports true on any 2xx reply. Failures come back as a
// RemoteError alongside false.
func (c *Client) writeProperty(ctx context.Context, name, value string) (bool, error) {
	if _, err := c.do(ctx, "write "+name, http.MethodPut, "/properties/"+name, value); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) action(ctx context.Context, name string) (bool, error) {
	if _, err := c.do(ctx, "action "+name, http.MethodPost, "/actions/"+name, ""); err != nil {
		return false, err
	}
	return true, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// HeatExchangerTemperature reads temperatureHe{n}.
func (c *Client) HeatExchangerTemperature(ctx context.Context, n int) (float64, error) {
	if err := models.ValidateHeatExchanger(n); err != nil {
		return 0, err
	}
	return c.readFloat(ctx, Indexed(PropTemperatureHe, n))
}

func (c *Client) OutsideTemperature(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, PropTemperatureOutside)
}

func (c *Client) InsideTemperature(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, PropTemperatureInside)
}

func (c *Client) FeedTemperature(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, PropTemperatureFeed)
}

func (c *Client) Hysteresis(ctx context.Context) (float64, error) {
	return c.readFloat(ctx, PropHysteresis)
}

// ModeToken returns the raw mode string as sent by the device.
func (c *Client) ModeToken(ctx context.Context) (string, error) {
	var token string
	err := c.readProperty(ctx, PropMode, &token)
	return token, err
}

func (c *Client) ValveOpened(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.readBool(ctx, Indexed(PropValveOpened, n))
}

func (c *Client) ValveActivated(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.readBool(ctx, Indexed(PropValveActivated, n))
}

func (c *Client) SetFeedTemperature(ctx context.Context, v float64) (bool, error) {
	return c.writeProperty(ctx, PropTemperatureFeed, formatFloat(v))
}

func (c *Client) SetHysteresis(ctx context.Context, v float64) (bool, error) {
	return c.writeProperty(ctx, PropHysteresis, formatFloat(v))
}

func (c *Client) SetMode(ctx context.Context, m models.OperationMode) (bool, error) {
	return c.writeProperty(ctx, PropMode, m.String())
}

func (c *Client) SetValveActivated(ctx context.Context, n int, v bool) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.writeProperty(ctx, Indexed(PropValveActivated, n), strconv.FormatBool(v))
}

func (c *Client) OpenValve(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.action(ctx, Indexed(ActionOpenValve, n))
}

func (c *Client) CloseValve(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.action(ctx, Indexed(ActionCloseValve, n))
}
