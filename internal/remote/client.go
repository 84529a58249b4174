package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"weekplan/internal/model"
)

// Client talks to the authority over HTTP. Concurrent identical reads share
// one request.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	sf      singleflight.Group
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Beacon(ctx context.Context) (Beacon, error) {
	var resp BeaconResponse
	if err := c.get(ctx, "/api/v1/beacon", &resp); err != nil {
		return Beacon{}, err
	}
	return resp.Beacon, nil
}

func (c *Client) ListVersions(ctx context.Context) (Versions, error) {
	var resp VersionsResponse
	if err := c.get(ctx, "/api/v1/versions", &resp); err != nil {
		return Versions{}, err
	}
	if resp.Overrides == nil {
		resp.Overrides = map[string]Version{}
	}
	return resp.Versions, nil
}

func (c *Client) ReadSchedule(ctx context.Context) (model.Schedule, error) {
	var resp ScheduleResponse
	if err := c.get(ctx, "/api/v1/schedule", &resp); err != nil {
		return model.Schedule{}, err
	}
	return resp.ScheduleFrom(), nil
}

func (c *Client) ReadOverride(ctx context.Context, dateKey string) (model.DayOverride, error) {
	var resp OverrideResponse
	if err := c.get(ctx, "/api/v1/overrides/"+url.PathEscape(dateKey), &resp); err != nil {
		return model.DayOverride{}, err
	}
	return resp.OverrideFrom(), nil
}

func (c *Client) WriteSchedule(ctx context.Context, s model.Schedule) (WriteResult, error) {
	req := WriteScheduleRequest{Schedule: s.Clone().Week, ClientMeta: s.Meta}
	var resp WriteResponse
	if err := c.send(ctx, http.MethodPut, "/api/v1/schedule", req, &resp); err != nil {
		return WriteResult{}, err
	}
	return resp.WriteResult, nil
}

func (c *Client) WriteOverride(ctx context.Context, d model.DayOverride) (WriteResult, error) {
	req := WriteOverrideRequest{
		Override:   OverrideBody{DateKey: d.DateKey, Tasks: d.Clone().Tasks},
		ClientMeta: d.Meta,
	}
	var resp WriteResponse
	if err := c.send(ctx, http.MethodPut, "/api/v1/overrides/"+url.PathEscape(d.DateKey), req, &resp); err != nil {
		return WriteResult{}, err
	}
	return resp.WriteResult, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	v, err, _ := c.sf.Do(path, func() (any, error) {
		return c.roundTrip(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return err
	}
	return decode(path, v.([]byte), out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	raw, err := c.roundTrip(ctx, method, path, data)
	if err != nil {
		return err
	}
	return decode(path, raw, out)
}

// roundTrip returns the body of a successful response. Transport failures and
// gateway errors wrap ErrUnreachable; an {ok:false} body becomes *Error.
func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, ErrUnreachable, err)
	}

	var status Status
	if jerr := json.Unmarshal(raw, &status); jerr == nil && status.Error != "" {
		return nil, &Error{Code: status.Error}
	}
	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%s %s: %w: status %d", method, path, ErrUnreachable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, &Error{Code: CodeInternal}
	}
	return raw, nil
}

func decode(path string, raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
