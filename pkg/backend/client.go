package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/raterudder/energydash/pkg/common"
	"github.com/raterudder/energydash/pkg/log"
	"github.com/raterudder/energydash/pkg/types"
)

// maxBodyBytes caps how much of a response body is read. The largest payload
// is a month of daily stats which is a few KB.
const maxBodyBytes = 1 << 20

// Client implements the Source interface against the energy monitoring
// backend's HTTP API. Per-request deadlines come from the caller's context;
// the http.Client timeout is only an upper bound.
type Client struct {
	client   *http.Client
	baseURL  string
	deviceID string
}

var _ Source = (*Client)(nil)

func newClient() *Client {
	return &Client{
		client: common.HTTPClient(30 * time.Second),
	}
}

// NewClient returns a Client for the given backend base URL and device ID.
func NewClient(baseURL, deviceID string) *Client {
	c := newClient()
	c.baseURL = baseURL
	c.deviceID = deviceID
	return c
}

func (c *Client) newGetRequest(ctx context.Context, elem ...string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, elem...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doRequest(req *http.Request, dest interface{}) error {
	ctx := req.Context()
	endpoint := req.URL.Path

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"backend response",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProtocolError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "unexpected status",
		}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Ctx(ctx).DebugContext(ctx, "failed to decode backend response", slog.Any("error", err), slog.String("body", string(body)))
		return &ProtocolError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "malformed json",
			Err:        err,
		}
	}
	return nil
}

func missingField(endpoint string, status int, field string) error {
	return &ProtocolError{
		Endpoint:   endpoint,
		StatusCode: status,
		Message:    fmt.Sprintf("missing %s", field),
	}
}

type realtimeResult struct {
	Power   *float64 `json:"power"`
	Current *float64 `json:"current"`
	Voltage *float64 `json:"voltage"`
}

// Realtime returns the current power, current and voltage reading.
func (c *Client) Realtime(ctx context.Context) (types.RealtimeSample, error) {
	req, err := c.newGetRequest(ctx, "energy-usage", c.deviceID, "realtime")
	if err != nil {
		return types.RealtimeSample{}, err
	}

	var res *realtimeResult
	if err := c.doRequest(req, &res); err != nil {
		return types.RealtimeSample{}, fmt.Errorf("realtime failed: %w", err)
	}
	switch {
	case res == nil:
		return types.RealtimeSample{}, fmt.Errorf("realtime failed: %w", missingField(req.URL.Path, http.StatusOK, "body"))
	case res.Power == nil:
		return types.RealtimeSample{}, fmt.Errorf("realtime failed: %w", missingField(req.URL.Path, http.StatusOK, "power"))
	case res.Current == nil:
		return types.RealtimeSample{}, fmt.Errorf("realtime failed: %w", missingField(req.URL.Path, http.StatusOK, "current"))
	case res.Voltage == nil:
		return types.RealtimeSample{}, fmt.Errorf("realtime failed: %w", missingField(req.URL.Path, http.StatusOK, "voltage"))
	}
	return types.RealtimeSample{
		Power:   *res.Power,
		Current: *res.Current,
		Voltage: *res.Voltage,
	}, nil
}

type powerStateResult struct {
	IsOn   *bool    `json:"isOn"`
	Uptime *float64 `json:"uptime"`
}

// PowerState returns whether the monitored load is on and how long it has been up.
func (c *Client) PowerState(ctx context.Context) (types.PowerState, error) {
	req, err := c.newGetRequest(ctx, "power-state", c.deviceID)
	if err != nil {
		return types.PowerState{}, err
	}

	var res *powerStateResult
	if err := c.doRequest(req, &res); err != nil {
		return types.PowerState{}, fmt.Errorf("power state failed: %w", err)
	}
	switch {
	case res == nil:
		return types.PowerState{}, fmt.Errorf("power state failed: %w", missingField(req.URL.Path, http.StatusOK, "body"))
	case res.IsOn == nil:
		return types.PowerState{}, fmt.Errorf("power state failed: %w", missingField(req.URL.Path, http.StatusOK, "isOn"))
	}

	ps := types.PowerState{IsOn: *res.IsOn}
	if res.Uptime != nil {
		ps.UptimeSeconds = *res.Uptime
	}
	return ps, nil
}

type usageResult struct {
	Year   *int     `json:"year"`
	Month  *int     `json:"month"`
	Day    *int     `json:"day"`
	Energy *float64 `json:"energy"`
}

// DayStats returns the daily energy usage series.
func (c *Client) DayStats(ctx context.Context) ([]types.UsageEntry, error) {
	req, err := c.newGetRequest(ctx, "energy-usage", c.deviceID, "day-stats")
	if err != nil {
		return nil, err
	}
	entries, err := c.getUsage(req, true)
	if err != nil {
		return nil, fmt.Errorf("day stats failed: %w", err)
	}
	return entries, nil
}

// MonthStats returns the monthly energy usage series.
func (c *Client) MonthStats(ctx context.Context) ([]types.UsageEntry, error) {
	req, err := c.newGetRequest(ctx, "energy-usage", c.deviceID, "month-stats")
	if err != nil {
		return nil, err
	}
	entries, err := c.getUsage(req, false)
	if err != nil {
		return nil, fmt.Errorf("month stats failed: %w", err)
	}
	return entries, nil
}

func (c *Client) getUsage(req *http.Request, needDay bool) ([]types.UsageEntry, error) {
	var res *[]usageResult
	if err := c.doRequest(req, &res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, missingField(req.URL.Path, http.StatusOK, "body")
	}

	entries := make([]types.UsageEntry, 0, len(*res))
	for i, r := range *res {
		var errs []error
		if r.Year == nil {
			errs = append(errs, missingField(req.URL.Path, http.StatusOK, fmt.Sprintf("year in entry %d", i)))
		}
		if r.Month == nil {
			errs = append(errs, missingField(req.URL.Path, http.StatusOK, fmt.Sprintf("month in entry %d", i)))
		} else if *r.Month < 1 || *r.Month > 12 {
			errs = append(errs, &ProtocolError{
				Endpoint:   req.URL.Path,
				StatusCode: http.StatusOK,
				Message:    fmt.Sprintf("month %d out of range in entry %d", *r.Month, i),
			})
		}
		if r.Energy == nil {
			errs = append(errs, missingField(req.URL.Path, http.StatusOK, fmt.Sprintf("energy in entry %d", i)))
		}
		if needDay {
			if r.Day == nil {
				errs = append(errs, missingField(req.URL.Path, http.StatusOK, fmt.Sprintf("day in entry %d", i)))
			} else if r.Year != nil && r.Month != nil && *r.Month >= 1 && *r.Month <= 12 {
				// day 0 of the next month is the last day of this one
				last := time.Date(*r.Year, time.Month(*r.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
				if *r.Day < 1 || *r.Day > last {
					errs = append(errs, &ProtocolError{
						Endpoint:   req.URL.Path,
						StatusCode: http.StatusOK,
						Message:    fmt.Sprintf("day %d out of range for %d-%02d in entry %d", *r.Day, *r.Year, *r.Month, i),
					})
				}
			}
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}

		e := types.UsageEntry{
			Year:   *r.Year,
			Month:  *r.Month,
			Energy: *r.Energy,
		}
		if r.Day != nil {
			e.Day = *r.Day
		}
		entries = append(entries, e)
	}
	return entries, nil
}
