package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"worldsync/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const DefaultEndpoint = "http://api.openweathermap.org/data/2.5/weather?q=%s&appid=%s"

var (
	ErrUnexpectedStatus = errors.New("weather api returned unexpected status")
	ErrDecode           = errors.New("decode weather response")
	ErrMissingAPIKey    = errors.New("openweather api key is not configured")
)

// StatusError carries the HTTP status of a failed call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("weather api returned status %d", e.Code)
	}
	return fmt.Sprintf("weather api returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

type Config struct {
	// Endpoint is a format string taking the escaped location then the key.
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

// redact drops the api key from the request URL that net/http puts into
// transport errors. The underlying cause stays reachable through Unwrap.
func (c *Client) redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(c.cfg.APIKey), "REDACTED"),
		Err: uerr.Err,
	}
}

type response struct {
	Name    string `json:"name"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Current fetches the current conditions for location. A response without
// any weather entries is returned as a Sample with no conditions.
func (c *Client) Current(ctx context.Context, location string) (world.Sample, error) {
	if c.cfg.APIKey == "" {
		return world.Sample{}, ErrMissingAPIKey
	}
	endpoint := fmt.Sprintf(c.cfg.Endpoint, url.QueryEscape(location), url.QueryEscape(c.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return world.Sample{}, fmt.Errorf("create weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	hlog.Debugf("fetching weather for %s", location)
	resp, err := c.http.Do(req)
	if err != nil {
		return world.Sample{}, fmt.Errorf("fetch weather for %s: %w", location, c.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return world.Sample{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return world.Sample{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	sample := world.Sample{
		Location:   location,
		Conditions: make([]world.Condition, 0, len(payload.Weather)),
		FetchedAt:  c.now(),
	}
	for _, w := range payload.Weather {
		sample.Conditions = append(sample.Conditions, world.Condition{
			ID:          w.ID,
			Main:        w.Main,
			Description: w.Description,
		})
	}
	return sample, nil
}
