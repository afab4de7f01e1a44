// Package lastfm canonicalizes track metadata with the Last.fm track.search API.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mikey-austin/moodplay/internal/adapters/breaker"
	"github.com/mikey-austin/moodplay/internal/ports"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

const (
	defaultBaseURL     = "https://ws.audioscrobbler.com/2.0/"
	defaultHTTPTimeout = 10 * time.Second
	// Last.fm asks clients to stay under five requests per second.
	defaultRatePerSecond = 5
)

// Last.fm error codes for rejected credentials.
const (
	errInvalidAPIKey   = 10
	errSuspendedAPIKey = 26
)

// Config captures the Last.fm client settings.
type Config struct {
	APIKey  string
	BaseURL string
	// Limit caps the number of matches requested; zero leaves the service default.
	Limit          int
	TimeoutSeconds int
	RatePerSecond  float64
}

// Client implements ports.MetadataSearch.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker.Breaker[[]mp.Recommendation]
	log        *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithBreaker overrides the breaker options.
func WithBreaker(opts breaker.Options) Option {
	return func(c *Client) {
		if opts.Logger == nil {
			opts.Logger = c.log
		}
		c.breaker = breaker.New[[]mp.Recommendation]("lastfm", opts)
	}
}

// NewClient builds a Last.fm client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = breaker.New[[]mp.Recommendation]("lastfm", breaker.Options{Logger: c.log})
	}
	return c
}

// APIError is an error body returned by Last.fm.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lastfm error %d: %s", e.Code, e.Message)
}

// Unwrap maps credential failures to ports.ErrUnauthorized.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case errInvalidAPIKey, errSuspendedAPIKey:
		return ports.ErrUnauthorized
	default:
		return nil
	}
}

type searchResponse struct {
	Results struct {
		TrackMatches struct {
			Track trackList `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// trackList accepts both the array form and the single-object form Last.fm
// uses when exactly one match exists.
type trackList []track

func (l *trackList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "" || trimmed == "null" || trimmed == `""`:
		*l = nil
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var single track
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = trackList{single}
		return nil
	default:
		var many []track
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
}

// SearchTrack returns matches in the service's ranking order.
func (c *Client) SearchTrack(ctx context.Context, trackName string, artist string) ([]mp.Recommendation, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("lastfm search: api key required")
	}
	return c.breaker.Execute(func() ([]mp.Recommendation, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.search(ctx, trackName, artist)
	})
}

func (c *Client) search(ctx context.Context, trackName string, artist string) ([]mp.Recommendation, error) {
	params := url.Values{}
	params.Set("method", "track.search")
	params.Set("track", trackName)
	if artist != "" {
		params.Set("artist", artist)
	}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("format", "json")
	if c.cfg.Limit > 0 {
		params.Set("limit", strconv.Itoa(c.cfg.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("lastfm search: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lastfm search: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lastfm search: read body: %w", err)
	}
	c.log.Debug("lastfm track.search",
		zap.String("track", trackName),
		zap.String("artist", artist),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if apiErr := decodeAPIError(body); apiErr != nil {
		return nil, apiErr
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("lastfm search: http %d: %w", resp.StatusCode, ports.ErrUnauthorized)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("lastfm search: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("lastfm search: decode response: %w", err)
	}

	out := make([]mp.Recommendation, 0, len(parsed.Results.TrackMatches.Track))
	for _, t := range parsed.Results.TrackMatches.Track {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		out = append(out, mp.Recommendation{Artist: t.Artist, Track: t.Name})
	}
	return out, nil
}

func decodeAPIError(body []byte) *APIError {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil
	}
	if apiErr.Code == 0 {
		return nil
	}
	return &apiErr
}
