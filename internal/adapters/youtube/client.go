// Package youtube locates playable videos through YouTube search.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppalone/ytsearch"
	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/adapters/breaker"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

const (
	watchURLPrefix     = "https://www.youtube.com/watch?v="
	defaultHTTPTimeout = 10 * time.Second
)

// Hit is one raw search result.
type Hit struct {
	VideoID string
	Title   string
}

// SearchFunc runs a raw search.
type SearchFunc func(ctx context.Context, query string) ([]Hit, error)

// Config captures the YouTube search settings.
type Config struct {
	TimeoutSeconds int
}

// Client implements ports.VideoSearch.
type Client struct {
	search  SearchFunc
	breaker *breaker.Breaker[[]Hit]
	log     *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithSearchFunc replaces the ytsearch backend.
func WithSearchFunc(fn SearchFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.search = fn
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
		c.breaker = breaker.New[[]Hit]("youtube", opts)
	}
}

// NewClient builds a YouTube search client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		search: ytsearchFunc(&http.Client{Timeout: timeout}),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = breaker.New[[]Hit]("youtube", breaker.Options{Logger: c.log})
	}
	return c
}

// SearchVideos returns up to limit results in the service's ranking order.
func (c *Client) SearchVideos(ctx context.Context, query string, limit int) ([]mp.VideoResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	hits, err := c.breaker.Execute(func() ([]Hit, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}
	c.log.Debug("youtube search", zap.String("query", query), zap.Int("hits", len(hits)))

	out := make([]mp.VideoResult, 0, len(hits))
	for _, hit := range hits {
		if limit > 0 && len(out) >= limit {
			break
		}
		id := strings.TrimSpace(hit.VideoID)
		if id == "" {
			continue
		}
		out = append(out, mp.VideoResult{URI: watchURLPrefix + id, Title: hit.Title})
	}
	return out, nil
}

func ytsearchFunc(httpClient *http.Client) SearchFunc {
	client := ytsearch.NewClient(httpClient)
	return func(ctx context.Context, query string) ([]Hit, error) {
		res, err := client.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(res.Results))
		for _, v := range res.Results {
			hits = append(hits, Hit{VideoID: v.VideoID, Title: v.Title})
		}
		return hits, nil
	}
}
