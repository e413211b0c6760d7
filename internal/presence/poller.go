// Package presence polls the pairing server for the number of users online.
// The value is only shown while no socket is open.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/omochice/chatanon/internal/metrics"
)

const onlinePath = "/api/users/online"

// Option configures a Poller.
type Option func(*Poller)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// WithMetrics counts poll outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = mt }
}

// WithOnUpdate registers fn, called from the polling goroutine with each fetched count.
func WithOnUpdate(fn func(count int)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// Poller fetches the online counter on an interval. It is safe for concurrent use.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger
	metrics  *metrics.Metrics
	onUpdate func(int)

	count  atomic.Int64
	paused atomic.Bool
}

// NewPoller creates a Poller against the API rooted at baseURL.
func NewPoller(baseURL string, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		url:      strings.TrimRight(baseURL, "/") + onlinePath,
		interval: interval,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Count returns the last fetched value, 0 before the first success.
func (p *Poller) Count() int {
	return int(p.count.Load())
}

// SetPaused stops or resumes fetching on tick.
func (p *Poller) SetPaused(paused bool) {
	if p.paused.Swap(paused) != paused {
		p.log.Debug("Online count polling", "paused", paused)
	}
}

// Paused reports whether polling is paused.
func (p *Poller) Paused() bool {
	return p.paused.Load()
}

// Fetch performs one request and stores the result.
func (p *Poller) Fetch(ctx context.Context) (int, error) {
	count, err := p.fetch(ctx)
	p.metrics.OnlinePoll(err == nil)
	if err != nil {
		return 0, err
	}
	p.count.Store(int64(count))
	if p.onUpdate != nil {
		p.onUpdate(count)
	}
	return count, nil
}

func (p *Poller) fetch(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch online count: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch online count: status %d", resp.StatusCode)
	}
	var body struct {
		Count *int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode online count: %w", err)
	}
	if body.Count == nil || *body.Count < 0 {
		return 0, fmt.Errorf("failed to decode online count: missing or negative count")
	}
	return *body.Count, nil
}

// Run fetches immediately and then on every tick until ctx is done.
// Failures are logged and the previous count is kept.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if p.paused.Load() {
		return
	}
	if _, err := p.Fetch(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("Online count unavailable", "error", err)
	}
}
