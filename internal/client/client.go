// Package client wires the event loop, transport, session and presence poller
// into the controller the terminal UI drives.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/omochice/chatanon/internal/identity"
	"github.com/omochice/chatanon/internal/loop"
	"github.com/omochice/chatanon/internal/metrics"
	"github.com/omochice/chatanon/internal/presence"
	"github.com/omochice/chatanon/internal/session"
	"github.com/omochice/chatanon/internal/transport"
	"github.com/omochice/chatanon/internal/transport/ws"
)

const (
	loopBuffer     = 256
	updatesBuffer  = 64
	shutdownBudget = 2 * time.Second

	defaultPollInterval = 30 * time.Second
)

// Config holds the endpoints and timings of a Controller.
type Config struct {
	WSURL        string
	APIURL       string
	Policy       transport.Policy
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PollInterval time.Duration
	Locale       identity.Locale
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	log        *slog.Logger
	metrics    *metrics.Metrics
	dialer     transport.Dialer
	scheduler  transport.Scheduler
	httpClient *http.Client
}

// WithLogger sets the logger shared by every component.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics instruments every component.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(o *options) { o.metrics = mt }
}

// WithDialer replaces the gobwas dialer.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithScheduler replaces the wall-clock reconnect scheduler.
func WithScheduler(s transport.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithHTTPClient sets the client used for online count polling.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// Status is what /status shows.
type Status struct {
	session.Snapshot
	Attempt     int
	MaxAttempts int
	// OnlineCount is the session's count while open, the polled one otherwise.
	OnlineCount int
}

// Controller is the thread-safe facade over the session. Every call is
// marshalled onto the event loop and waits for it to run.
type Controller struct {
	cfg     Config
	log     *slog.Logger
	loop    *loop.Loop
	manager *transport.Manager
	machine *session.Machine
	poller  *presence.Poller
	updates chan session.Snapshot
}

// New wires a Controller. Nothing happens until Run is called.
func New(cfg Config, store session.IdentityStore, opts ...Option) *Controller {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.dialer == nil {
		o.dialer = ws.NewDialer(cfg.WriteTimeout)
	}
	if cfg.Policy == (transport.Policy{}) {
		cfg.Policy = transport.DefaultPolicy()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	c := &Controller{
		cfg:     cfg,
		log:     o.log,
		loop:    loop.New(loopBuffer),
		updates: make(chan session.Snapshot, updatesBuffer),
	}

	managerOpts := []transport.Option{
		transport.WithPolicy(cfg.Policy),
		transport.WithLogger(o.log.With("component", "transport")),
		transport.WithMetrics(o.metrics),
	}
	if cfg.DialTimeout > 0 {
		managerOpts = append(managerOpts, transport.WithDialTimeout(cfg.DialTimeout))
	}
	if o.scheduler != nil {
		managerOpts = append(managerOpts, transport.WithScheduler(o.scheduler))
	}
	c.manager = transport.NewManager(cfg.WSURL, o.dialer, c.loop, managerOpts...)

	c.machine = session.NewMachine(c.manager, store,
		session.WithLocale(cfg.Locale),
		session.WithLogger(o.log.With("component", "session")),
		session.WithMetrics(o.metrics),
	)
	c.manager.SetListener(c.machine)

	pollerOpts := []presence.Option{
		presence.WithLogger(o.log.With("component", "presence")),
		presence.WithMetrics(o.metrics),
	}
	if o.httpClient != nil {
		pollerOpts = append(pollerOpts, presence.WithHTTPClient(o.httpClient))
	}
	c.poller = presence.NewPoller(cfg.APIURL, cfg.PollInterval, pollerOpts...)

	c.machine.Subscribe(func(s session.Snapshot) {
		c.poller.SetPaused(s.Connection == transport.StateOpen)
		c.publish(s)
	})
	return c
}

// Run drives the controller until ctx is cancelled, then closes any open
// socket with the manual close code and closes Updates.
func (c *Controller) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	errc := make(chan error, 1)
	go func() { errc <- c.loop.Run(loopCtx) }()
	go c.poller.Run(ctx)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancel()
	if err := c.loop.Do(shutdownCtx, c.manager.Disconnect); err != nil {
		c.log.Warn("Disconnect on shutdown failed", "error", err)
	}
	stopLoop()
	<-errc
	close(c.updates)
	return nil
}

// Updates delivers a snapshot after every change. When the reader falls
// behind the oldest snapshots are dropped.
func (c *Controller) Updates() <-chan session.Snapshot {
	return c.updates
}

// StartSession clears the transcript, shows the onboarding notices and connects.
func (c *Controller) StartSession(ctx context.Context) error {
	var err error
	if doErr := c.loop.Do(ctx, func() { err = c.machine.StartSession() }); doErr != nil {
		return fmt.Errorf("failed to start session: %w", doErr)
	}
	return err
}

// SendChat sends text to the partner.
func (c *Controller) SendChat(ctx context.Context, text string) error {
	var err error
	if doErr := c.loop.Do(ctx, func() { err = c.machine.SendChat(text) }); doErr != nil {
		return fmt.Errorf("failed to send chat: %w", doErr)
	}
	return err
}

// Leave ends the session and clears the transcript.
func (c *Controller) Leave(ctx context.Context) error {
	if err := c.loop.Do(ctx, c.machine.Leave); err != nil {
		return fmt.Errorf("failed to leave: %w", err)
	}
	return nil
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.loop.Do(ctx, func() { snap = c.machine.Snapshot() }); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, nil
}

// Status returns the snapshot together with reconnect progress and the
// online count the UI should display.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.loop.Do(ctx, func() {
		st = Status{
			Snapshot:    c.machine.Snapshot(),
			Attempt:     c.manager.Attempt(),
			MaxAttempts: c.cfg.Policy.MaxAttempts,
		}
	})
	if err != nil {
		return Status{}, fmt.Errorf("failed to read status: %w", err)
	}
	st.OnlineCount = OnlineCount(st.Snapshot, c.poller.Count())
	return st, nil
}

// OnlineCount picks the count to display: the session's while the socket is
// open, the polled one otherwise.
func OnlineCount(s session.Snapshot, polled int) int {
	if s.Connection == transport.StateOpen {
		return s.OnlineCount
	}
	return polled
}

// publish runs on the loop, the only sender on updates.
func (c *Controller) publish(s session.Snapshot) {
	for {
		select {
		case c.updates <- s:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}
