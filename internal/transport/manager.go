package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omochice/chatanon/internal/metrics"
)

const defaultDialTimeout = 10 * time.Second

// Executor serializes work onto the goroutine that owns the Manager.
type Executor interface {
	Post(task func()) bool
}

// CloseEvent describes a socket close the Manager did not initiate itself.
type CloseEvent struct {
	Code   int
	Reason string

	// State is where the Manager went: StateReconnecting, StateFailed or StateManuallyClosed.
	State State

	// Attempt is the reconnect attempt that was scheduled, 0 if none.
	Attempt int

	// RetryIn is the delay before that attempt.
	RetryIn time.Duration

	MaxAttempts int
}

// Listener receives lifecycle notifications. Callbacks run on the executor.
type Listener interface {
	OnStateChange(state State)
	OnOpen()
	OnMessage(data []byte)
	OnClose(event CloseEvent)
	OnError(err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithScheduler replaces the wall-clock scheduler used for reconnect timers.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithDialTimeout bounds each dial.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) { m.dialTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics instruments the Manager.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager owns at most one socket at a time and reconnects it after abnormal closes.
//
// Every method, and every Listener callback, runs on the Executor's goroutine.
// Dials, socket reads and reconnect timers happen on other goroutines and only
// ever Post events back. Each socket gets a generation number; events carrying
// an older generation are dropped, so a discarded socket or a cancelled timer
// cannot touch the current one.
type Manager struct {
	url         string
	dialer      Dialer
	exec        Executor
	scheduler   Scheduler
	policy      Policy
	dialTimeout time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
	listener    Listener

	state      State
	attempt    int
	conn       Conn
	generation uint64
	cancelDial context.CancelFunc
	retry      Timer
	retrySeq   uint64
}

// NewManager creates an idle Manager for url.
func NewManager(url string, dialer Dialer, exec Executor, opts ...Option) *Manager {
	m := &Manager{
		url:         url,
		dialer:      dialer,
		exec:        exec,
		scheduler:   realScheduler{},
		policy:      DefaultPolicy(),
		dialTimeout: defaultDialTimeout,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// SetListener registers the component notified of lifecycle events.
func (m *Manager) SetListener(l Listener) {
	m.listener = l
}

// State returns the current state.
func (m *Manager) State() State {
	return m.state
}

// Attempt returns the number of reconnects made since the last successful open.
func (m *Manager) Attempt() int {
	return m.attempt
}

// Connect opens a socket. It is a no-op while a socket is open. A socket that
// exists but is not open is discarded first. From a terminal state the
// reconnect policy is re-armed.
func (m *Manager) Connect() {
	if m.state == StateOpen && m.conn != nil {
		return
	}
	m.cancelRetry()
	m.discard()
	if m.state.Terminal() {
		m.attempt = 0
	}
	m.dial()
}

// Disconnect cancels any pending reconnect, closes the socket with
// ManualCloseCode and moves to StateManuallyClosed. No OnClose is reported.
func (m *Manager) Disconnect() {
	m.cancelRetry()
	if m.conn != nil {
		if err := m.conn.Close(ManualCloseCode, "Manual disconnect"); err != nil {
			m.log.Debug("Close after manual disconnect failed", "error", err)
		}
		m.conn = nil
	}
	m.discard()
	m.setState(StateManuallyClosed)
}

// Send transmits data if the socket is open. Frames are never queued:
// when the socket is not open the frame is dropped and ErrNotOpen returned.
func (m *Manager) Send(data []byte) error {
	if m.state != StateOpen || m.conn == nil {
		m.metrics.SendDropped()
		return ErrNotOpen
	}
	if err := m.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// dial starts a new socket generation.
func (m *Manager) dial() {
	if err := ValidateURL(m.url); err != nil {
		m.log.Error("Cannot create socket", "url", m.url, "error", err)
		m.setState(StateFailed)
		if m.listener != nil {
			m.listener.OnError(err)
		}
		return
	}

	m.generation++
	gen := m.generation
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	m.cancelDial = cancel
	m.metrics.ConnectAttempt()
	m.setState(StateConnecting)

	go func() {
		defer cancel()
		conn, err := m.dialer.Dial(ctx, m.url)
		if err != nil {
			m.exec.Post(func() { m.handleClose(gen, AbnormalCloseCode, err.Error()) })
			return
		}
		if !m.exec.Post(func() { m.handleOpen(gen, conn) }) {
			_ = conn.Close(ManualCloseCode, "shutting down")
		}
	}()
}

// discard abandons the current generation without reporting anything.
func (m *Manager) discard() {
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		_ = m.conn.Close(ManualCloseCode, "replaced")
		m.conn = nil
	}
	m.generation++
}

func (m *Manager) handleOpen(gen uint64, conn Conn) {
	if gen != m.generation {
		_ = conn.Close(ManualCloseCode, "stale connection")
		return
	}
	m.cancelDial = nil
	m.conn = conn
	m.attempt = 0
	m.setState(StateOpen)
	m.log.Info("Socket open", "url", m.url)

	go m.readLoop(gen, conn)

	if m.listener != nil {
		m.listener.OnOpen()
	}
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.Read()
		if err != nil {
			code, reason := closeStatus(err)
			m.exec.Post(func() { m.handleClose(gen, code, reason) })
			return
		}
		if !m.exec.Post(func() { m.handleMessage(gen, data) }) {
			return
		}
	}
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	if gen != m.generation || m.listener == nil {
		return
	}
	m.listener.OnMessage(data)
}

func (m *Manager) handleClose(gen uint64, code int, reason string) {
	if gen != m.generation {
		return
	}
	m.cancelDial = nil
	if m.conn != nil {
		_ = m.conn.Close(code, reason)
		m.conn = nil
	}

	event := CloseEvent{Code: code, Reason: reason, MaxAttempts: m.policy.MaxAttempts}
	switch {
	case code == ManualCloseCode:
		event.State = StateManuallyClosed
	case m.attempt < m.policy.MaxAttempts:
		m.attempt++
		event.State = StateReconnecting
		event.Attempt = m.attempt
		event.RetryIn = m.policy.Delay(m.attempt)
	default:
		event.State = StateFailed
	}

	m.log.Warn("Socket closed",
		"code", code,
		"reason", reason,
		"next", event.State.String(),
		"attempt", event.Attempt,
		"retry_in", event.RetryIn,
	)
	m.setState(event.State)
	if event.State == StateReconnecting {
		m.scheduleRetry(event.RetryIn)
	}
	if m.listener != nil {
		m.listener.OnClose(event)
	}
}

func (m *Manager) scheduleRetry(delay time.Duration) {
	m.retrySeq++
	seq := m.retrySeq
	m.metrics.ReconnectScheduled(delay)
	m.retry = m.scheduler.AfterFunc(delay, func() {
		m.exec.Post(func() { m.fireRetry(seq) })
	})
}

func (m *Manager) fireRetry(seq uint64) {
	// A retry cancelled after its timer fired may still be queued.
	if seq != m.retrySeq || m.retry == nil || m.state != StateReconnecting {
		return
	}
	m.retry = nil
	m.log.Info("Reconnecting", "attempt", m.attempt, "max_attempts", m.policy.MaxAttempts)
	m.dial()
}

func (m *Manager) cancelRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.retrySeq++
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.metrics.ConnectionState(s.String(), allStates)
	if m.listener != nil {
		m.listener.OnStateChange(s)
	}
}
