// Package session reduces decoded server frames into the state shown to the user.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omochice/chatanon/internal/identity"
	"github.com/omochice/chatanon/internal/metrics"
	"github.com/omochice/chatanon/internal/transport"
	"github.com/omochice/chatanon/pkg/protocol"
)

var (
	// ErrNotPaired is returned by SendChat when there is no partner.
	ErrNotPaired = errors.New("not paired with a partner")
	// ErrEmptyMessage is returned by SendChat for blank text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrIncompleteProfile is returned by StartSession when the identity lacks an id or gender.
	ErrIncompleteProfile = errors.New("profile is incomplete")
)

// Onboarding notices shown at the top of every transcript.
const (
	ContentWarning = "ChatAnon: For users 18+ only. Avoid sharing personal information, as chats may be downloaded or shared online by others."
	Greeting       = "You're now chatting with a stranger. Say hi :)"

	connectionLost      = "Connection lost. Start a new chat to reconnect."
	connectionRetrying  = "Connection lost. Reconnecting (attempt %d of %d)..."
	connectionErrorText = "Connection error. Please try again."
)

// Option configures a Machine.
type Option func(*Machine)

// WithLocale sets the language and timezone sent in user_data.
func WithLocale(loc identity.Locale) Option {
	return func(m *Machine) { m.locale = loc }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// WithMetrics instruments frame handling.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// WithClock replaces time.Now for locally created entries.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the serial reducer over inbound frames. It is a transport.Listener
// and, like the transport manager, must only be used from the event loop.
type Machine struct {
	transport Transport
	identity  IdentityStore
	locale    identity.Locale
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	connection   transport.State
	pairing      PairingState
	onlineCount  int
	entries      []Entry
	userDataSent bool

	subscribers []func(Snapshot)
}

var _ transport.Listener = (*Machine)(nil)

// NewMachine creates a Machine in the Disconnected state.
func NewMachine(t Transport, store IdentityStore, opts ...Option) *Machine {
	m := &Machine{
		transport:  t,
		identity:   store,
		locale:     identity.Locale{Language: "en-US", Timezone: "UTC"},
		now:        time.Now,
		connection: transport.StateIdle,
		pairing:    Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Subscribe registers fn to receive a new Snapshot after every change.
func (m *Machine) Subscribe(fn func(Snapshot)) {
	m.subscribers = append(m.subscribers, fn)
}

// Snapshot returns the current state. The entries slice is a copy.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Connection:  m.connection,
		Pairing:     m.pairing,
		OnlineCount: m.onlineCount,
		Entries:     slices.Clone(m.entries),
	}
}

// StartSession seeds the onboarding entries and connects.
func (m *Machine) StartSession() error {
	if !m.identity.HasCompleteUserData() {
		return ErrIncompleteProfile
	}
	m.entries = m.onboarding()
	m.publish()
	m.transport.Connect()
	return nil
}

// SendChat transmits text while paired. Nothing is appended locally: the
// server echoes the message back tagged with the sender.
func (m *Machine) SendChat(text string) error {
	if m.pairing != Paired {
		return ErrNotPaired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	data, err := protocol.ChatMessage{Content: text}.Encode()
	if err != nil {
		return err
	}
	if err := m.transport.Send(data); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	m.metrics.FrameSent(string(protocol.TypeChatMessage))
	return nil
}

// Leave disconnects on the user's request and clears the transcript.
func (m *Machine) Leave() {
	m.transport.Disconnect()
	m.pairing = Disconnected
	m.entries = nil
	m.publish()
}

// OnStateChange implements transport.Listener.
func (m *Machine) OnStateChange(state transport.State) {
	m.connection = state
	m.publish()
}

// OnOpen implements transport.Listener.
func (m *Machine) OnOpen() {
	m.connection = transport.StateOpen
	m.userDataSent = false
	m.ensureUserData()
}

// OnMessage implements transport.Listener.
func (m *Machine) OnMessage(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		m.log.Warn("Ignoring inbound frame", "error", err, "size", len(data))
		m.metrics.FrameRejected(rejectReason(err))
		return
	}
	m.metrics.FrameReceived(string(frame.Type))
	m.apply(frame)
}

// OnClose implements transport.Listener.
func (m *Machine) OnClose(event transport.CloseEvent) {
	m.pairing = Disconnected
	m.userDataSent = false
	if event.State == transport.StateReconnecting {
		m.appendEntry(RoleSystem, fmt.Sprintf(connectionRetrying, event.Attempt, event.MaxAttempts), m.now())
	} else {
		m.appendEntry(RoleSystem, connectionLost, m.now())
	}
	m.publish()
}

// OnError implements transport.Listener.
func (m *Machine) OnError(err error) {
	m.log.Error("Connection error", "error", err)
	m.pairing = Disconnected
	m.appendEntry(RoleError, connectionErrorText, m.now())
	m.publish()
}

func (m *Machine) apply(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeConnected:
		m.pairing = WaitingForPartner
		m.onlineCount = 0
		m.recordCount(f.OnlineCount)
		m.ensureUserData()

	case protocol.TypeUserDataSaved:
		m.log.Debug("User data acknowledged")
		return

	case protocol.TypeOnlineCountUpdate:
		m.recordCount(f.Count)

	case protocol.TypePaired:
		if m.pairing != WaitingForPartner {
			m.log.Warn("Paired while not waiting for a partner", "pairing", m.pairing.String())
		}
		m.pairing = Paired
		m.entries = m.onboarding()
		m.recordCount(f.OnlineCount)

	case protocol.TypeChatMessage:
		if m.pairing != Paired {
			m.log.Debug("Chat message outside a pairing", "pairing", m.pairing.String())
		}
		role := RolePeer
		if f.From == protocol.SenderSelf {
			role = RoleSelf
		}
		m.appendEntry(role, f.Content, f.Timestamp)

	case protocol.TypePartnerDisconnected:
		m.pairing = Disconnected
		m.recordCount(f.OnlineCount)
		m.appendEntry(RoleSystem, f.Message, m.now())
		m.publish()
		m.transport.Disconnect()
		return

	case protocol.TypeError:
		m.appendEntry(RoleError, f.Message, m.now())
	}
	m.publish()
}

// ensureUserData sends the profile once per connection.
func (m *Machine) ensureUserData() {
	if m.userDataSent || m.connection != transport.StateOpen {
		return
	}
	data, err := m.identity.GetUserData()
	if err != nil {
		m.log.Error("Cannot read user data", "error", err)
		return
	}
	if data.UserID == "" || data.Gender == "" {
		m.log.Error("Not sending user data: profile incomplete",
			"has_user_id", data.UserID != "",
			"has_gender", data.Gender != "",
		)
		return
	}
	frame, err := protocol.UserData{
		UserID:    data.UserID,
		Gender:    data.Gender,
		Interests: data.Interests,
		Language:  m.locale.Language,
		Timezone:  m.locale.Timezone,
	}.Encode()
	if err != nil {
		m.log.Error("Cannot encode user data", "error", err)
		return
	}
	if err := m.transport.Send(frame); err != nil {
		m.log.Error("Failed to send user data", "error", err)
		return
	}
	m.userDataSent = true
	m.metrics.FrameSent(string(protocol.TypeUserData))
	m.log.Info("User data sent", "user_id", data.UserID)
}

func (m *Machine) recordCount(count *int) {
	if count == nil {
		return
	}
	if *count < 0 {
		m.log.Warn("Ignoring negative online count", "count", *count)
		return
	}
	m.onlineCount = *count
}

func (m *Machine) onboarding() []Entry {
	now := m.now()
	return []Entry{
		{ID: uuid.New(), Role: RoleSystem, Content: ContentWarning, Timestamp: now},
		{ID: uuid.New(), Role: RoleSystem, Content: Greeting, Timestamp: now},
	}
}

func (m *Machine) appendEntry(role Role, content string, ts time.Time) {
	m.entries = append(m.entries, Entry{ID: uuid.New(), Role: role, Content: content, Timestamp: ts})
}

func (m *Machine) publish() {
	if len(m.subscribers) == 0 {
		return
	}
	snap := m.Snapshot()
	for _, fn := range m.subscribers {
		fn(snap)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMissingType):
		return "missing_type"
	case errors.Is(err, protocol.ErrUnknownType):
		return "unknown_type"
	default:
		return "malformed"
	}
}
