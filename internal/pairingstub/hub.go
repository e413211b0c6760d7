// Package pairingstub is an in-process pairing server speaking the chat wire
// protocol. It pairs clients first come first served and relays chat between
// partners. It backs local development and end-to-end tests.
package pairingstub

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/omochice/chatanon/pkg/protocol"
)

// PartnerDisconnectedMessage is sent to the client whose partner left.
const PartnerDisconnectedMessage = "Stranger has disconnected."

const (
	outgoingBuffer = 32
	maxContent     = 1000
)

// client is one connected socket.
type client struct {
	id       string
	outgoing chan []byte
	drop     func()

	userID  string
	ready   bool
	partner *client
}

// Hub tracks connected clients, the waiting queue and active pairs.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	waiting []*client
	log     *slog.Logger
	now     func() time.Time
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]bool),
		log:     log,
		now:     time.Now,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// WaitingCount returns the number of clients waiting for a partner.
func (h *Hub) WaitingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiting)
}

// DropAll severs every socket without a close frame, as a network failure would.
func (h *Hub) DropAll() {
	h.mu.Lock()
	drops := lo.MapToSlice(h.clients, func(c *client, _ bool) func() { return c.drop })
	h.mu.Unlock()
	for _, drop := range drops {
		drop()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	online := len(h.clients)
	h.send(c, connectedFrame(online))
	h.broadcastCount(c)
	h.log.Info("Client connected", "client", c.id, "online", online)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	h.waiting = lo.Without(h.waiting, c)
	online := len(h.clients)
	if p := c.partner; p != nil {
		p.partner = nil
		p.ready = false
		h.send(p, partnerGoneFrame(online))
	}
	c.partner = nil
	h.broadcastCount(nil)
	h.log.Info("Client disconnected", "client", c.id, "online", online)
}

func (h *Hub) handle(c *client, data []byte) {
	var f inbound
	if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
		h.log.Warn("Invalid frame", "client", c.id, "error", err)
		h.mu.Lock()
		h.send(c, errorFrame("Invalid message format"))
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch f.Type {
	case protocol.TypeUserData:
		h.saveUserData(c, f)
	case protocol.TypeChatMessage:
		h.relay(c, f.Content)
	default:
		h.log.Warn("Unknown frame type", "client", c.id, "type", f.Type)
		h.send(c, errorFrame("Unknown message type"))
	}
}

func (h *Hub) saveUserData(c *client, f inbound) {
	if f.UserID == "" || f.Gender == "" {
		h.send(c, errorFrame("User data is incomplete"))
		return
	}
	c.userID = f.UserID
	h.send(c, savedFrame(f.UserID))
	h.log.Info("User data saved",
		"client", c.id,
		"user_id", f.UserID,
		"gender", f.Gender,
		"interests", strings.Join(f.Interests, ","),
		"language", f.Language,
		"timezone", f.Timezone,
	)
	if c.ready {
		return
	}
	c.ready = true
	h.enqueue(c)
}

// enqueue pairs c with the longest waiting client, or queues it.
func (h *Hub) enqueue(c *client) {
	if len(h.waiting) == 0 {
		h.waiting = append(h.waiting, c)
		return
	}
	p := h.waiting[0]
	h.waiting = h.waiting[1:]
	c.partner, p.partner = p, c
	online := len(h.clients)
	h.send(p, pairedFrame(online))
	h.send(c, pairedFrame(online))
	h.log.Info("Paired", "first", p.id, "second", c.id)
}

func (h *Hub) relay(c *client, content string) {
	content = strings.TrimSpace(content)
	switch {
	case c.partner == nil:
		h.send(c, errorFrame("You are not paired with anyone"))
	case content == "":
		h.send(c, errorFrame("Message cannot be empty"))
	case len([]rune(content)) > maxContent:
		h.send(c, errorFrame("Message is too long"))
	default:
		at := h.now()
		h.send(c, chatFrame(protocol.SenderSelf, content, at))
		h.send(c.partner, chatFrame(protocol.SenderStranger, content, at))
	}
}

// broadcastCount sends the online count to every client but except. Callers hold mu.
func (h *Hub) broadcastCount(except *client) {
	frame := countFrame(len(h.clients))
	for c := range h.clients {
		if c != except {
			h.send(c, frame)
		}
	}
}

// send queues data for c. Callers hold mu.
func (h *Hub) send(c *client, data []byte) {
	select {
	case c.outgoing <- data:
	default:
		h.log.Warn("Client channel full, skipping", "client", c.id)
	}
}
