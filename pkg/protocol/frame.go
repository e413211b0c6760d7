// Package protocol encodes and decodes the JSON frames exchanged with the pairing server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// Decode errors.
var (
	// ErrMalformedFrame is returned for frames that are not valid JSON objects
	// or carry fields of the wrong shape.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingType is returned when the type field is absent or empty.
	ErrMissingType = errors.New("frame has no type")
	// ErrUnknownType is returned for a type the server never sends.
	ErrUnknownType = errors.New("unknown frame type")
)

// Type is the discriminant carried in the "type" field of every frame.
type Type string

// Inbound frame types.
const (
	TypeConnected           Type = "connected"
	TypeUserDataSaved       Type = "user_data_saved"
	TypeOnlineCountUpdate   Type = "online_count_update"
	TypePaired              Type = "paired"
	TypeChatMessage         Type = "chat_message"
	TypePartnerDisconnected Type = "partner_disconnected"
	TypeError               Type = "error"
)

// Outbound frame types. chat_message is shared with the inbound set.
const (
	TypeUserData Type = "user_data"
)

var inboundTypes = []Type{
	TypeConnected,
	TypeUserDataSaved,
	TypeOnlineCountUpdate,
	TypePaired,
	TypeChatMessage,
	TypePartnerDisconnected,
	TypeError,
}

// IsInbound reports whether t is a frame type the server may send.
func (t Type) IsInbound() bool {
	return lo.Contains(inboundTypes, t)
}

// Sender is the author tag of a chat_message frame.
type Sender string

// Known sender tags. Any tag other than SenderSelf is the partner.
const (
	SenderSelf     Sender = "you"
	SenderStranger Sender = "stranger"
)

// Frame is a decoded inbound frame. Only the fields relevant to Type are set.
type Frame struct {
	Type        Type
	OnlineCount *int
	Count       *int
	From        Sender
	Content     string
	Timestamp   time.Time
	Message     string
}

type wireFrame struct {
	Type        Type            `json:"type"`
	OnlineCount *int            `json:"onlineCount,omitempty"`
	Count       *int            `json:"count,omitempty"`
	From        Sender          `json:"from,omitempty"`
	Content     string          `json:"content,omitempty"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// Decode parses and validates one inbound frame.
// Every rejection wraps one of ErrMalformedFrame, ErrMissingType or ErrUnknownType.
func Decode(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if w.Type == "" {
		return Frame{}, ErrMissingType
	}
	if !w.Type.IsInbound() {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}

	f := Frame{
		Type:        w.Type,
		OnlineCount: w.OnlineCount,
		Count:       w.Count,
		From:        w.From,
		Content:     w.Content,
		Message:     w.Message,
	}

	if w.Type == TypeChatMessage {
		ts, err := parseTimestamp(w.Timestamp)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		f.Timestamp = ts
	}
	return f, nil
}

// parseTimestamp accepts an RFC 3339 string or a number of Unix milliseconds.
// An absent timestamp yields the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
		return ts, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// UserData is the profile frame sent once after every successful connection.
type UserData struct {
	UserID    string
	Gender    string
	Interests []string
	Language  string
	Timezone  string
}

type userDataWire struct {
	Type      Type     `json:"type"`
	UserID    string   `json:"userId"`
	Gender    string   `json:"gender"`
	Interests []string `json:"interests"`
	Language  string   `json:"language"`
	Timezone  string   `json:"timezone"`
}

// Encode encodes the user_data frame.
func (u UserData) Encode() ([]byte, error) {
	data, err := json.Marshal(userDataWire{
		Type:      TypeUserData,
		UserID:    u.UserID,
		Gender:    u.Gender,
		Interests: lo.Ternary(u.Interests == nil, []string{}, u.Interests),
		Language:  u.Language,
		Timezone:  u.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode user data: %w", err)
	}
	return data, nil
}

// ChatMessage is an outbound chat line. Length limits belong to the UI.
type ChatMessage struct {
	Content string
}

type chatMessageWire struct {
	Type    Type   `json:"type"`
	Content string `json:"content"`
}

// Encode encodes the chat_message frame.
func (m ChatMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(chatMessageWire{Type: TypeChatMessage, Content: m.Content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat message: %w", err)
	}
	return data, nil
}
