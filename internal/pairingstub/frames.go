package pairingstub

import (
	"encoding/json"
	"time"

	"github.com/omochice/chatanon/pkg/protocol"
)

// outbound is every frame the stub writes. Unset fields are omitted.
type outbound struct {
	Type        protocol.Type   `json:"type"`
	OnlineCount *int            `json:"onlineCount,omitempty"`
	Count       *int            `json:"count,omitempty"`
	From        protocol.Sender `json:"from,omitempty"`
	Content     string          `json:"content,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Message     string          `json:"message,omitempty"`
	UserID      string          `json:"userId,omitempty"`
}

// inbound is every frame a client may write.
type inbound struct {
	Type      protocol.Type `json:"type"`
	UserID    string        `json:"userId"`
	Gender    string        `json:"gender"`
	Interests []string      `json:"interests"`
	Language  string        `json:"language"`
	Timezone  string        `json:"timezone"`
	Content   string        `json:"content"`
}

func encode(f outbound) []byte {
	data, _ := json.Marshal(f)
	return data
}

func connectedFrame(online int) []byte {
	return encode(outbound{Type: protocol.TypeConnected, OnlineCount: &online})
}

func countFrame(online int) []byte {
	return encode(outbound{Type: protocol.TypeOnlineCountUpdate, Count: &online})
}

func pairedFrame(online int) []byte {
	return encode(outbound{Type: protocol.TypePaired, OnlineCount: &online})
}

func savedFrame(userID string) []byte {
	return encode(outbound{Type: protocol.TypeUserDataSaved, UserID: userID})
}

func chatFrame(from protocol.Sender, content string, at time.Time) []byte {
	return encode(outbound{
		Type:      protocol.TypeChatMessage,
		From:      from,
		Content:   content,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
}

func partnerGoneFrame(online int) []byte {
	return encode(outbound{
		Type:        protocol.TypePartnerDisconnected,
		Message:     PartnerDisconnectedMessage,
		OnlineCount: &online,
	})
}

func errorFrame(message string) []byte {
	return encode(outbound{Type: protocol.TypeError, Message: message})
}
