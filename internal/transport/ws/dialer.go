package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/gobwas/ws"
	"github.com/omochice/chatanon/internal/transport"
)

// Dialer opens client WebSocket connections.
type Dialer struct {
	dialer       ws.Dialer
	writeTimeout time.Duration
}

// NewDialer creates a Dialer. writeTimeout bounds every frame write; zero disables it.
func NewDialer(writeTimeout time.Duration) *Dialer {
	return &Dialer{writeTimeout: writeTimeout}
}

// Dial performs the WebSocket handshake. The handshake is bounded by ctx.
func (d *Dialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	conn, br, _, err := d.dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	if br != nil {
		return NewConn(conn, br, d.writeTimeout), nil
	}
	return NewConn(conn, nil, d.writeTimeout), nil
}

var _ transport.Dialer = (*Dialer)(nil)
