// Package ws provides the WebSocket implementation of transport.Dialer using gobwas/ws.
package ws

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/chatanon/internal/transport"
)

// Conn adapts a client-side gobwas connection to transport.Conn.
type Conn struct {
	conn         net.Conn
	rw           io.ReadWriter
	writer       *lockedWriter
	writeTimeout time.Duration
	closeOnce    sync.Once

	// peerClosed is set once the server's close frame has been read and
	// answered by wsutil.
	peerClosed atomic.Bool
}

// lockedWriter serializes frame writes. wsutil writes pong and close replies
// from the reading goroutine through the same writer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// NewConn wraps an upgraded connection. reader holds bytes buffered during the
// handshake and may be nil.
func NewConn(conn net.Conn, reader io.Reader, writeTimeout time.Duration) *Conn {
	if reader == nil {
		reader = conn
	}
	w := &lockedWriter{w: conn}
	return &Conn{
		conn: conn,
		rw: struct {
			io.Reader
			io.Writer
		}{reader, w},
		writer:       w,
		writeTimeout: writeTimeout,
	}
}

// Read implements transport.Conn.
// Reads the next text or binary message sent by the server.
func (c *Conn) Read() ([]byte, error) {
	data, _, err := wsutil.ReadServerData(c.rw)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			c.peerClosed.Store(true)
			return nil, &transport.CloseError{Code: int(closed.Code), Reason: closed.Reason}
		}
		return nil, err
	}
	return data, nil
}

// Write implements transport.Conn.
// Writes a masked text frame.
func (c *Conn) Write(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return wsutil.WriteClientText(c.writer, data)
}

// Close implements transport.Conn.
// Sends a close frame with code and reason, then closes the TCP connection.
// No frame is written when the server already closed the handshake, or for
// the abnormal code, which must never appear on the wire.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		if !c.peerClosed.Load() && ws.StatusCode(code) != ws.StatusAbnormalClosure {
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			body := ws.NewCloseFrameBody(ws.StatusCode(code), reason)
			_ = wsutil.WriteClientMessage(c.writer, ws.OpClose, body)
		}
		err = c.conn.Close()
	})
	return err
}

var _ transport.Conn = (*Conn)(nil)
