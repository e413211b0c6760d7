// Package transport owns the socket to the pairing server and its reconnection policy.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Close codes.
const (
	// ManualCloseCode marks a disconnect requested by the local user.
	// Any other code is abnormal and eligible for reconnection.
	ManualCloseCode = 1000

	// AbnormalCloseCode is reported when the socket dropped or never opened.
	AbnormalCloseCode = 1006
)

var (
	// ErrNotOpen is returned by Send when the socket is not Open.
	ErrNotOpen = errors.New("socket is not open")
	// ErrInvalidURL is returned for a malformed or non ws/wss socket URL.
	ErrInvalidURL = errors.New("invalid socket url")
)

// Conn abstracts one established socket.
// Read and Write may be called concurrently with each other.
type Conn interface {
	// Read blocks until the next data frame arrives.
	// A close frame from the peer is returned as *CloseError.
	Read() ([]byte, error)

	// Write sends a single text frame.
	Write(data []byte) error

	// Close sends a close frame with code and reason and releases the socket.
	Close(code int, reason string) error
}

// Dialer opens sockets. Dial blocks until the handshake completes or ctx ends.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// CloseError reports a close frame received from the peer.
type CloseError struct {
	Code   int
	Reason string
}

// Error implements error.
func (e *CloseError) Error() string {
	return "socket closed: " + strconv.Itoa(e.Code) + " " + e.Reason
}

// closeStatus extracts the close code of a read error.
// Errors that are not close frames count as abnormal closure.
func closeStatus(err error) (int, string) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Reason
	}
	return AbnormalCloseCode, err.Error()
}

// ValidateURL checks that raw is a ws:// or wss:// URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
