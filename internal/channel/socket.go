package channel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the minimal connection surface the manager needs. Satisfied by
// *websocket.Conn; tests provide in-memory fakes.
type Socket interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer establishes a raw socket to the push endpoint, presenting the
// session credential. It does not wait for the server's handshake ack;
// that is the manager's job.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Socket, error)
}

// NewDialer returns the production websocket dialer.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &wsDialer{handshakeTimeout: handshakeTimeout}
}

type wsDialer struct {
	handshakeTimeout time.Duration
}

func (d *wsDialer) Dial(ctx context.Context, url, token string) (Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrHandshakeRejected, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}
