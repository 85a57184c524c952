package transport

import (
	"context"
	"net"
	"time"

	"github.com/player-project/playerd/pkg/wire"
)

// ClientConnection is the client end of a connection as the client
// library uses it.
type ClientConnection interface {
	// ServerVersion returns the version from the ident banner.
	ServerVersion() string

	Send(hdr wire.Header, payload []byte) error

	// Receive waits up to timeout for the next frame. Zero waits forever.
	Receive(timeout time.Duration) (Frame, error)

	Close() error
}

// Listener accepts client connections and hands their frames to the
// callbacks of ServerConfig.
type Listener interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() net.Addr
	ConnectionCount() int
}

var (
	_ ClientConnection = (*ClientConn)(nil)
	_ Listener         = (*Server)(nil)
)
