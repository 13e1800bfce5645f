// Package transport provides the socket handles the reactor drives.
// Connections are established with the standard dialer and listener,
// then detached into raw non-blocking descriptors so that readiness is
// observed through epoll rather than the Go runtime poller.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer.
	// Stateless dialers return nil.
	Close() error
}

// DialConn dials address with d and detaches the result into a
// non-blocking [Conn].
func DialConn(ctx context.Context, d Dialer, network, address string) (*Conn, error) {
	nc, err := d.Dial(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return FromNetConn(nc)
}
