package ports

import (
	"context"
)

// Sender transmits a raw datagram out of one port. Sends are best effort.
type Sender interface {
	Send(ctx context.Context, port int, b []byte) error
}

// LAN is the set of a bridge's attachments, one per port, in port order.
type LAN interface {
	Sender
	// Run blocks delivering every received datagram to onFrame until ctx is
	// done. onFrame may be called from several goroutines at once.
	Run(ctx context.Context, onFrame func(port int, b []byte)) error
	Close() error
}
