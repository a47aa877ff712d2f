package memlan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SepehrImanian/stpbridge/internal/ports"
)

// inboxSize bounds each attachment's queue; deliveries beyond it are dropped
// the way a congested LAN would drop them.
const inboxSize = 1024

var ErrDetached = errors.New("attachment detached")

type Datagram struct {
	Port int
	Data []byte
}

type endpoint struct {
	a    *Attachment
	port int
}

// Medium is an in-process set of LANs. A datagram sent on a LAN reaches
// every other endpoint attached to it.
type Medium struct {
	mu   sync.Mutex
	lans map[string][]endpoint
}

func NewMedium() *Medium {
	return &Medium{lans: make(map[string][]endpoint)}
}

// Attach connects a new attachment to the given LANs, one port per entry.
func (m *Medium) Attach(lans ...string) *Attachment {
	a := &Attachment{
		m:     m,
		lans:  append([]string(nil), lans...),
		inbox: make(chan Datagram, inboxSize),
		done:  make(chan struct{}),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, lan := range lans {
		m.lans[lan] = append(m.lans[lan], endpoint{a: a, port: i})
	}
	return a
}

func (m *Medium) detach(a *Attachment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for lan, eps := range m.lans {
		kept := eps[:0]
		for _, e := range eps {
			if e.a != a {
				kept = append(kept, e)
			}
		}
		m.lans[lan] = kept
	}
}

func (m *Medium) deliver(from *Attachment, port int, b []byte) {
	lan := from.lans[port]
	m.mu.Lock()
	eps := append([]endpoint(nil), m.lans[lan]...)
	m.mu.Unlock()

	for _, e := range eps {
		if e.a == from && e.port == port {
			continue
		}
		data := append([]byte(nil), b...)
		select {
		case e.a.inbox <- Datagram{Port: e.port, Data: data}:
		default:
		}
	}
}

// Attachment is one node's set of ports on the medium.
type Attachment struct {
	m     *Medium
	lans  []string
	inbox chan Datagram

	closeOnce sync.Once
	done      chan struct{}
}

var _ ports.LAN = (*Attachment)(nil)

func (a *Attachment) Send(ctx context.Context, port int, b []byte) error {
	if port < 0 || port >= len(a.lans) {
		return fmt.Errorf("no port %d", port)
	}
	select {
	case <-a.done:
		return ErrDetached
	default:
	}
	a.m.deliver(a, port, b)
	return nil
}

func (a *Attachment) Run(ctx context.Context, onFrame func(port int, b []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		case d := <-a.inbox:
			onFrame(d.Port, d.Data)
		}
	}
}

// Inbox exposes received datagrams directly, for attachments that are not
// run by a bridge (hosts).
func (a *Attachment) Inbox() <-chan Datagram {
	return a.inbox
}

// Close detaches from every LAN. Nothing is delivered to or from the
// attachment afterwards.
func (a *Attachment) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.m.detach(a)
	})
	return nil
}
