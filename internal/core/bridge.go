package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SepehrImanian/stpbridge/internal/domain"
	"github.com/SepehrImanian/stpbridge/internal/ports"
	"github.com/SepehrImanian/stpbridge/internal/proto"
)

// DefaultUnconfirmedLimit is the number of announce cycles a bridge tolerates
// without hearing its root path before it reclaims the root role.
const DefaultUnconfirmedLimit = 2

// DefaultMaxCost bounds the hop count of an adoptable path, like STP's max
// age. Announcements of a departed root keep circulating with growing cost
// until they exceed it.
const DefaultMaxCost = 20

var ErrNoPorts = errors.New("bridge has no ports")

type Options struct {
	BridgeID         string
	Ports            []domain.Port
	Sender           ports.Sender
	UnconfirmedLimit int
	// MaxCost is the largest cost the bridge will hold. BPDUs advertising
	// MaxCost or more are discarded.
	MaxCost int
	Logger  *slog.Logger
}

// Bridge owns the spanning-tree state, the ports and the forwarding table.
// Every exported method holds mu for its whole duration, so the announcer
// and the frame handlers observe each other's transitions atomically.
type Bridge struct {
	mu sync.Mutex

	state domain.BridgeState
	ports []domain.Port
	table domain.ForwardingTable

	sender           ports.Sender
	unconfirmedLimit int
	maxCost          int
	log              *slog.Logger
}

func New(opts Options) (*Bridge, error) {
	if opts.BridgeID == "" {
		return nil, fmt.Errorf("bridge id is required")
	}
	if len(opts.Ports) == 0 {
		return nil, ErrNoPorts
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	ps := make([]domain.Port, len(opts.Ports))
	for i, p := range opts.Ports {
		if p.ID != domain.PortID(i) {
			return nil, fmt.Errorf("port %d has id %d", i, p.ID)
		}
		ps[i] = p
	}
	limit := opts.UnconfirmedLimit
	if limit <= 0 {
		limit = DefaultUnconfirmedLimit
	}
	maxCost := opts.MaxCost
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		state:            domain.NewBridgeState(opts.BridgeID),
		ports:            ps,
		table:            domain.NewForwardingTable(),
		sender:           opts.Sender,
		unconfirmedLimit: limit,
		maxCost:          maxCost,
		log:              logger.With("bridge", opts.BridgeID),
	}, nil
}

func (b *Bridge) ID() string {
	return b.state.BridgeID
}

// Snapshot is a point-in-time copy of the bridge's state.
type Snapshot struct {
	State domain.BridgeState
	Ports []domain.Port
	Table domain.ForwardingTable
}

func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ps := make([]domain.Port, len(b.ports))
	copy(ps, b.ports)
	return Snapshot{
		State: b.state,
		Ports: ps,
		Table: b.table.Clone(),
	}
}

// Announce is one announcer tick: advertise the current belief on every
// attachment, then age the root path. A bridge that has not heard its root
// path for more than the limit reclaims the root role.
func (b *Bridge) Announce(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.broadcastBPDU(ctx)

	b.state.Unconfirmed++
	if b.state.Unconfirmed <= b.unconfirmedLimit {
		return
	}
	if b.state.IsRoot() {
		b.state.Unconfirmed = 0
		return
	}
	b.loseRoot()
}

// loseRoot reverts to self as root. Any better BPDU supersedes it.
func (b *Bridge) loseRoot() {
	b.log.Info("root lost", "root", b.state.RootID, "next_hop", b.state.NextHop, "unconfirmed", b.state.Unconfirmed)

	b.state.BecomeRoot()
	for i := range b.ports {
		b.ports[i].ResetCost()
	}
	b.flush()

	b.log.Info("new root", "root", b.state.RootID, "cost", b.state.Cost)
	b.log.Info("root port", "port", b.state.RootPort)
}

func (b *Bridge) broadcastBPDU(ctx context.Context) {
	for i := range b.ports {
		p := &b.ports[i]
		if p.PermanentlyDisabled {
			continue
		}
		raw, err := proto.EncodeBPDU(b.state.BridgeID, b.state.RootID, b.state.Cost, int(p.ID))
		if err != nil {
			b.log.Error("encode bpdu", "error", err)
			return
		}
		b.transmit(ctx, p.ID, raw)
	}
}

func (b *Bridge) transmit(ctx context.Context, port domain.PortID, raw []byte) {
	if err := b.sender.Send(ctx, int(port), raw); err != nil {
		b.log.Warn("send failed", "port", port, "error", err)
	}
}

// flush discards every learned host; the table is replaced, never pruned.
func (b *Bridge) flush() {
	b.table = domain.NewForwardingTable()
}

func (b *Bridge) validPort(p domain.PortID) bool {
	return p >= 0 && int(p) < len(b.ports)
}
