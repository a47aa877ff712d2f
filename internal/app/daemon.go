package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SepehrImanian/stpbridge/internal/core"
	"github.com/SepehrImanian/stpbridge/internal/domain"
	"github.com/SepehrImanian/stpbridge/internal/ports"
	"github.com/SepehrImanian/stpbridge/internal/proto"
)

const DefaultAnnounceInterval = 500 * time.Millisecond

type Options struct {
	BridgeID string
	Ports    []domain.Port

	LAN ports.LAN
	// Tap, if set, sees every datagram sent or received.
	Tap ports.FrameTap

	AnnounceInterval time.Duration
	UnconfirmedLimit int
	MaxCost          int

	Logger *slog.Logger
}

// Daemon drives a bridge: it feeds received datagrams into it and runs the
// announcer.
type Daemon struct {
	bridge *core.Bridge
	lan    ports.LAN
	tap    ports.FrameTap

	announceInterval time.Duration
	log              *slog.Logger
}

func New(opts Options) (*Daemon, error) {
	if opts.LAN == nil {
		return nil, fmt.Errorf("lan is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.AnnounceInterval
	if interval <= 0 {
		interval = DefaultAnnounceInterval
	}
	d := &Daemon{
		lan:              opts.LAN,
		tap:              opts.Tap,
		announceInterval: interval,
		log:              logger.With("bridge", opts.BridgeID),
	}

	b, err := core.New(core.Options{
		BridgeID:         opts.BridgeID,
		Ports:            opts.Ports,
		Sender:           sendFunc(d.send),
		UnconfirmedLimit: opts.UnconfirmedLimit,
		MaxCost:          opts.MaxCost,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	d.bridge = b
	return d, nil
}

func (d *Daemon) Bridge() *core.Bridge {
	return d.bridge
}

// Run blocks until ctx is done or the LAN transport stops.
func (d *Daemon) Run(ctx context.Context) error {
	snap := d.bridge.Snapshot()
	d.log.Info("bridge starting up", "ports", len(snap.Ports), "announce", d.announceInterval)
	d.log.Info("new root", "root", snap.State.RootID, "cost", snap.State.Cost)
	d.log.Info("root port", "port", snap.State.RootPort)

	lanErr := make(chan error, 1)
	go func() {
		lanErr <- d.lan.Run(ctx, func(port int, b []byte) {
			d.receive(ctx, port, b)
		})
	}()

	d.bridge.Announce(ctx)

	ticker := time.NewTicker(d.announceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := <-lanErr
			d.log.Info("stopped")
			return err
		case err := <-lanErr:
			if err != nil {
				return fmt.Errorf("lan: %w", err)
			}
			d.log.Info("lan closed")
			return nil
		case <-ticker.C:
			d.bridge.Announce(ctx)
		}
	}
}

func (d *Daemon) receive(ctx context.Context, port int, b []byte) {
	if d.tap != nil {
		d.tap.Record(port, ports.DirIn, b)
	}
	f, err := proto.Decode(b)
	if err != nil {
		d.log.Debug("discarding frame", "port", port, "error", err)
		return
	}
	if f.IsBPDU() {
		d.bridge.ApplyControlFrame(ctx, f.Message.Root, f.Message.Cost, f.Source, domain.PortID(port))
		return
	}
	d.bridge.HandleDataFrame(ctx, core.DataFrame{
		Source:  f.Source,
		Dest:    f.Dest,
		MsgID:   f.MsgID,
		Ingress: domain.PortID(port),
		Raw:     b,
	})
}

func (d *Daemon) send(ctx context.Context, port int, b []byte) error {
	if d.tap != nil {
		d.tap.Record(port, ports.DirOut, b)
	}
	return d.lan.Send(ctx, port, b)
}

type sendFunc func(ctx context.Context, port int, b []byte) error

func (f sendFunc) Send(ctx context.Context, port int, b []byte) error {
	return f(ctx, port, b)
}
