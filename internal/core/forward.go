package core

import (
	"context"

	"github.com/SepehrImanian/stpbridge/internal/domain"
)

type DataFrame struct {
	Source  string
	Dest    string
	MsgID   int
	Ingress domain.PortID
	Raw     []byte
}

// HandleDataFrame learns the frame's source and relays it. It returns the
// ports the frame was sent out of.
func (b *Bridge) HandleDataFrame(ctx context.Context, f DataFrame) []domain.PortID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validPort(f.Ingress) || !b.ports[f.Ingress].Active() {
		return nil
	}
	b.log.Debug("received", "source", f.Source, "msg_id", f.MsgID, "port", f.Ingress, "dest", f.Dest)

	b.table.Learn(f.Source, f.Ingress)

	if out, ok := b.table.Lookup(f.Dest); ok {
		if out == f.Ingress || !b.ports[out].Active() {
			b.log.Info("not forwarding", "source", f.Source, "msg_id", f.MsgID)
			return nil
		}
		b.log.Info("forwarding", "source", f.Source, "msg_id", f.MsgID, "port", out)
		b.transmit(ctx, out, f.Raw)
		return []domain.PortID{out}
	}

	b.log.Info("broadcasting", "source", f.Source, "msg_id", f.MsgID)
	var sent []domain.PortID
	for i := range b.ports {
		p := &b.ports[i]
		if p.ID == f.Ingress || !p.Active() {
			continue
		}
		b.transmit(ctx, p.ID, f.Raw)
		sent = append(sent, p.ID)
	}
	return sent
}
