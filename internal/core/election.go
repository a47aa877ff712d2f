package core

import (
	"context"

	"github.com/SepehrImanian/stpbridge/internal/domain"
)

// ApplyControlFrame folds a received BPDU into the bridge's belief. It
// reports whether the belief changed, in which case the forwarding table has
// already been flushed and a fresh BPDU sent on every attachment.
func (b *Bridge) ApplyControlFrame(ctx context.Context, root string, cost int, sender string, ingress domain.PortID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validPort(ingress) || b.ports[ingress].PermanentlyDisabled || sender == b.state.BridgeID {
		return false
	}

	if cost < 0 || cost >= b.maxCost {
		b.log.Debug("discarding bpdu", "sender", sender, "root", root, "cost", cost, "port", ingress)
		return false
	}

	s := &b.state
	updated := false
	if b.better(root, cost, sender) {
		if root < s.RootID {
			s.RootID = root
			b.log.Info("new root", "root", root, "cost", cost+1)
		}
		s.Cost = cost + 1
		s.NextHop = sender
		s.RootPort = ingress
		s.Unconfirmed = 0
		for i := range b.ports {
			p := &b.ports[i]
			if p.ID != ingress {
				p.ResetCost()
				continue
			}
			p.MinCost = s.Cost - 1
			p.MinCostFrom = sender
		}
		b.log.Info("root port", "port", ingress, "next_hop", sender)

		b.broadcastBPDU(ctx)
		b.flush()
		updated = true
	} else if (root == s.RootID && cost+1 == s.Cost && sender == s.NextHop) || s.IsRoot() {
		s.Unconfirmed = 0
	}

	if root == s.RootID {
		p := &b.ports[ingress]
		p.ObserveCost(cost, sender)
		b.decide(p)
	}
	return updated
}

// better reports whether (root, cost+1, sender) beats the current belief:
// lower root, then lower cost, then lower next hop.
func (b *Bridge) better(root string, cost int, sender string) bool {
	s := b.state
	switch {
	case root < s.RootID:
		return true
	case root > s.RootID:
		return false
	case cost+1 < s.Cost:
		return true
	case cost+1 == s.Cost:
		return sender < s.NextHop
	}
	return false
}

// decide keeps a port enabled when it is the root port or the bridge is the
// designated forwarder for its LAN.
func (b *Bridge) decide(p *domain.Port) {
	if p.PermanentlyDisabled {
		return
	}
	s := b.state
	enabled := p.ID == s.RootPort ||
		p.MinCost >= s.Cost+1 ||
		(p.MinCost == s.Cost && p.MinCostFrom >= s.BridgeID)
	if enabled == p.Enabled {
		return
	}
	p.Enabled = enabled
	if enabled {
		b.log.Info("designated port", "port", p.ID)
	} else {
		b.log.Info("disabled port", "port", p.ID)
	}
}
