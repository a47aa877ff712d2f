package domain

import (
	"math"
	"strconv"
)

// Infinity marks a MinCost nobody on the attachment has advertised yet.
const Infinity = math.MaxInt

// PortID indexes the bridge's fixed port slice.
type PortID int

// NoPort is the root port of a bridge that believes itself root.
const NoPort PortID = -1

func (p PortID) String() string {
	if p == NoPort {
		return "none"
	}
	return strconv.Itoa(int(p))
}

type Port struct {
	ID  PortID
	LAN string

	Enabled             bool
	PermanentlyDisabled bool

	MinCost     int
	MinCostFrom string
}

func NewPort(id PortID, lan string, permanentlyDisabled bool) Port {
	return Port{
		ID:                  id,
		LAN:                 lan,
		Enabled:             !permanentlyDisabled,
		PermanentlyDisabled: permanentlyDisabled,
		MinCost:             Infinity,
	}
}

// Active reports whether frames may be relayed through the port.
func (p Port) Active() bool {
	return p.Enabled && !p.PermanentlyDisabled
}

// ObserveCost records a cost advertised by sender on this attachment.
// Among neighbors advertising the same minimum the lowest id is kept.
func (p *Port) ObserveCost(cost int, sender string) {
	if cost < p.MinCost || (cost == p.MinCost && (p.MinCostFrom == "" || sender < p.MinCostFrom)) {
		p.MinCost = cost
		p.MinCostFrom = sender
	}
}

// ResetCost forgets everything learned about the attachment's neighbors.
func (p *Port) ResetCost() {
	p.MinCost = Infinity
	p.MinCostFrom = ""
}
