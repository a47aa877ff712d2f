package domain

// BridgeState is the bridge's belief about the spanning tree.
type BridgeState struct {
	BridgeID string

	RootID   string
	Cost     int
	NextHop  string
	RootPort PortID

	// Unconfirmed counts announce cycles since the root path was last heard.
	Unconfirmed int
}

func NewBridgeState(bridgeID string) BridgeState {
	s := BridgeState{BridgeID: bridgeID}
	s.BecomeRoot()
	return s
}

func (s BridgeState) IsRoot() bool {
	return s.RootID == s.BridgeID
}

// BecomeRoot reverts to believing the bridge itself is root.
func (s *BridgeState) BecomeRoot() {
	s.RootID = s.BridgeID
	s.NextHop = s.BridgeID
	s.RootPort = NoPort
	s.Cost = 0
	s.Unconfirmed = 0
}
