package domain

// ForwardingTable maps a host id to the port it was first seen on.
type ForwardingTable map[string]PortID

func NewForwardingTable() ForwardingTable {
	return make(ForwardingTable)
}

// Learn records host on port unless the host is already known.
func (t ForwardingTable) Learn(host string, port PortID) bool {
	if _, ok := t[host]; ok {
		return false
	}
	t[host] = port
	return true
}

func (t ForwardingTable) Lookup(host string) (PortID, bool) {
	p, ok := t[host]
	return p, ok
}

func (t ForwardingTable) Clone() ForwardingTable {
	out := make(ForwardingTable, len(t))
	for h, p := range t {
		out[h] = p
	}
	return out
}
