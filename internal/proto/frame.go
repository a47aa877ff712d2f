package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Broadcast is the destination of every BPDU and of flooded data.
	Broadcast = "ffff"

	TypeBPDU = "bpdu"

	// MaxCost is the largest cost a BPDU may carry. Hop counts never come
	// close; anything larger would overflow once a bridge adds its own hop.
	MaxCost = 1<<16 - 1
)

var ErrMalformed = errors.New("malformed frame")

// BPDU carries the sender's current root belief.
type BPDU struct {
	ID   string `json:"id"`
	Root string `json:"root"`
	Cost int    `json:"cost"`
	Port int    `json:"port"`
}

// Frame is the decoded header of a datagram. Data frames may carry
// additional fields; only these are inspected.
type Frame struct {
	Source  string `json:"source"`
	Dest    string `json:"dest"`
	MsgID   int    `json:"msg_id"`
	Type    string `json:"type"`
	Message *BPDU  `json:"message,omitempty"`
}

func (f *Frame) IsBPDU() bool {
	return f.Type == TypeBPDU
}

func EncodeBPDU(bridgeID, root string, cost, port int) ([]byte, error) {
	return json.Marshal(Frame{
		Source: bridgeID,
		Dest:   Broadcast,
		MsgID:  0,
		Type:   TypeBPDU,
		Message: &BPDU{
			ID:   bridgeID,
			Root: root,
			Cost: cost,
			Port: port,
		},
	})
}

// wireFrame uses pointers so absent fields can be told apart from zero values.
type wireFrame struct {
	Source *string `json:"source"`
	Dest   *string `json:"dest"`
	MsgID  *int    `json:"msg_id"`
	Type   *string `json:"type"`
	// Message is only interpreted for BPDUs; data frames may put anything there.
	Message json.RawMessage `json:"message"`
}

type wireBPDU struct {
	ID   *string `json:"id"`
	Root *string `json:"root"`
	Cost *int    `json:"cost"`
	Port *int    `json:"port"`
}

func Decode(b []byte) (*Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Source == nil || w.Type == nil {
		return nil, fmt.Errorf("%w: missing source or type", ErrMalformed)
	}
	f := &Frame{Source: *w.Source, Type: *w.Type}
	if w.Dest != nil {
		f.Dest = *w.Dest
	}
	if w.MsgID != nil {
		f.MsgID = *w.MsgID
	}

	if !f.IsBPDU() {
		if w.Dest == nil || w.MsgID == nil {
			return nil, fmt.Errorf("%w: data frame missing dest or msg_id", ErrMalformed)
		}
		return f, nil
	}

	var m wireBPDU
	if len(w.Message) == 0 {
		return nil, fmt.Errorf("%w: bpdu without message", ErrMalformed)
	}
	if err := json.Unmarshal(w.Message, &m); err != nil {
		return nil, fmt.Errorf("%w: bpdu message: %v", ErrMalformed, err)
	}
	if m.Root == nil || m.Cost == nil {
		return nil, fmt.Errorf("%w: bpdu missing root or cost", ErrMalformed)
	}
	if *m.Cost < 0 || *m.Cost > MaxCost {
		return nil, fmt.Errorf("%w: cost %d out of range", ErrMalformed, *m.Cost)
	}
	f.Message = &BPDU{Root: *m.Root, Cost: *m.Cost}
	if m.ID != nil {
		f.Message.ID = *m.ID
	}
	if m.Port != nil {
		f.Message.Port = *m.Port
	}
	return f, nil
}
