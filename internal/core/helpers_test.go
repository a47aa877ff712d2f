package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SepehrImanian/stpbridge/internal/domain"
	"github.com/SepehrImanian/stpbridge/internal/proto"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type sentFrame struct {
	port  int
	raw   []byte
	frame *proto.Frame
}

type recorder struct {
	mu  sync.Mutex
	out []sentFrame
}

func (r *recorder) Send(_ context.Context, port int, b []byte) error {
	f, _ := proto.Decode(b)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, sentFrame{port: port, raw: b, frame: f})
	return nil
}

func (r *recorder) take() []sentFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.out
	r.out = nil
	return out
}

func makePorts(lans []string, permanentlyDisabled ...int) []domain.Port {
	off := make(map[int]bool)
	for _, i := range permanentlyDisabled {
		off[i] = true
	}
	ps := make([]domain.Port, len(lans))
	for i, lan := range lans {
		ps[i] = domain.NewPort(domain.PortID(i), lan, off[i])
	}
	return ps
}

func newTestBridge(t *testing.T, id string, nports int, permanentlyDisabled ...int) (*Bridge, *recorder) {
	t.Helper()
	lans := make([]string, nports)
	for i := range lans {
		lans[i] = id + "-lan" + string(rune('a'+i))
	}
	rec := &recorder{}
	b, err := New(Options{
		BridgeID: id,
		Ports:    makePorts(lans, permanentlyDisabled...),
		Sender:   rec,
		Logger:   quiet,
	})
	require.NoError(t, err)
	return b, rec
}

func dataFrame(src, dst string, msgID int, ingress domain.PortID) DataFrame {
	raw := []byte(`{"source":"` + src + `","dest":"` + dst + `","msg_id":1,"type":"data"}`)
	return DataFrame{Source: src, Dest: dst, MsgID: msgID, Ingress: ingress, Raw: raw}
}

// wire connects bridges and hosts through LANs. Sends are queued and
// delivered by pump, outside any bridge's lock.
type wire struct {
	t       *testing.T
	lans    map[string][]endpoint
	bridges map[string]*Bridge
	hosts   map[string]*[][]byte
	queue   []pending

	// maxCost is passed to every bridge added afterwards; zero is the default.
	maxCost int
}

type endpoint struct {
	node string
	port domain.PortID
}

type pending struct {
	from endpoint
	raw  []byte
}

type wireSender struct {
	w    *wire
	node string
}

func (s wireSender) Send(_ context.Context, port int, b []byte) error {
	s.w.queue = append(s.w.queue, pending{from: endpoint{s.node, domain.PortID(port)}, raw: b})
	return nil
}

func newWire(t *testing.T) *wire {
	return &wire{
		t:       t,
		lans:    make(map[string][]endpoint),
		bridges: make(map[string]*Bridge),
		hosts:   make(map[string]*[][]byte),
	}
}

func (w *wire) addBridge(id string, lans ...string) *Bridge {
	w.t.Helper()
	b, err := New(Options{
		BridgeID: id,
		Ports:    makePorts(lans),
		Sender:   wireSender{w: w, node: id},
		MaxCost:  w.maxCost,
		Logger:   quiet,
	})
	require.NoError(w.t, err)
	w.bridges[id] = b
	for i, lan := range lans {
		w.lans[lan] = append(w.lans[lan], endpoint{id, domain.PortID(i)})
	}
	return b
}

func (w *wire) addHost(name, lan string) {
	w.hosts[name] = new([][]byte)
	w.lans[lan] = append(w.lans[lan], endpoint{name, 0})
}

func (w *wire) hostSend(name string, raw []byte) {
	w.queue = append(w.queue, pending{from: endpoint{name, 0}, raw: raw})
}

func (w *wire) lanOf(e endpoint) string {
	for lan, eps := range w.lans {
		for _, x := range eps {
			if x == e {
				return lan
			}
		}
	}
	w.t.Fatalf("endpoint %v not attached", e)
	return ""
}

func (w *wire) pump() {
	ctx := context.Background()
	for n := 0; len(w.queue) > 0; n++ {
		if n > 100000 {
			w.t.Fatal("frames never stopped circulating")
		}
		p := w.queue[0]
		w.queue = w.queue[1:]
		f, err := proto.Decode(p.raw)
		require.NoError(w.t, err)
		for _, to := range w.lans[w.lanOf(p.from)] {
			if to == p.from {
				continue
			}
			if inbox, ok := w.hosts[to.node]; ok {
				if !f.IsBPDU() {
					*inbox = append(*inbox, p.raw)
				}
				continue
			}
			b := w.bridges[to.node]
			if f.IsBPDU() {
				b.ApplyControlFrame(ctx, f.Message.Root, f.Message.Cost, f.Source, to.port)
				continue
			}
			b.HandleDataFrame(ctx, DataFrame{Source: f.Source, Dest: f.Dest, MsgID: f.MsgID, Ingress: to.port, Raw: p.raw})
		}
	}
}

// rounds runs n announce cycles on every bridge, delivering all traffic
// after each cycle.
func (w *wire) rounds(n int) {
	for i := 0; i < n; i++ {
		for _, b := range w.bridges {
			b.Announce(context.Background())
		}
		w.pump()
	}
}
