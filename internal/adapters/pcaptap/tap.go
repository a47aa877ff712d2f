package pcaptap

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/SepehrImanian/stpbridge/internal/ports"
)

const snapLen = 65536

var loopback = net.IPv4(127, 0, 0, 1).To4()

// Tap writes every datagram crossing the bridge to a pcap trace. Each one is
// wrapped in synthetic Ethernet/IPv4/UDP headers: the source MAC identifies
// the bridge port and the LAN endpoint appears as the far UDP port, so the
// trace opens in any pcap reader with the JSON payload intact.
type Tap struct {
	mu  sync.Mutex
	w   *pcapgo.Writer
	c   io.Closer
	now func() time.Time

	lanPorts []uint16
}

var _ ports.FrameTap = (*Tap)(nil)

// Create opens path for writing. lans are the bridge's LAN identifiers in
// port order; numeric ones are used as the far UDP port.
func Create(path string, lans []string) (*Tap, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t, err := New(f, lans)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.c = f
	return t, nil
}

func New(w io.Writer, lans []string) (*Tap, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}
	lp := make([]uint16, len(lans))
	for i, lan := range lans {
		if n, err := strconv.ParseUint(lan, 10, 16); err == nil {
			lp[i] = uint16(n)
		}
	}
	return &Tap{w: pw, now: time.Now, lanPorts: lp}, nil
}

// PortMAC is the locally administered address standing for a bridge port.
func PortMAC(port int) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, byte(port >> 8), byte(port)}
}

func (t *Tap) Record(port int, dir ports.Direction, b []byte) {
	data, err := t.encode(port, dir, b)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     t.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

func (t *Tap) encode(port int, dir ports.Direction, b []byte) ([]byte, error) {
	var lan uint16
	if port >= 0 && port < len(t.lanPorts) {
		lan = t.lanPorts[port]
	}
	bridgePort := uint16(port)

	eth := &layers.Ethernet{
		SrcMAC:       PortMAC(port),
		DstMAC:       layers.EthernetBroadcast,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    loopback,
		DstIP:    loopback,
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(bridgePort), DstPort: layers.UDPPort(lan)}
	if dir == ports.DirIn {
		eth.SrcMAC, eth.DstMAC = eth.DstMAC, eth.SrcMAC
		udp.SrcPort, udp.DstPort = udp.DstPort, udp.SrcPort
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(b)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Tap) Close() error {
	if t.c == nil {
		return nil
	}
	return t.c.Close()
}
