package pcaptap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SepehrImanian/stpbridge/internal/ports"
)

func readAll(t *testing.T, r *pcapgo.Reader) []gopacket.Packet {
	t.Helper()
	var out []gopacket.Packet
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			return out
		}
		out = append(out, gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default))
	}
}

func TestRecordWrapsDatagram(t *testing.T) {
	var buf bytes.Buffer
	tap, err := New(&buf, []string{"4001", "lan-b"})
	require.NoError(t, err)

	payload := []byte(`{"source":"h1","dest":"ffff","msg_id":1,"type":"data"}`)
	tap.Record(0, ports.DirOut, payload)
	tap.Record(1, ports.DirIn, payload)

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	pkts := readAll(t, r)
	require.Len(t, pkts, 2)

	out := pkts[0]
	eth := out.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, PortMAC(0), eth.SrcMAC)
	udp := out.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.Equal(t, layers.UDPPort(0), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(4001), udp.DstPort)
	assert.Equal(t, payload, udp.Payload)

	in := pkts[1]
	eth = in.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, PortMAC(1), eth.DstMAC)
	udp = in.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.Equal(t, layers.UDPPort(1), udp.DstPort)
	assert.Equal(t, layers.UDPPort(0), udp.SrcPort, "non-numeric lan has no far port")
	assert.Equal(t, payload, udp.Payload)
}

func TestCreateWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.pcap")
	tap, err := Create(path, []string{"4001"})
	require.NoError(t, err)
	tap.Record(0, ports.DirOut, []byte("x"))
	require.NoError(t, tap.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	assert.Len(t, readAll(t, r), 1)
}

func TestCreateFailsOnBadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "x.pcap"), nil)
	assert.Error(t, err)
}
