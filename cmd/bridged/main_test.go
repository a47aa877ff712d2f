package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SepehrImanian/stpbridge/internal/config"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func capturedPackets(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	n := 0
	for {
		if _, _, err := r.ReadPacketData(); err != nil {
			return n
		}
		n++
	}
}

func TestLoadConfigFromArgs(t *testing.T) {
	cfg, err := loadConfig("", []string{"92b4", "4001", "4002"})
	require.NoError(t, err)
	assert.Equal(t, "92b4", cfg.BridgeID)
	assert.Equal(t, []string{"4001", "4002"}, cfg.LANs)
}

func TestLoadConfigNeedsALAN(t *testing.T) {
	_, err := loadConfig("", []string{"92b4"})
	assert.Error(t, err)
	_, err = loadConfig("", nil)
	assert.Error(t, err)
}

func TestRunWritesCaptureUntilCancelled(t *testing.T) {
	cfg, err := config.FromArgs("92b4", []string{"9", "9"})
	require.NoError(t, err)
	cfg.Host = "127.0.0.1"
	cfg.CaptureFile = filepath.Join(t.TempDir(), "bridge.pcap")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, cfg, quiet))

	// The duplicate attachment stays silent; the first port announces once.
	assert.Equal(t, 1, capturedPackets(t, cfg.CaptureFile))
}

func TestRunReleasesCaptureOnBridgeError(t *testing.T) {
	cfg, err := config.FromArgs("92b4", []string{"9"})
	require.NoError(t, err)
	cfg.Host = "127.0.0.1"
	cfg.CaptureFile = filepath.Join(t.TempDir(), "bridge.pcap")
	cfg.BridgeID = ""

	err = run(context.Background(), cfg, quiet)
	assert.ErrorContains(t, err, "bridge id is required")
	assert.Equal(t, 0, capturedPackets(t, cfg.CaptureFile))
}
