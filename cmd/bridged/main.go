package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/SepehrImanian/stpbridge/internal/adapters/netio"
	"github.com/SepehrImanian/stpbridge/internal/adapters/pcaptap"
	"github.com/SepehrImanian/stpbridge/internal/app"
	"github.com/SepehrImanian/stpbridge/internal/config"
	"github.com/SepehrImanian/stpbridge/internal/domain"
	"github.com/SepehrImanian/stpbridge/internal/ports"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (instead of positional arguments)")
	capture := flag.String("capture", "", "Write all traffic to this pcap file")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <bridge_id> <lan_port> [<lan_port>...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath, flag.Args())
	if err != nil {
		flag.Usage()
		log.Fatalf("config: %v", err)
	}
	if *capture != "" {
		cfg.CaptureFile = *capture
	}

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource it opens, so they are released before main exits.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	atts := cfg.Attachments()
	ps := make([]domain.Port, len(atts))
	for i, a := range atts {
		ps[i] = domain.NewPort(domain.PortID(i), a.LAN, a.Duplicate)
	}

	lan, err := netio.NewLANUDP(cfg.Host, cfg.LANs, logger)
	if err != nil {
		return fmt.Errorf("lan udp: %w", err)
	}
	defer lan.Close()

	var tap ports.FrameTap
	if cfg.CaptureFile != "" {
		t, err := pcaptap.Create(cfg.CaptureFile, cfg.LANs)
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		defer t.Close()
		tap = t
	}

	d, err := app.New(app.Options{
		BridgeID:         cfg.BridgeID,
		Ports:            ps,
		LAN:              lan,
		Tap:              tap,
		AnnounceInterval: cfg.AnnounceInterval(),
		UnconfirmedLimit: cfg.UnconfirmedLimit,
		MaxCost:          cfg.MaxCost,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return d.Run(ctx)
}

func loadConfig(path string, args []string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("need a bridge id and at least one lan port")
	}
	return config.FromArgs(args[0], args[1:])
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
