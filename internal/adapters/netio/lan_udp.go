package netio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/SepehrImanian/stpbridge/internal/ports"
)

// maxDatagram is the largest payload a UDP datagram can carry.
const maxDatagram = 65535

// LANUDP attaches each port to a LAN simulated by a UDP endpoint: the port
// binds an ephemeral local socket and exchanges datagrams with host:lan.
type LANUDP struct {
	conns []*net.UDPConn
	lans  []*net.UDPAddr
	log   *slog.Logger

	closeOnce sync.Once
}

var _ ports.LAN = (*LANUDP)(nil)

// NewLANUDP binds one socket per LAN. Failing to bind any of them is fatal
// to the bridge, so every socket already opened is released.
func NewLANUDP(host string, lans []string, logger *slog.Logger) (*LANUDP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &LANUDP{log: logger}
	for i, lan := range lans {
		raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, lan))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("port %d: resolve lan %q: %w", i, lan, err)
		}
		laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, "0"))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("port %d: resolve local address: %w", i, err)
		}
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("port %d: bind: %w", i, err)
		}
		_ = conn.SetReadBuffer(1 << 20)
		l.conns = append(l.conns, conn)
		l.lans = append(l.lans, raddr)
	}
	return l, nil
}

// LocalAddr returns the address port i is bound to.
func (l *LANUDP) LocalAddr(port int) net.Addr {
	return l.conns[port].LocalAddr()
}

// Run reads every socket until ctx is done, then closes them. Each socket
// has its own reader, so onFrame is called concurrently.
func (l *LANUDP) Run(ctx context.Context, onFrame func(port int, b []byte)) error {
	var wg sync.WaitGroup
	for i, conn := range l.conns {
		wg.Add(1)
		go func(port int, conn *net.UDPConn) {
			defer wg.Done()
			l.readLoop(port, conn, onFrame)
		}(i, conn)
	}

	<-ctx.Done()
	err := l.Close()
	wg.Wait()
	return err
}

func (l *LANUDP) readLoop(port int, conn *net.UDPConn, onFrame func(int, []byte)) {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn("lan receive", "port", port, "error", err)
			continue
		}
		b := make([]byte, n)
		copy(b, buf[:n])
		onFrame(port, b)
	}
}

func (l *LANUDP) Send(ctx context.Context, port int, b []byte) error {
	if port < 0 || port >= len(l.conns) {
		return fmt.Errorf("no port %d", port)
	}
	_, err := l.conns[port].WriteToUDP(b, l.lans[port])
	return err
}

func (l *LANUDP) Close() error {
	var errs []error
	l.closeOnce.Do(func() {
		for _, c := range l.conns {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
