package serialmodem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

const (
	connectTimeout    = 6 * time.Second
	portReadTimeout   = 300 * time.Millisecond
	maxConnectBackoff = 15 * time.Second
	maxPendingBytes   = 4096
)

// Source reads unsolicited AT reports from a cellular modem and turns them
// into wireless samples. The cellular link is considered up from the first
// valid signal report and down on NO CARRIER; the serial or TCP transport
// itself reconnects with backoff and does not affect the link state.
type Source struct {
	logger *slog.Logger
	ep     endpoint

	// open yields a port whose Read returns (0, nil) on idle so the
	// loop can observe context cancellation; swapped in tests.
	open func(ctx context.Context) (io.ReadCloser, error)

	mu           sync.Mutex
	handler      monitor.WirelessHandler
	connected    bool
	quality      int
	qualityKnown bool
	cancel       context.CancelFunc
	done         chan struct{}
}

func New(logger *slog.Logger, endpointRaw string) (*Source, error) {
	ep, err := parseEndpoint(endpointRaw)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default().With("component", "serialmodem")
	}

	s := &Source{logger: logger, ep: ep}
	s.open = s.openPort

	return s, nil
}

func (s *Source) Name() string {
	return "serial-modem"
}

func (s *Source) Register(h monitor.WirelessHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return errors.New("wireless handler already registered")
	}
	s.handler = h

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	return nil
}

func (s *Source) Unregister() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.handler = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Current returns the last parsed sample. Modems only volunteer reports,
// so there is nothing synchronous to ask; before the first report the
// sample is disconnected.
func (s *Source) Current(_ context.Context) (monitor.WirelessSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := monitor.WirelessSample{
		Connected: s.connected,
		Interface: s.ep.label(),
	}
	if s.qualityKnown {
		sample.Quality = s.quality
	}

	return sample, nil
}

func (s *Source) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		port, err := s.open(ctx)
		if err != nil {
			s.logger.Warn("modem connect failed", "endpoint", s.ep.label(), "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > maxConnectBackoff {
				backoff = maxConnectBackoff
			}

			continue
		}
		backoff = time.Second
		s.logger.Info("modem connected", "endpoint", s.ep.label())

		err = s.readReports(ctx, port)
		_ = port.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("modem stream ended", "endpoint", s.ep.label(), "error", err)
	}
}

func (s *Source) readReports(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	var pending []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimSpace(string(pending[:idx]))
				pending = pending[idx+1:]
				if line != "" {
					s.handleLine(line)
				}
			}
			if len(pending) > maxPendingBytes {
				// A stream with no newlines is not an AT
				// report feed; drop it instead of growing.
				pending = pending[:0]
			}
		}
		if err != nil {
			return err
		}
	}
}

func (s *Source) handleLine(line string) {
	rep := parseReportLine(line)

	switch rep.kind {
	case reportSignal:
		quality := netstate.QualityFromRSSI(rep.rssiDBm)

		s.mu.Lock()
		linkCameUp := !s.connected
		s.connected = true
		changed := !s.qualityKnown || quality != s.quality
		s.quality = quality
		s.qualityKnown = true
		handler := s.handler
		s.mu.Unlock()

		if linkCameUp {
			s.logger.Debug("cellular link up", "rssi_dbm", rep.rssiDBm, "system", rep.system)
		}
		if handler == nil {
			return
		}
		if linkCameUp {
			handler.HandleLink(monitor.LinkChange{Connected: true, Interface: s.ep.label()})
		}
		if changed {
			handler.HandleQuality(quality)
		}
	case reportCarrierLost:
		s.mu.Lock()
		linkWentDown := s.connected
		s.connected = false
		// Forget the quality so the first report after the carrier
		// returns is always pushed.
		s.qualityKnown = false
		handler := s.handler
		s.mu.Unlock()

		if !linkWentDown {
			return
		}
		s.logger.Debug("cellular link down")
		if handler != nil {
			handler.HandleLink(monitor.LinkChange{Connected: false, Interface: s.ep.label()})
		}
	case reportNone:
	}
}

func (s *Source) openPort(ctx context.Context) (io.ReadCloser, error) {
	switch s.ep.kind {
	case endpointSerial:
		port, err := serial.Open(s.ep.device, &serial.Mode{BaudRate: s.ep.baud})
		if err != nil {
			return nil, fmt.Errorf("open serial port %q: %w", s.ep.device, err)
		}
		if err := port.SetReadTimeout(portReadTimeout); err != nil {
			_ = port.Close()

			return nil, fmt.Errorf("set serial read timeout: %w", err)
		}

		return port, nil
	default:
		dialer := net.Dialer{Timeout: connectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", s.ep.address)
		if err != nil {
			return nil, fmt.Errorf("dial modem bridge %q: %w", s.ep.address, err)
		}

		return &tcpPort{conn: conn}, nil
	}
}

// tcpPort adapts a net.Conn to the idle-ticking Read contract the report
// loop expects: deadline expiry surfaces as (0, nil), like a serial read
// timeout.
type tcpPort struct {
	conn net.Conn
}

func (p *tcpPort) Read(b []byte) (int, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(portReadTimeout))
	n, err := p.conn.Read(b)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n, nil
		}
	}

	return n, err
}

func (p *tcpPort) Close() error {
	return p.conn.Close()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
