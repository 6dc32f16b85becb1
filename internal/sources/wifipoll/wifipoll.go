package wifipoll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/platform"
)

const defaultPollInterval = 5 * time.Second

// Source polls the OS wireless status and pushes quality samples and
// association changes to the registered handler. Quality is pushed only
// while associated and only when it changed since the previous poll; an
// association flip is always pushed. Read errors skip the round, so a
// briefly missing adapter does not fabricate a disconnect.
type Source struct {
	logger   *slog.Logger
	iface    string
	interval time.Duration

	// read is swapped in tests for a fake adapter.
	read func(ctx context.Context, iface string) (platform.WirelessStatus, error)

	mu           sync.Mutex
	handler      monitor.WirelessHandler
	quality      int
	qualityKnown bool
	connected    bool
	linkKnown    bool
	cancel       context.CancelFunc
	done         chan struct{}
}

func New(logger *slog.Logger, iface string, interval time.Duration) *Source {
	if logger == nil {
		logger = slog.Default().With("component", "wifipoll")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Source{
		logger:   logger,
		iface:    iface,
		interval: interval,
		read:     platform.ReadWirelessStatus,
	}
}

func (s *Source) Name() string {
	return "wifi-poll"
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

// Current reads the adapter once. The sample primes the change detection,
// so the poll loop stays quiet until something actually moves.
func (s *Source) Current(ctx context.Context) (monitor.WirelessSample, error) {
	status, err := s.read(ctx, s.iface)
	if err != nil {
		return monitor.WirelessSample{}, err
	}

	s.mu.Lock()
	s.connected = status.Connected
	s.linkKnown = true
	if status.Connected {
		s.quality = status.Quality
		s.qualityKnown = true
	}
	s.mu.Unlock()

	return sampleFromStatus(status, s.iface), nil
}

func (s *Source) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Source) poll(ctx context.Context) {
	status, err := s.read(ctx, s.iface)
	if err != nil {
		s.logger.Debug("wireless read failed", "interface", s.iface, "error", err)

		return
	}

	s.mu.Lock()
	handler := s.handler

	linkFlipped := !s.linkKnown || status.Connected != s.connected
	s.connected = status.Connected
	s.linkKnown = true

	pushQuality := false
	if status.Connected {
		pushQuality = !s.qualityKnown || status.Quality != s.quality
		s.quality = status.Quality
		s.qualityKnown = true
	} else {
		// Forget the last quality so the first sample after a
		// reconnect is always pushed, even if it matches.
		s.qualityKnown = false
	}
	s.mu.Unlock()

	if handler == nil {
		return
	}
	if linkFlipped {
		handler.HandleLink(monitor.LinkChange{
			Connected: status.Connected,
			Interface: interfaceName(status, s.iface),
		})
	}
	if pushQuality {
		handler.HandleQuality(status.Quality)
	}
}

func sampleFromStatus(status platform.WirelessStatus, fallback string) monitor.WirelessSample {
	return monitor.WirelessSample{
		Quality:   status.Quality,
		Connected: status.Connected,
		Interface: interfaceName(status, fallback),
	}
}

func interfaceName(status platform.WirelessStatus, fallback string) string {
	if status.Interface != "" {
		return status.Interface
	}

	return fallback
}
