package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/bus"
	"github.com/SkyLord2/perception-network-status/internal/config"
	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/mqttpub"
	"github.com/SkyLord2/perception-network-status/internal/netstate"
	"github.com/SkyLord2/perception-network-status/internal/notifications"
	"github.com/SkyLord2/perception-network-status/internal/persistence"
	"github.com/SkyLord2/perception-network-status/internal/statusapi"
)

// Snapshot is the application-level view of the last observed network
// state. It is read and written only by the status service loop; everyone
// else gets copies via CurrentSnapshot.
type Snapshot struct {
	ReachabilityKnown bool                  `json:"reachability_known"`
	Reachable         bool                  `json:"reachable"`
	RawMask           netstate.Connectivity `json:"raw_mask"`
	SignalKnown       bool                  `json:"signal_known"`
	SignalWeak        bool                  `json:"signal_weak"`
	Quality           int                   `json:"quality"`
	RSSIDBm           int                   `json:"rssi_dbm"`
	WirelessConnected bool                  `json:"wireless_connected"`
	Interface         string                `json:"interface,omitempty"`
	Degraded          []string              `json:"degraded_sources,omitempty"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// StreamEvent is what the websocket feed carries: the event that fired
// plus the snapshot it produced.
type StreamEvent struct {
	Type     string   `json:"type"`
	Event    any      `json:"event"`
	Snapshot Snapshot `json:"snapshot"`
}

// StatusSinks are the fan-out targets of the consumer loop. Every field is
// optional; a nil sink is skipped.
type StatusSinks struct {
	Persist   func(persistence.Snapshot)
	Sender    notifications.Sender
	Broadcast func(any)
	Metrics   *statusapi.Metrics
	MQTT      *mqttpub.Publisher
}

// StatusService is the single consumer of classified verdicts: it owns the
// application-level "current status", and fans each event out to the
// persistence writer, desktop notifications, the tray, the websocket hub,
// MQTT and metrics. One goroutine does all of that, so no sink ever needs
// its own locking against the snapshot.
type StatusService struct {
	logger        *slog.Logger
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sinks         StatusSinks

	mu         sync.RWMutex
	snapshot   Snapshot
	trayUpdate func(Snapshot)
	lastNotice map[string]string
}

func NewStatusService(
	logger *slog.Logger,
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sinks StatusSinks,
) *StatusService {
	if logger == nil {
		logger = slog.Default().With("component", "app.status")
	}
	if currentConfig == nil {
		currentConfig = config.Default
	}

	return &StatusService{
		logger:        logger,
		bus:           messageBus,
		currentConfig: currentConfig,
		sinks:         sinks,
		lastNotice:    make(map[string]string),
	}
}

// Seed installs a snapshot restored from persistence so synchronous
// readers see the last known state before the first verdict arrives.
func (s *StatusService) Seed(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// SetTrayUpdate registers the tray callback. The tray is constructed after
// the runtime, so this arrives late; events before it are only missed by
// the tray, which reads CurrentSnapshot on startup anyway.
func (s *StatusService) SetTrayUpdate(fn func(Snapshot)) {
	s.mu.Lock()
	s.trayUpdate = fn
	s.mu.Unlock()
}

// CurrentSnapshot returns a copy of the current state for synchronous
// readers (tray startup, /status before the first event).
func (s *StatusService) CurrentSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Degraded = append([]string(nil), s.snapshot.Degraded...)

	return snap
}

// Start launches the consumer loop. It runs until ctx is cancelled or the
// bus closes its subscriptions.
func (s *StatusService) Start(ctx context.Context) {
	if s.bus == nil {
		return
	}

	reachSub := s.bus.Subscribe(monitor.TopicReachability)
	signalSub := s.bus.Subscribe(monitor.TopicSignal)
	linkSub := s.bus.Subscribe(monitor.TopicLink)
	healthSub := s.bus.Subscribe(monitor.TopicSourceHealth)

	go func() {
		defer s.bus.Unsubscribe(reachSub, monitor.TopicReachability)
		defer s.bus.Unsubscribe(signalSub, monitor.TopicSignal)
		defer s.bus.Unsubscribe(linkSub, monitor.TopicLink)
		defer s.bus.Unsubscribe(healthSub, monitor.TopicSourceHealth)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-reachSub:
				if !ok {
					return
				}
				if event, ok := raw.(monitor.ReachabilityEvent); ok {
					s.handleReachability(event)
				}
			case raw, ok := <-signalSub:
				if !ok {
					return
				}
				if event, ok := raw.(monitor.SignalEvent); ok {
					s.handleSignal(event)
				}
			case raw, ok := <-linkSub:
				if !ok {
					return
				}
				if event, ok := raw.(monitor.LinkEvent); ok {
					s.handleLink(event)
				}
			case raw, ok := <-healthSub:
				if !ok {
					return
				}
				if event, ok := raw.(monitor.SourceHealthEvent); ok {
					s.handleSourceHealth(event)
				}
			}
		}
	}()
}

func (s *StatusService) handleReachability(event monitor.ReachabilityEvent) {
	snap := s.mutate(func(snap *Snapshot) {
		snap.ReachabilityKnown = true
		snap.Reachable = event.State == netstate.Reachable
		snap.RawMask = event.Raw
		snap.UpdatedAt = event.At
	})

	s.persist(snap)
	s.notify("reachability", reachabilityNotice(event.State), func(c config.NotificationEventsConfig) bool {
		return c.Reachability
	})
	s.fanOut("reachability", event, snap)
	if s.sinks.Metrics != nil {
		s.sinks.Metrics.VerdictChanged("reachability", event.State.String())
	}
	if s.sinks.MQTT != nil {
		s.sinks.MQTT.PublishReachability(event)
	}
}

func (s *StatusService) handleSignal(event monitor.SignalEvent) {
	snap := s.mutate(func(snap *Snapshot) {
		snap.SignalKnown = true
		snap.SignalWeak = event.Weak
		snap.Quality = event.Quality
		snap.RSSIDBm = event.RSSI
		snap.UpdatedAt = event.At
	})

	s.persist(snap)
	s.notify("signal", signalNotice(event), func(c config.NotificationEventsConfig) bool {
		return c.Signal
	})
	s.fanOut("signal", event, snap)
	if s.sinks.Metrics != nil {
		s.sinks.Metrics.VerdictChanged("signal", signalStateName(event.Weak))
	}
	if s.sinks.MQTT != nil {
		s.sinks.MQTT.PublishSignal(event)
	}
}

func (s *StatusService) handleLink(event monitor.LinkEvent) {
	snap := s.mutate(func(snap *Snapshot) {
		snap.WirelessConnected = event.Connected
		if event.Interface != "" {
			snap.Interface = event.Interface
		}
		snap.UpdatedAt = event.At
	})

	s.persist(snap)
	s.notify("link", linkNotice(event), func(c config.NotificationEventsConfig) bool {
		return c.Link
	})
	s.fanOut("link", event, snap)
	if s.sinks.MQTT != nil {
		s.sinks.MQTT.PublishLink(event)
	}
}

func (s *StatusService) handleSourceHealth(event monitor.SourceHealthEvent) {
	snap := s.mutate(func(snap *Snapshot) {
		for _, name := range snap.Degraded {
			if name == event.Source {
				return
			}
		}
		snap.Degraded = append(snap.Degraded, event.Source)
	})

	s.logger.Warn("notification source degraded", "source", event.Source, "error", event.Err)
	if s.sinks.Metrics != nil {
		s.sinks.Metrics.SourceEvent(event.Source)
	}
	s.fanOut("source_health", event, snap)
}

// mutate applies fn to the snapshot under the lock and returns the result,
// then pushes it to the tray.
func (s *StatusService) mutate(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	fn(&s.snapshot)
	snap := s.snapshot
	trayUpdate := s.trayUpdate
	s.mu.Unlock()

	if trayUpdate != nil {
		trayUpdate(snap)
	}

	return snap
}

func (s *StatusService) persist(snap Snapshot) {
	if s.sinks.Persist == nil {
		return
	}
	s.sinks.Persist(persistence.Snapshot{
		Reachable:   snap.Reachable,
		RawMask:     snap.RawMask,
		SignalKnown: snap.SignalKnown,
		SignalWeak:  snap.SignalWeak,
		Quality:     snap.Quality,
		RSSIDBm:     snap.RSSIDBm,
		LinkUp:      snap.WirelessConnected,
		Interface:   snap.Interface,
		UpdatedAt:   snap.UpdatedAt,
	})
}

// notify sends a desktop notification when the kind is enabled and its
// text differs from the last one sent for that kind. Verdicts are already
// edge-triggered, but the startup probe can replay the persisted state;
// the text check keeps that from producing a duplicate toast.
func (s *StatusService) notify(kind string, payload notifications.Payload, enabled func(config.NotificationEventsConfig) bool) {
	if s.sinks.Sender == nil {
		return
	}
	cfg := s.currentConfig().Notifications
	if !cfg.Enabled || !enabled(cfg.Events) {
		return
	}

	s.mu.Lock()
	if s.lastNotice[kind] == payload.Content {
		s.mu.Unlock()

		return
	}
	s.lastNotice[kind] = payload.Content
	s.mu.Unlock()

	s.sinks.Sender.Send(payload)
}

func (s *StatusService) fanOut(eventType string, event any, snap Snapshot) {
	if s.sinks.Broadcast == nil {
		return
	}
	s.sinks.Broadcast(StreamEvent{Type: eventType, Event: event, Snapshot: snap})
}

func reachabilityNotice(state netstate.Reachability) notifications.Payload {
	if state == netstate.Reachable {
		return notifications.Payload{Title: "Internet connection", Content: "Internet connection restored"}
	}

	return notifications.Payload{Title: "Internet connection", Content: "Internet connection lost"}
}

func signalNotice(event monitor.SignalEvent) notifications.Payload {
	if event.Weak {
		return notifications.Payload{
			Title:   "Wireless signal",
			Content: fmt.Sprintf("Signal is weak: %d%% (~%d dBm)", event.Quality, event.RSSI),
		}
	}

	return notifications.Payload{
		Title:   "Wireless signal",
		Content: fmt.Sprintf("Signal recovered: %d%% (~%d dBm)", event.Quality, event.RSSI),
	}
}

func linkNotice(event monitor.LinkEvent) notifications.Payload {
	iface := event.Interface
	if iface == "" {
		iface = "wireless"
	}
	if event.Connected {
		return notifications.Payload{Title: "Wireless link", Content: iface + " connected"}
	}

	return notifications.Payload{Title: "Wireless link", Content: iface + " disconnected"}
}

func signalStateName(weak bool) string {
	if weak {
		return "weak"
	}

	return "strong"
}
