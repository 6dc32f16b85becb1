package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/bus"
	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

// Phase is the coordinator lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

// StateSnapshot is the coordinator's cached verdict pair for synchronous
// readers (status API, tray startup).
type StateSnapshot struct {
	Reachable    netstate.Reachability
	ReachableSet bool
	SignalWeak   bool
	LastQuality  int
}

// Coordinator owns the reachability result cache and one signal tracker,
// receives raw events from the notification sources, and posts classified
// verdicts to the bus. The Handle methods are safe to call concurrently
// with each other and with Stop: callbacks already in flight when Stop runs
// complete against live state, and Stop waits for them before returning.
type Coordinator struct {
	logger *slog.Logger
	bus    bus.MessageBus

	connectivity ConnectivitySource
	wireless     WirelessSource

	// lifecycleMu serializes Start and Stop; connRegistered and
	// wirelessRegistered are only touched under it.
	lifecycleMu        sync.Mutex
	connRegistered     bool
	wirelessRegistered bool

	mu       sync.RWMutex // guards phase and degraded
	phase    Phase
	degraded []string
	inflight sync.WaitGroup

	connMu      sync.Mutex // spans classify-compare-publish
	lastVerdict netstate.Reachability
	verdictSet  bool

	signalMu sync.Mutex // spans observe-publish and tracker resets
	tracker  *netstate.SignalTracker
}

// NewCoordinator wires the classifier cache and tracker to the given
// sources. The wireless source may be nil when no adapter is monitored.
func NewCoordinator(
	logger *slog.Logger,
	messageBus bus.MessageBus,
	connectivitySrc ConnectivitySource,
	wirelessSrc WirelessSource,
	dropThreshold, recoverThreshold int,
) *Coordinator {
	if logger == nil {
		logger = slog.Default().With("component", "monitor")
	}

	return &Coordinator{
		logger:       logger,
		bus:          messageBus,
		connectivity: connectivitySrc,
		wireless:     wirelessSrc,
		tracker:      netstate.NewSignalTracker(dropThreshold, recoverThreshold, logger),
	}
}

// Start registers with the notification sources and probes the current
// state once through the same classification paths push events take, so the
// first delivered verdict reflects reality even though pushes only fire on
// change. A source that fails to register leaves the coordinator running
// degraded; Start fails outright only when nothing registered at all.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		phase := c.phase
		c.mu.Unlock()

		return fmt.Errorf("start monitor: coordinator is %s", phase)
	}
	c.phase = PhaseRunning
	c.mu.Unlock()

	var regErrs []error
	configured := 0
	if c.connectivity != nil {
		configured++
		if err := c.connectivity.Register(c); err != nil {
			c.reportSourceFailure(c.connectivity.Name(), err)
			regErrs = append(regErrs, fmt.Errorf("register %s: %w", c.connectivity.Name(), err))
		} else {
			c.connRegistered = true
		}
	}
	if c.wireless != nil {
		configured++
		if err := c.wireless.Register(c); err != nil {
			c.reportSourceFailure(c.wireless.Name(), err)
			regErrs = append(regErrs, fmt.Errorf("register %s: %w", c.wireless.Name(), err))
		} else {
			c.wirelessRegistered = true
		}
	}

	if configured == 0 {
		c.stopLocked()

		return errors.New("start monitor: no notification sources configured")
	}
	if !c.connRegistered && !c.wirelessRegistered {
		c.stopLocked()

		return fmt.Errorf("start monitor: every source failed to register: %w", errors.Join(regErrs...))
	}
	if len(regErrs) > 0 {
		c.logger.Warn("monitor running degraded", "failed_sources", len(regErrs))
	}

	c.probeInitialState(ctx)
	c.logger.Info("monitor started",
		"connectivity", c.connRegistered,
		"wireless", c.wirelessRegistered,
		"degraded", len(regErrs) > 0)

	return nil
}

// Stop unregisters from both sources, then waits for in-flight callbacks to
// drain before returning. Safe to call concurrently with the Handle
// methods; idempotent.
func (c *Coordinator) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	c.mu.Lock()
	if c.phase != PhaseRunning {
		c.mu.Unlock()

		return
	}
	c.phase = PhaseStopped
	c.mu.Unlock()

	// Unregister before waiting: no new callbacks arrive after these
	// return, and the ones already past the phase check finish against
	// state that is still fully alive.
	if c.wirelessRegistered {
		c.wireless.Unregister()
		c.wirelessRegistered = false
	}
	if c.connRegistered {
		c.connectivity.Unregister()
		c.connRegistered = false
	}
	c.inflight.Wait()

	snap := c.Snapshot()
	c.logger.Info("monitor stopped",
		"reachable", snap.ReachableSet && snap.Reachable == netstate.Reachable,
		"signal_weak", snap.SignalWeak)
}

func (c *Coordinator) probeInitialState(ctx context.Context) {
	if c.connRegistered {
		raw, err := c.connectivity.Current(ctx)
		if err != nil {
			c.logger.Warn("initial connectivity probe failed",
				"source", c.connectivity.Name(), "error", err)
		} else {
			c.HandleConnectivity(raw)
		}
	}
	if c.wirelessRegistered {
		sample, err := c.wireless.Current(ctx)
		switch {
		case err != nil:
			c.logger.Warn("initial wireless probe failed",
				"source", c.wireless.Name(), "error", err)
		case sample.Connected:
			c.HandleQuality(sample.Quality)
		default:
			c.logger.Info("wireless adapter not associated at startup")
		}
	}
}

// HandleConnectivity classifies a raw mask and posts a ReachabilityEvent
// when the verdict differs from the cached previous one. The cache starts
// empty, so the first classification always posts.
func (c *Coordinator) HandleConnectivity(raw netstate.Connectivity) {
	if !c.enter() {
		return
	}
	defer c.leave()

	verdict := netstate.ClassifyConnectivity(raw)
	c.logger.Debug("connectivity sample", "raw", raw.String(), "verdict", verdict.String())

	c.connMu.Lock()
	changed := !c.verdictSet || c.lastVerdict != verdict
	if changed {
		c.lastVerdict = verdict
		c.verdictSet = true
		c.bus.Publish(TopicReachability, ReachabilityEvent{State: verdict, Raw: raw, At: time.Now()})
	}
	c.connMu.Unlock()

	if changed {
		c.logger.Info("reachability changed", "state", verdict.String(), "raw", raw.String())
	}
}

// HandleQuality clamps one signal-quality sample into [0,100] and runs it
// through the hysteresis tracker. The mutex spans observe and publish so
// emission order matches transition order.
func (c *Coordinator) HandleQuality(quality int) {
	if !c.enter() {
		return
	}
	defer c.leave()

	clamped := netstate.ClampQuality(quality)
	if clamped != quality {
		c.logger.Warn("signal quality outside 0-100, clamped", "raw", quality, "clamped", clamped)
	}

	c.signalMu.Lock()
	verdict, changed := c.tracker.Observe(clamped)
	if changed {
		c.bus.Publish(TopicSignal, SignalEvent{
			Weak:    verdict.Weak,
			Quality: verdict.Quality,
			RSSI:    verdict.RSSI,
			At:      time.Now(),
		})
	}
	c.signalMu.Unlock()

	if changed {
		c.logger.Info("signal state changed",
			"weak", verdict.Weak, "quality", verdict.Quality, "rssi_dbm", verdict.RSSI)
	}
}

// HandleLink republishes a raw association change. A disconnect resets the
// tracker so the next association re-derives its initial state instead of
// edge-triggering against the previous one.
func (c *Coordinator) HandleLink(change LinkChange) {
	if !c.enter() {
		return
	}
	defer c.leave()

	c.logger.Info("wireless link changed", "connected", change.Connected, "interface", change.Interface)
	if !change.Connected {
		c.signalMu.Lock()
		c.tracker.Reset()
		c.signalMu.Unlock()
	}
	c.bus.Publish(TopicLink, LinkEvent{Connected: change.Connected, Interface: change.Interface, At: time.Now()})
}

// enter admits a callback while running. The WaitGroup add happens under
// the read lock, so Stop's phase flip (write lock) strictly orders against
// it: once Stop holds the lock, no further callbacks can be admitted.
func (c *Coordinator) enter() bool {
	c.mu.RLock()
	running := c.phase == PhaseRunning
	if running {
		c.inflight.Add(1)
	}
	c.mu.RUnlock()

	return running
}

// leave closes out an admitted callback. Panics are contained here: an
// error inside a handler turns into a dropped event, never into a crash of
// the source's delivery goroutine.
func (c *Coordinator) leave() {
	if r := recover(); r != nil {
		c.logger.Error("monitor handler panicked, event dropped", "panic", r)
	}
	c.inflight.Done()
}

func (c *Coordinator) reportSourceFailure(source string, err error) {
	c.mu.Lock()
	c.degraded = append(c.degraded, source)
	c.mu.Unlock()

	c.logger.Warn("notification source registration failed", "source", source, "error", err)
	c.bus.Publish(TopicSourceHealth, SourceHealthEvent{Source: source, Err: err.Error(), At: time.Now()})
}

// Snapshot returns the cached verdicts.
func (c *Coordinator) Snapshot() StateSnapshot {
	var snap StateSnapshot
	c.connMu.Lock()
	snap.Reachable = c.lastVerdict
	snap.ReachableSet = c.verdictSet
	c.connMu.Unlock()

	c.signalMu.Lock()
	snap.SignalWeak = c.tracker.Weak()
	snap.LastQuality = c.tracker.LastQuality()
	c.signalMu.Unlock()

	return snap
}

// Degraded lists sources that failed registration at Start.
func (c *Coordinator) Degraded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.degraded...)
}

func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.phase
}
