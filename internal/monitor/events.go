package monitor

import (
	"time"

	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

// ReachabilityEvent is the debounced internet-reachability verdict posted on
// TopicReachability. Raw carries the mask that produced it, for diagnostics.
type ReachabilityEvent struct {
	State netstate.Reachability
	Raw   netstate.Connectivity
	At    time.Time
}

// SignalEvent is an edge-triggered weak/strong signal verdict posted on
// TopicSignal.
type SignalEvent struct {
	Weak    bool
	Quality int
	RSSI    int
	At      time.Time
}

// LinkEvent is a raw wireless association change posted on TopicLink. Not a
// verdict: it is surfaced and logged, never classified.
type LinkEvent struct {
	Connected bool
	Interface string
	At        time.Time
}

// SourceHealthEvent reports a notification source that failed to register,
// leaving the coordinator running degraded.
type SourceHealthEvent struct {
	Source string
	Err    string
	At     time.Time
}
