package monitor

import (
	"context"

	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

// ConnectivityHandler receives raw connectivity masks pushed by a source.
type ConnectivityHandler interface {
	HandleConnectivity(raw netstate.Connectivity)
}

// LinkChange is a raw association transition reported by a wireless source.
type LinkChange struct {
	Connected bool
	Interface string
}

// WirelessHandler receives raw wireless events. Calls arrive on the
// source's own goroutine; implementations must be safe for that.
type WirelessHandler interface {
	HandleQuality(quality int)
	HandleLink(change LinkChange)
}

// WirelessSample is a synchronous snapshot of the tracked adapter. Quality
// is meaningful only when Connected.
type WirelessSample struct {
	Quality   int
	Connected bool
	Interface string
}

// ConnectivitySource feeds machine-wide connectivity masks: a synchronous
// query for the current value plus push delivery on change. A source must
// not call its handler after Unregister returns, and must tolerate
// Unregister without a prior successful Register.
type ConnectivitySource interface {
	Name() string
	Current(ctx context.Context) (netstate.Connectivity, error)
	Register(h ConnectivityHandler) error
	Unregister()
}

// WirelessSource feeds signal-quality samples and association changes for
// one wireless adapter, under the same register/unregister contract.
type WirelessSource interface {
	Name() string
	Current(ctx context.Context) (WirelessSample, error)
	Register(h WirelessHandler) error
	Unregister()
}
