package platform

import (
	"context"
	"errors"
	"os/exec"
)

// ErrWirelessUnsupported indicates the current platform has no wireless
// status backend implementation.
var ErrWirelessUnsupported = errors.New("wireless status unsupported")

// WirelessStatus is one observation of the wireless adapter.
type WirelessStatus struct {
	Connected bool
	Interface string
	SSID      string
	Quality   int // 0..100
}

// ReadWirelessStatus queries the OS for the current wireless association
// and signal quality. iface selects an adapter; empty means the first one
// the OS reports.
func ReadWirelessStatus(ctx context.Context, iface string) (WirelessStatus, error) {
	return readWirelessStatus(ctx, iface)
}

// wirelessCommandOutput runs an OS query command. A var so tests swap in
// canned output instead of exec.
var wirelessCommandOutput = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- command names are fixed literals, only the interface name varies.
	return exec.CommandContext(ctx, name, args...).Output()
}
