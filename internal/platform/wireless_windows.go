//go:build windows

package platform

import (
	"context"
	"fmt"
)

func readWirelessStatus(ctx context.Context, iface string) (WirelessStatus, error) {
	out, err := wirelessCommandOutput(ctx, "netsh", "wlan", "show", "interfaces")
	if err != nil {
		return WirelessStatus{}, fmt.Errorf("query wlan interfaces: %w", err)
	}

	status, ok := parseNetshInterfaces(string(out), iface)
	if !ok {
		if iface != "" {
			return WirelessStatus{}, fmt.Errorf("wireless interface %q not found", iface)
		}

		return WirelessStatus{}, fmt.Errorf("no wireless interface found")
	}

	return status, nil
}
