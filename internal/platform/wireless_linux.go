//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

// procNetWirelessPath is a var so tests can point the reader at a fixture.
var procNetWirelessPath = "/proc/net/wireless"

func readWirelessStatus(ctx context.Context, iface string) (WirelessStatus, error) {
	// #nosec G304 -- fixed /proc path, overridden only by tests.
	raw, procErr := os.ReadFile(procNetWirelessPath)
	if procErr == nil {
		if row, ok := parseProcWireless(string(raw), iface); ok {
			status := WirelessStatus{
				Connected: row.link > 0,
				Interface: row.name,
				Quality:   qualityFromProcLink(row.link),
			}
			// SSID is not in /proc; best effort via iw, never fatal.
			if status.Connected {
				if out, err := wirelessCommandOutput(ctx, "iw", "dev", row.name, "link"); err == nil {
					if link, ok := parseIwLink(string(out)); ok && link.connected {
						status.SSID = link.ssid
					}
				}
			}

			return status, nil
		}
	}

	name := iface
	if name == "" {
		out, err := wirelessCommandOutput(ctx, "iw", "dev")
		if err != nil {
			return WirelessStatus{}, fmt.Errorf("discover wireless interfaces: %w", err)
		}
		names := parseIwInterfaces(string(out))
		if len(names) == 0 {
			return WirelessStatus{}, errors.New("no wireless interface found")
		}
		name = names[0]
	}

	out, err := wirelessCommandOutput(ctx, "iw", "dev", name, "link")
	if err != nil {
		return WirelessStatus{}, fmt.Errorf("query wireless link %s: %w", name, err)
	}
	link, ok := parseIwLink(string(out))
	if !ok {
		return WirelessStatus{}, fmt.Errorf("unrecognized iw link output for %s", name)
	}

	status := WirelessStatus{Connected: link.connected, Interface: name, SSID: link.ssid}
	if link.connected {
		status.Quality = netstate.QualityFromRSSI(link.signalDBm)
	}

	return status, nil
}
