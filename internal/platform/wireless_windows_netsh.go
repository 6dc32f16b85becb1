package platform

import (
	"strconv"
	"strings"

	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

type netshInterface struct {
	name    string
	state   string
	ssid    string
	signal  int
	hasSig  bool
	started bool
}

// parseNetshInterfaces reads `netsh wlan show interfaces` output. Blocks
// are key : value lines starting with a Name line per adapter. Only the
// english field names are recognized; localized Windows installs fall back
// to the disconnected default.
func parseNetshInterfaces(raw, iface string) (WirelessStatus, bool) {
	var (
		blocks  []netshInterface
		current netshInterface
	)
	flush := func() {
		if current.started {
			blocks = append(blocks, current)
		}
		current = netshInterface{}
	}

	for _, line := range strings.Split(raw, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "name":
			flush()
			current.started = true
			current.name = value
		case "state":
			current.state = strings.ToLower(value)
		case "ssid":
			current.ssid = value
		case "signal":
			if percent, err := strconv.Atoi(strings.TrimSuffix(value, "%")); err == nil {
				current.signal = percent
				current.hasSig = true
			}
		}
	}
	flush()

	if len(blocks) == 0 {
		return WirelessStatus{}, false
	}

	chosen := blocks[0]
	for _, b := range blocks {
		if iface != "" {
			if b.name == iface {
				chosen = b

				break
			}

			continue
		}
		if b.state == "connected" {
			chosen = b

			break
		}
	}
	if iface != "" && chosen.name != iface {
		return WirelessStatus{}, false
	}

	status := WirelessStatus{
		Connected: chosen.state == "connected",
		Interface: chosen.name,
		SSID:      chosen.ssid,
	}
	if status.Connected && chosen.hasSig {
		status.Quality = netstate.ClampQuality(chosen.signal)
	}

	return status, true
}
