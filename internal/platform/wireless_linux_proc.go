package platform

import (
	"strconv"
	"strings"
)

// Parsers for the linux wireless backends. Untagged so the parsing logic
// stays testable on every OS; only the reader behind the build tag execs.

type procWirelessRow struct {
	name string
	link int
}

// parseProcWireless extracts the row for iface (or the first row when iface
// is empty) from /proc/net/wireless content. The first two lines are
// headers; data lines look like
//
//	wlan0: 0000   54.  -56.  -256        0      0      0      0      0        0
func parseProcWireless(raw, iface string) (procWirelessRow, bool) {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if i < 2 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name := strings.TrimSuffix(fields[0], ":")
		if iface != "" && name != iface {
			continue
		}
		link, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}

		return procWirelessRow{name: name, link: int(link)}, true
	}

	return procWirelessRow{}, false
}

// qualityFromProcLink converts the kernel link-quality value (0..70 for
// cfg80211 drivers) to a percentage.
func qualityFromProcLink(link int) int {
	if link <= 0 {
		return 0
	}
	quality := (link*100 + 35) / 70
	if quality > 100 {
		quality = 100
	}

	return quality
}

type iwLink struct {
	connected bool
	ssid      string
	signalDBm int
}

// parseIwLink reads `iw dev <iface> link` output: either "Not connected."
// or a "Connected to ..." block with SSID and signal lines.
func parseIwLink(raw string) (iwLink, bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "Not connected") {
		return iwLink{connected: false}, true
	}
	if !strings.HasPrefix(trimmed, "Connected to") {
		return iwLink{}, false
	}

	link := iwLink{connected: true}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SSID:"):
			link.ssid = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "signal:"):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if dbm, err := strconv.Atoi(fields[1]); err == nil {
					link.signalDBm = dbm
				}
			}
		}
	}

	return link, true
}

// parseIwInterfaces reads `iw dev` output and returns the interface names.
func parseIwInterfaces(raw string) []string {
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "Interface" {
			names = append(names, fields[1])
		}
	}

	return names
}
