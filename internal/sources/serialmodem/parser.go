package serialmodem

import (
	"strconv"
	"strings"
)

type reportKind int

const (
	reportNone reportKind = iota
	reportSignal
	reportCarrierLost
)

// report is one recognized unsolicited modem line. system carries the
// ^HCSQ radio system label when present, for logging only.
type report struct {
	kind    reportKind
	rssiDBm int
	system  string
}

// parseReportLine recognizes the unsolicited result codes the monitor
// cares about and discards everything else (echoes, OK, RING, vendor
// chatter).
func parseReportLine(line string) report {
	line = strings.TrimSpace(line)

	switch {
	case line == "NO CARRIER":
		return report{kind: reportCarrierLost}
	case strings.HasPrefix(line, "^RSSI:"):
		return signalFromCSQ(strings.TrimPrefix(line, "^RSSI:"))
	case strings.HasPrefix(line, "+CSQ:"):
		value, _, _ := strings.Cut(strings.TrimPrefix(line, "+CSQ:"), ",")

		return signalFromCSQ(value)
	case strings.HasPrefix(line, "^HCSQ:"):
		fields := strings.Split(strings.TrimPrefix(line, "^HCSQ:"), ",")
		if len(fields) < 2 {
			return report{}
		}
		system := strings.Trim(strings.TrimSpace(fields[0]), `"`)
		n, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return report{}
		}
		dbm, ok := rssiFromHCSQ(n)
		if !ok {
			return report{}
		}

		return report{kind: reportSignal, rssiDBm: dbm, system: system}
	default:
		return report{}
	}
}

func signalFromCSQ(value string) report {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return report{}
	}
	dbm, ok := rssiFromCSQ(n)
	if !ok {
		return report{}
	}

	return report{kind: reportSignal, rssiDBm: dbm}
}

// rssiFromCSQ maps the 3GPP +CSQ scale to dBm. 99 and 255 mean unknown.
func rssiFromCSQ(n int) (int, bool) {
	if n < 0 || n > 31 {
		return 0, false
	}

	return -113 + 2*n, true
}

// rssiFromHCSQ maps the Huawei ^HCSQ rssi field to dBm. 255 means unknown
// and anything past 96 is reserved.
func rssiFromHCSQ(n int) (int, bool) {
	if n < 0 || n > 96 {
		return 0, false
	}

	return -120 + n, true
}
