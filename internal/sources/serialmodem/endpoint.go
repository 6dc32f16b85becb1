package serialmodem

import (
	"fmt"
	"net/url"
	"strconv"
)

const defaultBaudRate = 115200

type endpointKind int

const (
	endpointSerial endpointKind = iota
	endpointTCP
)

// endpoint is a parsed modem location: either a local serial device
// (serial:///dev/ttyUSB0?baud=115200, serial://COM3) or a ser2net style
// TCP bridge (tcp://host:port).
type endpoint struct {
	kind    endpointKind
	device  string
	baud    int
	address string
}

func parseEndpoint(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("parse modem endpoint %q: %w", raw, err)
	}

	switch u.Scheme {
	case "serial":
		device := u.Path
		if device == "" {
			device = u.Host
		}
		if device == "" {
			device = u.Opaque
		}
		if device == "" {
			return endpoint{}, fmt.Errorf("modem endpoint %q names no device", raw)
		}
		baud := defaultBaudRate
		if rawBaud := u.Query().Get("baud"); rawBaud != "" {
			baud, err = strconv.Atoi(rawBaud)
			if err != nil || baud <= 0 {
				return endpoint{}, fmt.Errorf("modem endpoint %q has invalid baud rate %q", raw, rawBaud)
			}
		}

		return endpoint{kind: endpointSerial, device: device, baud: baud}, nil
	case "tcp":
		if u.Hostname() == "" || u.Port() == "" {
			return endpoint{}, fmt.Errorf("modem endpoint %q needs host:port", raw)
		}

		return endpoint{kind: endpointTCP, address: u.Host}, nil
	default:
		return endpoint{}, fmt.Errorf("unsupported modem endpoint scheme %q", u.Scheme)
	}
}

// label identifies the modem in logs and link events.
func (e endpoint) label() string {
	if e.kind == endpointSerial {
		return e.device
	}

	return e.address
}
