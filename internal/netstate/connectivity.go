package netstate

import (
	"fmt"
	"strings"
)

// Connectivity is a raw machine-wide connectivity bitmask as delivered by a
// connectivity source. Flag values follow the conventional network list
// manager encoding, so native masks pass through unchanged.
type Connectivity uint32

const (
	ConnectivityDisconnected Connectivity = 0x0

	ConnectivityIPv4NoTraffic    Connectivity = 0x1
	ConnectivityIPv6NoTraffic    Connectivity = 0x2
	ConnectivityIPv4Subnet       Connectivity = 0x10
	ConnectivityIPv4LocalNetwork Connectivity = 0x20
	ConnectivityIPv4Internet     Connectivity = 0x40
	ConnectivityIPv6Subnet       Connectivity = 0x100
	ConnectivityIPv6LocalNetwork Connectivity = 0x200
	ConnectivityIPv6Internet     Connectivity = 0x400
)

// Reachability is the binary internet-reachability verdict derived from a
// connectivity mask.
type Reachability int

const (
	Unreachable Reachability = iota
	Reachable
)

func (r Reachability) String() string {
	if r == Reachable {
		return "reachable"
	}

	return "unreachable"
}

// ClassifyConnectivity reduces a raw connectivity mask to a reachability
// verdict. Only the two internet-level bits count: subnet or local-network
// connectivity is not usable internet access and classifies as Unreachable,
// as does any unrecognized bit pattern.
func ClassifyConnectivity(raw Connectivity) Reachability {
	if raw.Has(ConnectivityIPv4Internet) || raw.Has(ConnectivityIPv6Internet) {
		return Reachable
	}

	return Unreachable
}

// Has reports whether every bit of flag is set. A zero flag matches nothing;
// use IsDisconnected for the empty mask.
func (c Connectivity) Has(flag Connectivity) bool {
	return flag != 0 && c&flag == flag
}

func (c Connectivity) IsDisconnected() bool {
	return c == ConnectivityDisconnected
}

// String renders the set flags for diagnostics.
func (c Connectivity) String() string {
	if c.IsDisconnected() {
		return "disconnected"
	}

	parts := make([]string, 0, len(connectivityFlagNames))
	for _, item := range connectivityFlagNames {
		if c.Has(item.flag) {
			parts = append(parts, item.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("unknown(0x%x)", uint32(c))
	}

	return strings.Join(parts, "|")
}

var connectivityFlagNames = []struct {
	flag Connectivity
	name string
}{
	{ConnectivityIPv4NoTraffic, "ipv4-no-traffic"},
	{ConnectivityIPv4Subnet, "ipv4-subnet"},
	{ConnectivityIPv4LocalNetwork, "ipv4-local-network"},
	{ConnectivityIPv4Internet, "ipv4-internet"},
	{ConnectivityIPv6NoTraffic, "ipv6-no-traffic"},
	{ConnectivityIPv6Subnet, "ipv6-subnet"},
	{ConnectivityIPv6LocalNetwork, "ipv6-local-network"},
	{ConnectivityIPv6Internet, "ipv6-internet"},
}
