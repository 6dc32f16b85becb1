package platform

import "testing"

const netshConnectedFixture = `
There is 1 interface on the system:

    Name                   : Wi-Fi
    Description            : Intel(R) Wi-Fi 6 AX201 160MHz
    GUID                   : 6a2edb2e-7f66-4bb2-a2b0-1c2f3d4e5f60
    Physical address       : aa:bb:cc:dd:ee:ff
    State                  : connected
    SSID                   : OfficeNet
    BSSID                  : 11:22:33:44:55:66
    Network type           : Infrastructure
    Radio type             : 802.11ax
    Authentication         : WPA2-Personal
    Cipher                 : CCMP
    Connection mode        : Auto Connect
    Channel                : 44
    Receive rate (Mbps)    : 573.5
    Transmit rate (Mbps)   : 573.5
    Signal                 : 86%
    Profile                : OfficeNet

    Hosted network status  : Not available
`

const netshDisconnectedFixture = `
There is 1 interface on the system:

    Name                   : Wi-Fi
    Description            : Intel(R) Wi-Fi 6 AX201 160MHz
    GUID                   : 6a2edb2e-7f66-4bb2-a2b0-1c2f3d4e5f60
    Physical address       : aa:bb:cc:dd:ee:ff
    State                  : disconnected
    Radio status           : Hardware On
                             Software On

    Hosted network status  : Not available
`

func TestParseNetshInterfacesConnected(t *testing.T) {
	status, ok := parseNetshInterfaces(netshConnectedFixture, "")
	if !ok {
		t.Fatalf("expected fixture to parse")
	}
	if !status.Connected {
		t.Fatalf("expected connected state, got %+v", status)
	}
	if status.Interface != "Wi-Fi" || status.SSID != "OfficeNet" || status.Quality != 86 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestParseNetshInterfacesDisconnected(t *testing.T) {
	status, ok := parseNetshInterfaces(netshDisconnectedFixture, "")
	if !ok {
		t.Fatalf("expected fixture to parse")
	}
	if status.Connected {
		t.Fatalf("expected disconnected state, got %+v", status)
	}
	if status.Quality != 0 {
		t.Fatalf("expected zero quality when disconnected, got %d", status.Quality)
	}
}

func TestParseNetshInterfacesSelectsRequestedAdapter(t *testing.T) {
	raw := netshDisconnectedFixture + netshConnectedFixture
	// Duplicate names: the second block is the connected one.
	status, ok := parseNetshInterfaces(raw, "")
	if !ok || !status.Connected {
		t.Fatalf("expected the connected block to win, got %+v ok=%v", status, ok)
	}

	if _, ok := parseNetshInterfaces(netshConnectedFixture, "Ethernet"); ok {
		t.Fatalf("expected miss for unknown adapter name")
	}

	status, ok = parseNetshInterfaces(netshConnectedFixture, "Wi-Fi")
	if !ok || status.Interface != "Wi-Fi" {
		t.Fatalf("expected named adapter match, got %+v ok=%v", status, ok)
	}
}

func TestParseNetshInterfacesEmpty(t *testing.T) {
	if _, ok := parseNetshInterfaces("The Wireless AutoConfig Service (wlansvc) is not running.", ""); ok {
		t.Fatalf("expected failure when no interface block present")
	}
}
