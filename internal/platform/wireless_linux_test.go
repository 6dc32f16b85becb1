//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func stubWirelessCommands(t *testing.T, outputs map[string]string) {
	t.Helper()
	orig := wirelessCommandOutput
	t.Cleanup(func() { wirelessCommandOutput = orig })
	wirelessCommandOutput = func(_ context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		out, ok := outputs[key]
		if !ok {
			return nil, fmt.Errorf("unexpected command %q", key)
		}

		return []byte(out), nil
	}
}

func stubProcWireless(t *testing.T, content string, present bool) {
	t.Helper()
	orig := procNetWirelessPath
	t.Cleanup(func() { procNetWirelessPath = orig })
	if !present {
		procNetWirelessPath = filepath.Join(t.TempDir(), "absent")

		return
	}
	path := filepath.Join(t.TempDir(), "wireless")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write proc fixture: %v", err)
	}
	procNetWirelessPath = path
}

func TestReadWirelessStatusFromProc(t *testing.T) {
	stubProcWireless(t, procWirelessFixture, true)
	stubWirelessCommands(t, map[string]string{
		"iw dev wlan0 link": iwLinkConnectedFixture,
	})

	status, err := readWirelessStatus(context.Background(), "")
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !status.Connected || status.Interface != "wlan0" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Quality != qualityFromProcLink(54) {
		t.Fatalf("expected proc-derived quality, got %d", status.Quality)
	}
	if status.SSID != "HomeNet-5G" {
		t.Fatalf("expected ssid enrichment from iw, got %q", status.SSID)
	}
}

func TestReadWirelessStatusProcZeroLinkMeansDisconnected(t *testing.T) {
	stubProcWireless(t, procWirelessFixture, true)
	stubWirelessCommands(t, nil)

	status, err := readWirelessStatus(context.Background(), "wlan1")
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Connected || status.Quality != 0 {
		t.Fatalf("expected disconnected zero-quality status, got %+v", status)
	}
}

func TestReadWirelessStatusFallsBackToIw(t *testing.T) {
	stubProcWireless(t, "", false)
	stubWirelessCommands(t, map[string]string{
		"iw dev":            "phy#0\n\tInterface wlan0\n\t\tifindex 3\n",
		"iw dev wlan0 link": iwLinkConnectedFixture,
	})

	status, err := readWirelessStatus(context.Background(), "")
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !status.Connected || status.Interface != "wlan0" || status.SSID != "HomeNet-5G" {
		t.Fatalf("unexpected status: %+v", status)
	}
	// -52 dBm maps near the top of the scale.
	if status.Quality != 96 {
		t.Fatalf("expected rssi-derived quality 96, got %d", status.Quality)
	}
}

func TestReadWirelessStatusNoInterface(t *testing.T) {
	stubProcWireless(t, "", false)
	stubWirelessCommands(t, map[string]string{"iw dev": "phy#0\n"})

	if _, err := readWirelessStatus(context.Background(), ""); err == nil {
		t.Fatalf("expected error when no wireless interface exists")
	}
}

func TestReadWirelessStatusCommandFailure(t *testing.T) {
	stubProcWireless(t, "", false)
	orig := wirelessCommandOutput
	t.Cleanup(func() { wirelessCommandOutput = orig })
	wirelessCommandOutput = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("iw missing")
	}

	if _, err := readWirelessStatus(context.Background(), "wlan0"); err == nil {
		t.Fatalf("expected error when iw is unavailable")
	}
}
