package main

import (
	"testing"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/config"
)

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{
		"-once", "-probe-url", "http://example.test/204",
		"-wireless", "modem", "-endpoint", "tcp://127.0.0.1:2217",
		"-listen-for", "30s",
	})
	if err != nil {
		t.Fatalf("parse options: %v", err)
	}
	if !opts.Once || opts.ProbeURL != "http://example.test/204" {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.Wireless != "modem" || opts.Endpoint != "tcp://127.0.0.1:2217" {
		t.Fatalf("unexpected wireless options: %+v", opts)
	}
	if opts.ListenFor != 30*time.Second {
		t.Fatalf("unexpected listen-for: %v", opts.ListenFor)
	}

	if _, err := parseOptions([]string{"positional"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.StatusAPI.Enabled = true

	got := applyOverrides(cfg, options{
		ProbeURL: "http://probe.test/204",
		Wireless: "WIFI",
		Verbose:  true,
	})
	if got.Monitor.Probe.URL != "http://probe.test/204" {
		t.Fatalf("probe url not applied: %q", got.Monitor.Probe.URL)
	}
	if got.Monitor.WirelessSource != config.WirelessSourceWifi {
		t.Fatalf("wireless source not normalized: %q", got.Monitor.WirelessSource)
	}
	if got.Logging.Level != "debug" {
		t.Fatalf("verbose flag not applied: %q", got.Logging.Level)
	}
	if got.StatusAPI.Enabled {
		t.Fatal("status api should be off unless requested by flag")
	}
}

func TestApplyOverridesEndpointImpliesModem(t *testing.T) {
	got := applyOverrides(config.Default(), options{Endpoint: "serial:///dev/ttyUSB0"})
	if got.Monitor.WirelessSource != config.WirelessSourceModem {
		t.Fatalf("expected modem source, got %q", got.Monitor.WirelessSource)
	}
	if got.Monitor.Modem.Endpoint != "serial:///dev/ttyUSB0" {
		t.Fatalf("endpoint not applied: %q", got.Monitor.Modem.Endpoint)
	}
}
