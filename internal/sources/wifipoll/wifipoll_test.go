package wifipoll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/platform"
)

type fakeAdapter struct {
	mu     sync.Mutex
	status platform.WirelessStatus
	err    error
}

func (f *fakeAdapter) set(status platform.WirelessStatus, err error) {
	f.mu.Lock()
	f.status = status
	f.err = err
	f.mu.Unlock()
}

func (f *fakeAdapter) read(_ context.Context, _ string) (platform.WirelessStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.status, f.err
}

type recordingHandler struct {
	qualities chan int
	links     chan monitor.LinkChange
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		qualities: make(chan int, 32),
		links:     make(chan monitor.LinkChange, 32),
	}
}

func (h *recordingHandler) HandleQuality(quality int) {
	h.qualities <- quality
}

func (h *recordingHandler) HandleLink(change monitor.LinkChange) {
	h.links <- change
}

func waitQuality(t *testing.T, h *recordingHandler) int {
	t.Helper()
	select {
	case q := <-h.qualities:
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quality push")

		return 0
	}
}

func waitLink(t *testing.T, h *recordingHandler) monitor.LinkChange {
	t.Helper()
	select {
	case change := <-h.links:
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for link change")

		return monitor.LinkChange{}
	}
}

func expectQuiet(t *testing.T, h *recordingHandler, d time.Duration) {
	t.Helper()
	select {
	case q := <-h.qualities:
		t.Fatalf("unexpected quality push %d", q)
	case change := <-h.links:
		t.Fatalf("unexpected link change %+v", change)
	case <-time.After(d):
	}
}

func newTestSource(t *testing.T, adapter *fakeAdapter) *Source {
	t.Helper()
	src := New(slog.Default(), "wlan0", 15*time.Millisecond)
	src.read = adapter.read
	t.Cleanup(src.Unregister)

	return src
}

func TestCurrentReturnsSample(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", SSID: "HomeNet", Quality: 70}, nil)
	src := newTestSource(t, adapter)

	sample, err := src.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !sample.Connected || sample.Quality != 70 || sample.Interface != "wlan0" {
		t.Fatalf("unexpected sample %+v", sample)
	}
}

func TestCurrentPropagatesError(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(platform.WirelessStatus{}, errors.New("no adapter"))
	src := newTestSource(t, adapter)

	if _, err := src.Current(context.Background()); err == nil {
		t.Fatal("expected error from Current")
	}
}

func TestPollPushesQualityOnChangeOnly(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 70}, nil)
	src := newTestSource(t, adapter)

	if _, err := src.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	handler := newRecordingHandler()
	if err := src.Register(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expectQuiet(t, handler, 100*time.Millisecond)

	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 55}, nil)
	if q := waitQuality(t, handler); q != 55 {
		t.Fatalf("quality = %d, want 55", q)
	}

	expectQuiet(t, handler, 100*time.Millisecond)
}

func TestPollPushesLinkFlips(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 70}, nil)
	src := newTestSource(t, adapter)

	if _, err := src.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	handler := newRecordingHandler()
	if err := src.Register(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	adapter.set(platform.WirelessStatus{Connected: false, Interface: "wlan0"}, nil)
	down := waitLink(t, handler)
	if down.Connected || down.Interface != "wlan0" {
		t.Fatalf("unexpected link change %+v", down)
	}

	// Reconnect at the very same quality: the pre-disconnect value must
	// not suppress the push.
	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 70}, nil)
	up := waitLink(t, handler)
	if !up.Connected {
		t.Fatalf("unexpected link change %+v", up)
	}
	if q := waitQuality(t, handler); q != 70 {
		t.Fatalf("quality after reconnect = %d, want 70", q)
	}
}

func TestPollSkipsReadErrors(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 70}, nil)
	src := newTestSource(t, adapter)

	if _, err := src.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	handler := newRecordingHandler()
	if err := src.Register(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	adapter.set(platform.WirelessStatus{}, errors.New("transient failure"))
	expectQuiet(t, handler, 100*time.Millisecond)

	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 60}, nil)
	if q := waitQuality(t, handler); q != 60 {
		t.Fatalf("quality = %d, want 60", q)
	}
	select {
	case change := <-handler.links:
		t.Fatalf("error round must not fabricate link change, got %+v", change)
	default:
	}
}

func TestUnregisterStopsDeliveries(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(platform.WirelessStatus{Connected: true, Interface: "wlan0", Quality: 70}, nil)
	src := newTestSource(t, adapter)

	if _, err := src.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	handler := newRecordingHandler()
	if err := src.Register(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := src.Register(handler); err == nil {
		t.Fatal("second Register must fail")
	}

	src.Unregister()
	src.Unregister()

	adapter.set(platform.WirelessStatus{Connected: false, Interface: "wlan0"}, nil)
	expectQuiet(t, handler, 100*time.Millisecond)

	if err := src.Register(handler); err != nil {
		t.Fatalf("Register after Unregister: %v", err)
	}
}

func TestLinkChangeFallsBackToConfiguredInterface(t *testing.T) {
	status := platform.WirelessStatus{Connected: false}
	if got := interfaceName(status, "wlan1"); got != "wlan1" {
		t.Fatalf("interfaceName = %q, want wlan1", got)
	}
	status.Interface = "wlp3s0"
	if got := interfaceName(status, "wlan1"); got != "wlp3s0" {
		t.Fatalf("interfaceName = %q, want wlp3s0", got)
	}
}
