package httpprobe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

const (
	defaultProbeURL = "http://connectivitycheck.gstatic.com/generate_204"
	defaultInterval = 10 * time.Second
	defaultTimeout  = 5 * time.Second
	probeUserAgent  = "netstatus-probe/1"
)

// Source synthesizes a connectivity bitmask by probing one well-known HTTP
// endpoint over tcp4 and tcp6 separately, falling back to local interface
// inspection for the families whose probe failed. Masks are delivered to
// the registered handler only when they differ from the previous delivery.
type Source struct {
	logger   *slog.Logger
	url      string
	interval time.Duration
	timeout  time.Duration

	clientV4 *http.Client
	clientV6 *http.Client

	// interfaces lists the host's network interfaces; swapped in tests.
	interfaces func() ([]ifaceInfo, error)

	mu      sync.Mutex
	handler monitor.ConnectivityHandler
	last    netstate.Connectivity
	lastSet bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type ifaceInfo struct {
	up       bool
	loopback bool
	addrs    []net.Addr
}

func New(logger *slog.Logger, url string, interval, timeout time.Duration) *Source {
	if logger == nil {
		logger = slog.Default().With("component", "httpprobe")
	}
	if url == "" {
		url = defaultProbeURL
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Source{
		logger:     logger,
		url:        url,
		interval:   interval,
		timeout:    timeout,
		clientV4:   newFamilyClient("tcp4", timeout),
		clientV6:   newFamilyClient("tcp6", timeout),
		interfaces: listInterfaces,
	}
}

func (s *Source) Name() string {
	return "http-probe"
}

// Register starts the probe loop. The first delivery happens after one
// interval; callers that need an immediate reading use Current.
func (s *Source) Register(h monitor.ConnectivityHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return errors.New("connectivity handler already registered")
	}
	s.handler = h

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	return nil
}

// Unregister stops the loop and waits for an in-flight handler call to
// return, so no delivery happens after it.
func (s *Source) Unregister() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.handler = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Current runs one synchronous probe round. The result also primes the
// push-on-change comparison, so the loop will not re-deliver an identical
// mask right after startup.
func (s *Source) Current(ctx context.Context) (netstate.Connectivity, error) {
	mask := s.observe(ctx)
	s.mu.Lock()
	s.last = mask
	s.lastSet = true
	s.mu.Unlock()

	return mask, nil
}

func (s *Source) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probeAndDeliver(ctx)
		}
	}
}

func (s *Source) probeAndDeliver(ctx context.Context) {
	mask := s.observe(ctx)

	s.mu.Lock()
	changed := !s.lastSet || mask != s.last
	s.last = mask
	s.lastSet = true
	handler := s.handler
	s.mu.Unlock()

	if !changed || handler == nil {
		return
	}
	s.logger.Debug("connectivity mask changed", "mask", mask.String())
	handler.HandleConnectivity(mask)
}

func (s *Source) observe(ctx context.Context) netstate.Connectivity {
	v4OK := s.probeFamily(ctx, "tcp4", s.clientV4)
	v6OK := s.probeFamily(ctx, "tcp6", s.clientV6)

	presence := s.scanInterfaces()

	mask := deriveFamilyFlags(familyIPv4, v4OK, presence.v4)
	mask |= deriveFamilyFlags(familyIPv6, v6OK, presence.v6)

	return mask
}

func (s *Source) probeFamily(ctx context.Context, network string, client *http.Client) bool {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.url, nil)
	if err != nil {
		s.logger.Warn("build probe request failed", "url", s.url, "error", err)

		return false
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Debug("probe failed", "network", network, "error", err)

		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		s.logger.Debug("probe rejected", "network", network, "status", resp.StatusCode)
	}

	return ok
}

type familyPresence struct {
	unicast   bool
	linkLocal bool
}

type hostPresence struct {
	v4 familyPresence
	v6 familyPresence
}

func (s *Source) scanInterfaces() hostPresence {
	var presence hostPresence
	entries, err := s.interfaces()
	if err != nil {
		s.logger.Debug("interface scan failed", "error", err)

		return presence
	}

	for _, entry := range entries {
		if !entry.up || entry.loopback {
			continue
		}
		for _, addr := range entry.addrs {
			ip := ipFromAddr(addr)
			if ip == nil {
				continue
			}
			family := &presence.v6
			if ip.To4() != nil {
				family = &presence.v4
			}
			switch {
			case ip.IsLinkLocalUnicast():
				family.linkLocal = true
			case ip.IsGlobalUnicast():
				family.unicast = true
			}
		}
	}

	return presence
}

type family int

const (
	familyIPv4 family = iota
	familyIPv6
)

// deriveFamilyFlags reduces one probe round for a single address family to
// connectivity bits: a successful probe is internet-level; otherwise a
// routable unicast address counts as local network and a link-local-only
// interface as subnet.
func deriveFamilyFlags(f family, probeOK bool, presence familyPresence) netstate.Connectivity {
	internet := netstate.ConnectivityIPv4Internet
	localNet := netstate.ConnectivityIPv4LocalNetwork
	subnet := netstate.ConnectivityIPv4Subnet
	if f == familyIPv6 {
		internet = netstate.ConnectivityIPv6Internet
		localNet = netstate.ConnectivityIPv6LocalNetwork
		subnet = netstate.ConnectivityIPv6Subnet
	}

	switch {
	case probeOK:
		return internet
	case presence.unicast:
		return localNet
	case presence.linkLocal:
		return subnet
	default:
		return netstate.ConnectivityDisconnected
	}
}

func ipFromAddr(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPNet:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}

func listInterfaces() ([]ifaceInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	entries := make([]ifaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		entries = append(entries, ifaceInfo{
			up:       iface.Flags&net.FlagUp != 0,
			loopback: iface.Flags&net.FlagLoopback != 0,
			addrs:    addrs,
		})
	}

	return entries, nil
}

// newFamilyClient builds an HTTP client whose dials are pinned to one
// address family. Keep-alives are off: a cached connection would keep a
// probe green after the path is gone. Redirects are not followed, so a
// captive portal's redirect counts as failure.
func newFamilyClient(network string, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
