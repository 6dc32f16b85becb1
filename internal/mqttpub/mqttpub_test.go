package mqttpub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/SkyLord2/perception-network-status/internal/config"
	"github.com/SkyLord2/perception-network-status/internal/monitor"
	"github.com/SkyLord2/perception-network-status/internal/netstate"
)

type immediateToken struct{}

func (immediateToken) Wait() bool                     { return true }
func (immediateToken) WaitTimeout(time.Duration) bool { return true }
func (immediateToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}
func (immediateToken) Error() error { return nil }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTTClient struct {
	mqtt.Client

	mu        sync.Mutex
	connected bool
	published []publishedMessage
}

func (c *fakeMQTTClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return immediateToken{}
}

func (c *fakeMQTTClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeMQTTClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	c.published = append(c.published, publishedMessage{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  append([]byte(nil), payload.([]byte)...),
	})
	c.mu.Unlock()

	return immediateToken{}
}

func (c *fakeMQTTClient) messages() []publishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]publishedMessage(nil), c.published...)
}

func enabledConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled:     true,
		Broker:      "broker.local",
		Port:        1883,
		TopicPrefix: "network-status",
		Retain:      true,
	}
}

func newTestPublisher(t *testing.T, cfg config.MQTTConfig) (*Publisher, *fakeMQTTClient, **mqtt.ClientOptions) {
	t.Helper()

	client := &fakeMQTTClient{}
	var capturedOpts *mqtt.ClientOptions
	pub := New(slog.Default(), cfg)
	pub.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		capturedOpts = opts

		return client
	}

	return pub, client, &capturedOpts
}

func TestDisabledPublisherIsNoOp(t *testing.T) {
	pub, client, opts := newTestPublisher(t, config.MQTTConfig{Enabled: false})

	if err := pub.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	pub.PublishReachability(monitor.ReachabilityEvent{State: netstate.Reachable})
	pub.PublishSignal(monitor.SignalEvent{Weak: true})
	pub.PublishLink(monitor.LinkEvent{Connected: false})
	pub.Close()

	if *opts != nil {
		t.Fatal("disabled publisher must not build a client")
	}
	if len(client.messages()) != 0 {
		t.Fatalf("disabled publisher published %d messages", len(client.messages()))
	}
}

func TestConnectBuildsBrokerOptions(t *testing.T) {
	cfg := enabledConfig()
	cfg.Username = "agent"
	cfg.Password = "secret"
	pub, _, opts := newTestPublisher(t, cfg)

	if err := pub.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	captured := *opts
	if captured == nil {
		t.Fatal("client options never built")
	}
	if len(captured.Servers) != 1 || captured.Servers[0].String() != "tcp://broker.local:1883" {
		t.Fatalf("servers = %v", captured.Servers)
	}
	if captured.Username != "agent" || captured.Password != "secret" {
		t.Fatal("credentials not applied")
	}
	if !captured.AutoReconnect || !captured.ConnectRetry {
		t.Fatal("reconnect options not applied")
	}
	if captured.ClientID == "" {
		t.Fatal("ClientID is empty")
	}
}

func TestClientIDFallsBackToHostname(t *testing.T) {
	pub, _, _ := newTestPublisher(t, enabledConfig())
	if id := pub.clientID(); id == "" || id == "netstatus-" {
		t.Fatalf("clientID = %q", id)
	}

	cfg := enabledConfig()
	cfg.ClientID = "custom"
	pub, _, _ = newTestPublisher(t, cfg)
	if id := pub.clientID(); id != "custom" {
		t.Fatalf("clientID = %q, want custom", id)
	}
}

func TestPublishReachability(t *testing.T) {
	pub, client, _ := newTestPublisher(t, enabledConfig())
	if err := pub.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	pub.PublishReachability(monitor.ReachabilityEvent{
		State: netstate.Reachable,
		Raw:   netstate.ConnectivityIPv4Internet,
		At:    at,
	})

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages", len(msgs))
	}
	msg := msgs[0]
	if msg.topic != "network-status/reachability" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != publishQoS || !msg.retained {
		t.Errorf("qos = %d retained = %v", msg.qos, msg.retained)
	}

	var decoded reachabilityMessage
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.State != "reachable" {
		t.Errorf("state = %q", decoded.State)
	}
	if decoded.RawMask != uint32(netstate.ConnectivityIPv4Internet) {
		t.Errorf("raw mask = %d", decoded.RawMask)
	}
	if !decoded.At.Equal(at) {
		t.Errorf("at = %v, want %v", decoded.At, at)
	}
}

func TestPublishSignalAndLinkTopics(t *testing.T) {
	pub, client, _ := newTestPublisher(t, enabledConfig())
	if err := pub.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	pub.PublishSignal(monitor.SignalEvent{Weak: true, Quality: 32, RSSI: -84})
	pub.PublishLink(monitor.LinkEvent{Connected: false, Interface: "wlan0"})

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages", len(msgs))
	}
	if msgs[0].topic != "network-status/signal" {
		t.Errorf("signal topic = %q", msgs[0].topic)
	}
	if msgs[1].topic != "network-status/link" {
		t.Errorf("link topic = %q", msgs[1].topic)
	}

	var signal signalMessage
	if err := json.Unmarshal(msgs[0].payload, &signal); err != nil {
		t.Fatalf("unmarshal signal: %v", err)
	}
	if !signal.Weak || signal.Quality != 32 || signal.RSSIDBm != -84 {
		t.Fatalf("signal payload = %+v", signal)
	}

	var link linkMessage
	if err := json.Unmarshal(msgs[1].payload, &link); err != nil {
		t.Fatalf("unmarshal link: %v", err)
	}
	if link.Connected || link.Interface != "wlan0" {
		t.Fatalf("link payload = %+v", link)
	}
}

func TestCloseDisconnects(t *testing.T) {
	pub, client, _ := newTestPublisher(t, enabledConfig())
	if err := pub.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected connected client")
	}

	pub.Close()
	if client.IsConnected() {
		t.Fatal("Close did not disconnect")
	}
}
