package mqttpub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/SkyLord2/perception-network-status/internal/config"
	"github.com/SkyLord2/perception-network-status/internal/monitor"
)

const (
	connectWait          = 5 * time.Second
	publishWait          = 2 * time.Second
	connectRetryInterval = 5 * time.Second
	maxReconnectInterval = time.Minute
	publishQoS           = 1
)

// Publisher mirrors verdict and link events to an MQTT broker. With the
// feature disabled every method is a no-op, so callers never branch on the
// config themselves.
type Publisher struct {
	logger *slog.Logger
	cfg    config.MQTTConfig
	client mqtt.Client

	// newClient is swapped in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func New(logger *slog.Logger, cfg config.MQTTConfig) *Publisher {
	if logger == nil {
		logger = slog.Default().With("component", "mqtt")
	}

	return &Publisher{
		logger:    logger,
		cfg:       cfg,
		newClient: mqtt.NewClient,
	}
}

func (p *Publisher) Enabled() bool {
	return p.cfg.Enabled
}

// Connect dials the broker in the background. Paho keeps retrying and
// reconnecting on its own; a broker that is down at startup only delays
// delivery, it never fails the agent.
func (p *Publisher) Connect() error {
	if !p.cfg.Enabled {
		p.logger.Debug("mqtt publisher disabled")

		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.cfg.Broker, p.cfg.Port))
	opts.SetClientID(p.clientID())
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.logger.Info("mqtt connected", "broker", p.cfg.Broker, "port", p.cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = p.newClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		p.logger.Warn("mqtt connect still pending, continuing in background", "broker", p.cfg.Broker)

		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	return nil
}

func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("mqtt disconnected")
	}
}

type reachabilityMessage struct {
	State   string    `json:"state"`
	RawMask uint32    `json:"raw_mask"`
	At      time.Time `json:"at"`
}

type signalMessage struct {
	Weak    bool      `json:"weak"`
	Quality int       `json:"quality"`
	RSSIDBm int       `json:"rssi_dbm"`
	At      time.Time `json:"at"`
}

type linkMessage struct {
	Connected bool      `json:"connected"`
	Interface string    `json:"interface"`
	At        time.Time `json:"at"`
}

func (p *Publisher) PublishReachability(event monitor.ReachabilityEvent) {
	p.publishJSON("reachability", reachabilityMessage{
		State:   event.State.String(),
		RawMask: uint32(event.Raw),
		At:      event.At,
	})
}

func (p *Publisher) PublishSignal(event monitor.SignalEvent) {
	p.publishJSON("signal", signalMessage{
		Weak:    event.Weak,
		Quality: event.Quality,
		RSSIDBm: event.RSSI,
		At:      event.At,
	})
}

func (p *Publisher) PublishLink(event monitor.LinkEvent) {
	p.publishJSON("link", linkMessage{
		Connected: event.Connected,
		Interface: event.Interface,
		At:        event.At,
	})
}

func (p *Publisher) publishJSON(subtopic string, payload any) {
	if !p.cfg.Enabled || p.client == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshal mqtt payload", "topic", subtopic, "error", err)

		return
	}

	topic := p.cfg.TopicPrefix + "/" + subtopic
	token := p.client.Publish(topic, publishQoS, p.cfg.Retain, data)
	if !token.WaitTimeout(publishWait) {
		p.logger.Debug("mqtt publish pending", "topic", topic)

		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)

		return
	}
	p.logger.Debug("mqtt published", "topic", topic, "bytes", len(data))
}

func (p *Publisher) clientID() string {
	if p.cfg.ClientID != "" {
		return p.cfg.ClientID
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "netstatus"
	}

	return "netstatus-" + hostname
}
