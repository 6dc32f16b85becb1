package bus

import (
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

// subscriberBuffer is sized for a workload of seconds between events; a
// full buffer means the consumer is gone or wedged, and dropping is the
// documented behavior for that case.
const subscriberBuffer = 128

type Subscription chan any

// MessageBus hands classified events from producer goroutines to consumer
// loops. Publish is fire-and-forget: it never blocks the caller, and a
// message that cannot be delivered (no subscriber, or a subscriber whose
// buffer is full) is dropped without retry. Per-topic ordering toward each
// subscriber matches publish order.
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	if logger == nil {
		logger = slog.Default()
	}

	return &PubSubBus{
		ps:     pubsub.New(subscriberBuffer),
		logger: logger,
	}
}

// Publish delivers msg to every current subscriber of topic without
// blocking. Subscribers that cannot accept the message right now miss it;
// verdicts describe current state, so the next observation supersedes a
// dropped one.
func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.TryPub(msg, topic)
}

func (b *PubSubBus) Subscribe(topic string) Subscription {
	ch := b.ps.Sub(topic)
	b.logger.Debug("subscribe", "topic", topic)

	return ch
}

// Unsubscribe detaches ch from the given topics, or from all topics when
// none are named. The channel is closed once fully detached.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")

		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
