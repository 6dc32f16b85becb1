package bus

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("verdict.test")
	b.Publish("verdict.test", 42)

	select {
	case got := <-sub:
		if got != 42 {
			t.Fatalf("payload: got %v want 42", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestPublishPreservesOrderPerTopic(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("verdict.test")
	for i := 0; i < 10; i++ {
		b.Publish("verdict.test", i)
	}

	for want := 0; want < 10; want++ {
		select {
		case got := <-sub:
			if got != want {
				t.Fatalf("out of order: got %v want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", want)
		}
	}
}

func TestPublishWithoutSubscriberDoesNotBlock(t *testing.T) {
	b := New(nil)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			b.Publish("nobody.listens", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscriber")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("verdict.test")

	// Nobody reads: everything beyond the buffer must be dropped, and the
	// producer must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish("verdict.test", i)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	received := 0
drain:
	for {
		select {
		case <-sub:
			received++
		default:
			break drain
		}
	}
	if received > subscriberBuffer {
		t.Fatalf("received %d messages, buffer is %d", received, subscriberBuffer)
	}
	if received == 0 {
		t.Fatal("expected the buffered prefix to be delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("verdict.test")
	b.Unsubscribe(sub, "verdict.test")

	// Unsub closes the channel once detached; drain until closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel never closed")
		}
	}
}
