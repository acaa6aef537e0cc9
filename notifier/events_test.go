package notifier

import (
	"testing"
	"time"

	"charge_point/session"
)

func TestPublishMapsEventToTopic(t *testing.T) {
	publisher := NewEventPublisher()

	go publisher.Publish(session.Event{Kind: session.EventTransaction, Started: true, TransactionID: 42})

	select {
	case notification := <-publisher.Channel():
		if notification.Topic != TopicTransaction {
			t.Fatalf("topic = %v", notification.Topic)
		}
		evt, ok := notification.Data.(session.Event)
		if !ok || evt.TransactionID != 42 {
			t.Fatalf("data = %+v", notification.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification published")
	}
}

func TestPublishDropsUnknownKind(t *testing.T) {
	publisher := NewEventPublisher()

	done := make(chan struct{})
	go func() {
		// must not block even with nobody draining the channel
		publisher.Publish(session.Event{Kind: session.EventKind("bogus")})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish of unknown kind blocked")
	}
}
