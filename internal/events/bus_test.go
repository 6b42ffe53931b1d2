package events

import (
	"testing"
	"time"
)

func TestBusFanout(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(Event{Type: TaskCreated, TaskID: 7})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != TaskCreated || event.TaskID != 7 {
				t.Fatalf("unexpected event: %+v", event)
			}
			if event.ID == "" || event.At.IsZero() {
				t.Fatalf("id/at should be stamped: %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}

	cancel1()
	if _, ok := <-ch1; ok {
		t.Fatalf("cancelled subscription channel should be closed")
	}

	// Publishing after a cancel must not reach the closed channel.
	bus.Publish(Event{Type: TaskStarted, TaskID: 8})
	select {
	case event := <-ch2:
		if event.Type != TaskStarted {
			t.Fatalf("event type = %q, want task_started", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("remaining subscriber did not receive event")
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < 200; i++ {
		bus.Publish(Event{Type: TaskCreated, TaskID: int64(i)})
	}
	// Publisher must not block; the buffered window is what remains.
	if len(ch) != 64 {
		t.Fatalf("buffered events = %d, want 64", len(ch))
	}
}
