package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TaskCreated      Type = "task_created"
	TaskStarted      Type = "task_started"
	TaskCompleted    Type = "task_completed"
	NotificationSent Type = "notification_sent"
)

type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	TaskID   int64     `json:"task_id,omitempty"`
	Title    string    `json:"title,omitempty"`
	ActorID  int64     `json:"actor_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Bus is a small in-process publish/subscribe fanout. Slow subscribers
// drop events rather than block publishers.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(c)
		}
	}
}
