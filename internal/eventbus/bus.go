package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	// EventGroupsRefreshed is published after the groups of a package were
	// recomputed from a freshly loaded manifest.
	EventGroupsRefreshed EventType = "groups.refreshed"
	// EventPackageRemoved is published when a refresh could not load the
	// package any more.
	EventPackageRemoved EventType = "package.removed"
)

type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	PackageName string    `json:"package_name"`
	Groups      []string  `json:"groups,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, packageName string, groups []string) {
	b.Publish(&Event{
		ID:          ulid.Make().String(),
		Type:        eventType,
		PackageName: packageName,
		Groups:      groups,
		CreatedAt:   time.Now(),
	})
}
