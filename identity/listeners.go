package identity

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Listeners is a registry of event listeners shared by provider implementations.
type Listeners struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func NewListeners() *Listeners {
	return &Listeners{listeners: make(map[int]Listener)}
}

// Add registers listener and returns a subscription that removes it.
func (l *Listeners) Add(listener Listener) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = listener
	return &subscription{remove: func() { l.remove(id) }}
}

func (l *Listeners) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.listeners, id)
}

func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.listeners)
}

// Emit calls every listener synchronously. A panicking listener is logged and
// does not stop delivery to the rest.
func (l *Listeners) Emit(event Event, session *Session) {
	l.mu.RLock()
	targets := make([]Listener, 0, len(l.listeners))
	for _, listener := range l.listeners {
		targets = append(targets, listener)
	}
	l.mu.RUnlock()

	for _, listener := range targets {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event", string(event)).Msg("auth listener panicked")
				}
			}()
			listener(event, session)
		}()
	}
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.remove)
}
