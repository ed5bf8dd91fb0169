// Package events fans out resource change notifications to live subscribers.
// Package events diffuse les notifications de changement aux abonnés connectés.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
)

var _ ports.EventPublisher = (*Hub)(nil)

// Subscriber receives events until its channel is closed / Reçoit les événements jusqu'à fermeture du canal
type Subscriber struct {
	C      <-chan domain.Event
	ch     chan domain.Event
	UserID int64
}

// Hub broadcasts events to subscribers / Diffuse les événements aux abonnés
// A subscriber whose buffer is full is dropped rather than blocking publishers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	bufferSize  int
	onChange    func(n int)
	closed      bool
}

// NewHub creates hub; onChange (optional) receives subscriber count changes
// NewHub crée le hub ; onChange (optionnel) reçoit le nombre d'abonnés
func NewHub(bufferSize int, onChange func(n int)) *Hub {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		bufferSize:  bufferSize,
		onChange:    onChange,
	}
}

// Subscribe registers new subscriber / Enregistre un nouvel abonné
func (h *Hub) Subscribe(userID int64) *Subscriber {
	ch := make(chan domain.Event, h.bufferSize)
	s := &Subscriber{C: ch, ch: ch, UserID: userID}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return s
	}
	h.subscribers[s] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.notify(n)
	slog.Debug("event subscriber registered", "user_id", userID, "subscribers", n)
	return s
}

// Unsubscribe removes subscriber and closes its channel / Retire l'abonné et ferme son canal
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	if ok {
		delete(h.subscribers, s)
		close(s.ch)
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.notify(n)
	}
}

// Publish delivers event without blocking / Délivre l'événement sans bloquer
func (h *Hub) Publish(_ context.Context, event domain.Event) {
	h.mu.Lock()
	var dropped int
	for s := range h.subscribers {
		select {
		case s.ch <- event:
		default:
			delete(h.subscribers, s)
			close(s.ch)
			dropped++
			slog.Warn("dropping slow event subscriber", "user_id", s.UserID)
		}
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	if dropped > 0 {
		h.notify(n)
	}
}

// Count returns subscriber count / Retourne le nombre d'abonnés
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber / Déconnecte tous les abonnés
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for s := range h.subscribers {
		close(s.ch)
	}
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()
	h.notify(0)
}

func (h *Hub) notify(n int) {
	if h.onChange != nil {
		h.onChange(n)
	}
}
