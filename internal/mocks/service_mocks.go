package mocks

import (
	"context"
	"sync"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// MockEmailSender is a mock implementation of EmailSender for testing.
// Sends happen in goroutines, Sent delivers each one.
type MockEmailSender struct {
	mu sync.Mutex

	// Mock behavior
	SendFunc func(ctx context.Context, to, subject, body string) error

	// Call tracking
	SendCalls   int
	LastTo      string
	LastSubject string
	LastBody    string
	Sent        chan string
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{Sent: make(chan string, 16)}
}

func (m *MockEmailSender) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.SendCalls++
	m.LastTo = to
	m.LastSubject = subject
	m.LastBody = body
	fn := m.SendFunc
	m.mu.Unlock()

	select {
	case m.Sent <- to:
	default:
	}

	if fn != nil {
		return fn(ctx, to, subject, body)
	}
	return nil
}

// Last returns the last recipient, subject and body / Retourne le dernier destinataire, sujet et corps
func (m *MockEmailSender) Last() (to, subject, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastTo, m.LastSubject, m.LastBody
}

// MockInviter records invitations / Enregistre les invitations
type MockInviter struct {
	mu      sync.Mutex
	Invited []string
	Err     error
}

func (m *MockInviter) Invite(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invited = append(m.Invited, user.Email)
	return m.Err
}

// MockEventPublisher records published events / Enregistre les événements publiés
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []domain.Event
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Types returns published event types in order / Retourne les types publiés dans l'ordre
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Type
	}
	return out
}
