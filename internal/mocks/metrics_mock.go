package mocks

import "sync"

// MockMetrics is a mock implementation of the service metric recorders for testing
type MockMetrics struct {
	mu sync.Mutex

	AccountLockoutCalls int
	UserCreatedCalls    int
	TicketsSold         map[string]int
	SessionEvents       map[string]int
	AbonnementEvents    map[string]int
	Ecritures           map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		TicketsSold:      make(map[string]int),
		SessionEvents:    make(map[string]int),
		AbonnementEvents: make(map[string]int),
		Ecritures:        make(map[string]int),
	}
}

func (m *MockMetrics) RecordAccountLockout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccountLockoutCalls++
}

func (m *MockMetrics) RecordUserCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserCreatedCalls++
}

func (m *MockMetrics) RecordTicketSold(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TicketsSold[mode]++
}

func (m *MockMetrics) RecordSessionEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionEvents[event]++
}

func (m *MockMetrics) RecordAbonnementEvent(event string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AbonnementEvents[event] += n
}

func (m *MockMetrics) RecordEcriture(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ecritures[operation]++
}
