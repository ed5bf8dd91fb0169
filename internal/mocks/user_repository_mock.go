package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.UserRepository = (*MockUserRepository)(nil)

// MockUserRepository is an in-memory ports.UserRepository for testing.
// Missing users yield db.ErrNoRecord like the SQL store.
type MockUserRepository struct {
	mu sync.Mutex

	// Mock data storage
	Users map[int64]*domain.User
	next  int64

	// Mock behavior flags
	CreateError          error
	UpdateError          error
	GetByIDError         error
	GetByEmailError      error
	DeleteError          error
	LockAccountError     error
	IncrementFailedError error
	ResetFailedError     error
	UpdatePasswordError  error
	ClearResetTokenError error
	ListError            error

	// Call tracking
	CreateCalls          int
	UpdateCalls          int
	GetByIDCalls         int
	GetByEmailCalls      int
	DeleteCalls          int
	LockAccountCalls     int
	IncrementFailedCalls int
	ResetFailedCalls     int
}

// NewMockUserRepository creates a new mock user repository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[int64]*domain.User)}
}

// Add stores user as is and returns it / Stocke l'utilisateur tel quel et le retourne
func (m *MockUserRepository) Add(u *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.next++
		u.ID = m.next
	} else if u.ID > m.next {
		m.next = u.ID
	}
	m.Users[u.ID] = u
	return u
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return db.ErrDuplicate
		}
	}
	m.next++
	u.ID = m.next
	u.Touch(time.Now().UTC())
	m.Users[u.ID] = u
	return nil
}

func (m *MockUserRepository) Update(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Users[u.ID]; !ok {
		return db.ErrNoRecord
	}
	m.Users[u.ID] = u
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if _, ok := m.Users[id]; !ok {
		return db.ErrNoRecord
	}
	delete(m.Users, id)
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetByIDCalls++
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, db.ErrNoRecord
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetByEmailCalls++
	if m.GetByEmailError != nil {
		return nil, m.GetByEmailError
	}
	if u := m.byEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, db.ErrNoRecord
}

func (m *MockUserRepository) byEmail(email string) *domain.User {
	for _, u := range m.Users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, offset, limit int) ([]*domain.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, 0, m.ListError
	}

	all := make([]*domain.User, 0, len(m.Users))
	for _, u := range m.Users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset >= total {
		return []*domain.User{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (m *MockUserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, u := range m.Users {
		counts[u.Role]++
	}
	return counts, nil
}

func (m *MockUserRepository) LockAccount(ctx context.Context, userID int64, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockAccountCalls++
	if m.LockAccountError != nil {
		return m.LockAccountError
	}
	u, ok := m.Users[userID]
	if !ok {
		return db.ErrNoRecord
	}
	u.LockedUntil = &until
	return nil
}

func (m *MockUserRepository) IncrementFailedAttempts(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncrementFailedCalls++
	if m.IncrementFailedError != nil {
		return m.IncrementFailedError
	}
	u, ok := m.Users[userID]
	if !ok {
		return db.ErrNoRecord
	}
	u.FailedLoginAttempts++
	return nil
}

func (m *MockUserRepository) ResetFailedAttempts(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetFailedCalls++
	if m.ResetFailedError != nil {
		return m.ResetFailedError
	}
	u, ok := m.Users[userID]
	if !ok {
		return db.ErrNoRecord
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	return nil
}

func (m *MockUserRepository) SetPasswordResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byEmail(email)
	if u == nil {
		return db.ErrNoRecord
	}
	u.PasswordResetToken = sql.NullString{String: token, Valid: true}
	u.PasswordResetExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
	return nil
}

func (m *MockUserRepository) GetByPasswordResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.PasswordResetToken.Valid && u.PasswordResetToken.String == token &&
			u.PasswordResetExpiresAt.Valid && now.Before(u.PasswordResetExpiresAt.Time) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNoRecord
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdatePasswordError != nil {
		return m.UpdatePasswordError
	}
	u, ok := m.Users[userID]
	if !ok {
		return db.ErrNoRecord
	}
	u.Password = hashedPassword
	return nil
}

func (m *MockUserRepository) ClearPasswordResetToken(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearResetTokenError != nil {
		return m.ClearResetTokenError
	}
	u, ok := m.Users[userID]
	if !ok {
		return db.ErrNoRecord
	}
	u.PasswordResetToken = sql.NullString{}
	u.PasswordResetExpiresAt = sql.NullTime{}
	return nil
}

// WithTx returns the mock itself, tests don't need real transactions
func (m *MockUserRepository) WithTx(tx ports.DBTX) ports.UserRepository {
	return m
}

// Stored returns the stored user without copying / Retourne l'utilisateur stocké sans copie
func (m *MockUserRepository) Stored(id int64) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Users[id]
}
