package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/stretchr/testify/assert"
)

func TestHandleError(t *testing.T) {
	other := errors.New("other")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unique", &pq.Error{Code: "23505"}, db.ErrDuplicate},
		{"wrapped unique", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), db.ErrDuplicate},
		{"foreign key", &pq.Error{Code: "23503"}, db.ErrForeignKeyViolation},
		{"lock", &pq.Error{Code: "55P03"}, db.ErrLocked},
		{"unmapped", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, handleError(tt.in), tt.want)
		})
	}
}

func TestFactoryDialect(t *testing.T) {
	d := (&Factory{}).Dialect()
	assert.Equal(t, db.PostgreSQL, d.Type)
	assert.True(t, d.ReturningID)
	assert.Equal(t, "SELECT * FROM pcg WHERE numero = $1 AND actif = $2", d.Rebind("SELECT * FROM pcg WHERE numero = ? AND actif = ?"))
}
