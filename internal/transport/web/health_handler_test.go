package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{2*time.Hour + 15*time.Minute + 30*time.Second, "2h 15m 30s"},
		{29*time.Hour + 23*time.Minute + 10*time.Second, "1d 5h 23m"},
		{12*24*time.Hour + 5*time.Second, "12d"},
		{3*time.Minute + 500*time.Millisecond, "3m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUptime(tt.in))
		})
	}
}
