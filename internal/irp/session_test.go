package irp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	s := NewSession()

	assert.False(t, s.Valid(now))

	s.Set("token-1", make([]byte, 32), now.Add(6*time.Hour))
	assert.True(t, s.Valid(now))
	assert.Equal(t, "token-1", s.Token())
	assert.Len(t, s.SEK(), 32)

	// Expired sessions are invalid even with a token present
	assert.False(t, s.Valid(now.Add(7*time.Hour)))

	s.Reset()
	assert.False(t, s.Valid(now))
	assert.Empty(t, s.Token())
	assert.Nil(t, s.SEK())
}
