package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFollowsDoublingScheduleCappedAtMax(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)

	assert.Equal(t, 1*time.Second, b.next())
	assert.Equal(t, 2*time.Second, b.next())
	assert.Equal(t, 4*time.Second, b.next())
	assert.Equal(t, 8*time.Second, b.next())
	assert.Equal(t, 16*time.Second, b.next())
	assert.Equal(t, 30*time.Second, b.next()) // 32s capped to 30s
	assert.Equal(t, 30*time.Second, b.next())
}

func TestBackoffAttemptCountAdvancesAndResets(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)

	b.next()
	b.next()
	assert.Equal(t, 2, b.attemptCount())

	b.reset()
	assert.Equal(t, 0, b.attemptCount())
	assert.Equal(t, 1*time.Second, b.next())
}
