package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 30 * time.Second}

	t.Run("first attempt waits the initial delay", func(t *testing.T) {
		assert.Equal(t, time.Second, b.Delay(0))
	})

	t.Run("doubles per attempt", func(t *testing.T) {
		assert.Equal(t, 2*time.Second, b.Delay(1))
		assert.Equal(t, 4*time.Second, b.Delay(2))
		assert.Equal(t, 8*time.Second, b.Delay(3))
	})

	t.Run("never exceeds the cap", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, b.Delay(5))
		assert.Equal(t, 30*time.Second, b.Delay(20))
		assert.Equal(t, 30*time.Second, b.Delay(63))
	})

	t.Run("growth is monotonic up to the cap", func(t *testing.T) {
		prev := time.Duration(0)
		for attempt := 0; attempt < 10; attempt++ {
			d := b.Delay(attempt)
			assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
			prev = d
		}
	})

	t.Run("zero values fall back to sane defaults", func(t *testing.T) {
		var zero Backoff
		assert.Equal(t, time.Second, zero.Delay(0))
		assert.Equal(t, 30*time.Second, zero.Delay(100))
	})
}
