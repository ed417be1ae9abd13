package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestDebouncer(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("burst coalesces into one call", func(t *testing.T) {
		var calls atomic.Int32
		d := New(30*time.Millisecond, func() { calls.Add(1) })
		defer d.Stop()

		for i := 0; i < 5; i++ {
			d.Trigger()
			time.Sleep(5 * time.Millisecond)
		}
		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
		assert.False(t, d.Pending())
	})

	t.Run("cancel drops pending call", func(t *testing.T) {
		var calls atomic.Int32
		d := New(20*time.Millisecond, func() { calls.Add(1) })
		defer d.Stop()

		d.Trigger()
		assert.True(t, d.Pending())
		assert.True(t, d.Cancel())
		assert.False(t, d.Cancel())
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("flush runs synchronously", func(t *testing.T) {
		var calls atomic.Int32
		d := New(time.Hour, func() { calls.Add(1) })
		defer d.Stop()

		assert.False(t, d.Flush())
		d.Trigger()
		assert.True(t, d.Flush())
		assert.Equal(t, int32(1), calls.Load())
		assert.False(t, d.Pending())
	})

	t.Run("stop ignores later triggers", func(t *testing.T) {
		var calls atomic.Int32
		d := New(10*time.Millisecond, func() { calls.Add(1) })
		d.Trigger()
		d.Stop()
		d.Trigger()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
		assert.False(t, d.Pending())
	})
}
