package dispatcher

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimers_ArmAndFire(t *testing.T) {
	timers := NewTimers()
	defer timers.StopAll()

	fired := make(chan struct{})
	timers.Arm(42, 10*time.Millisecond, func() {
		close(fired)
	})
	assert.Equal(t, 1, timers.Len())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	// сработавший таймер снимает себя сам
	assert.Eventually(t, func() bool {
		return timers.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestTimers_Disarm(t *testing.T) {
	timers := NewTimers()
	defer timers.StopAll()

	var fired atomic.Bool
	timers.Arm(42, 20*time.Millisecond, func() {
		fired.Store(true)
	})
	timers.Disarm(42)
	assert.Zero(t, timers.Len())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestTimers_RearmReplacesTimer(t *testing.T) {
	timers := NewTimers()
	defer timers.StopAll()

	var first atomic.Bool
	timers.Arm(42, 10*time.Millisecond, func() {
		first.Store(true)
	})

	second := make(chan struct{})
	timers.Arm(42, 20*time.Millisecond, func() {
		close(second)
	})
	assert.Equal(t, 1, timers.Len())

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second timer did not fire")
	}
	assert.False(t, first.Load(), "first timer must be replaced")
}

func TestTimers_StopAll(t *testing.T) {
	timers := NewTimers()

	var fired atomic.Int32
	for id := int64(1); id <= 3; id++ {
		timers.Arm(id, 20*time.Millisecond, func() {
			fired.Add(1)
		})
	}
	timers.StopAll()
	assert.Zero(t, timers.Len())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
