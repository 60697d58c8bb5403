package watcher

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDebouncer(t *testing.T) {
	t.Run("default duration", func(t *testing.T) {
		d := NewDebouncer(0)
		if d.Duration() != DefaultDebounceDuration {
			t.Errorf("Duration() = %v, want %v", d.Duration(), DefaultDebounceDuration)
		}
		if d.MaxWait() != 4*DefaultDebounceDuration {
			t.Errorf("MaxWait() = %v, want %v", d.MaxWait(), 4*DefaultDebounceDuration)
		}
	})

	t.Run("custom duration", func(t *testing.T) {
		duration := 500 * time.Millisecond
		d := NewDebouncer(duration)
		if d.Duration() != duration {
			t.Errorf("Duration() = %v, want %v", d.Duration(), duration)
		}
	})

	t.Run("max wait floor", func(t *testing.T) {
		d := NewDebouncer(100 * time.Millisecond)
		d.SetMaxWait(time.Millisecond)
		if d.MaxWait() != 100*time.Millisecond {
			t.Errorf("MaxWait() = %v, want 100ms", d.MaxWait())
		}
	})
}

func TestDebouncerTrigger(t *testing.T) {
	t.Run("single trigger", func(t *testing.T) {
		var callCount atomic.Int32
		d := NewDebouncer(50 * time.Millisecond)

		d.Trigger(func() {
			callCount.Add(1)
		})
		if !d.Pending() {
			t.Error("Pending() = false right after Trigger")
		}

		time.Sleep(120 * time.Millisecond)

		if got := callCount.Load(); got != 1 {
			t.Errorf("callback called %d times, want 1", got)
		}
		if d.Pending() {
			t.Error("Pending() = true after callback ran")
		}
	})

	t.Run("multiple rapid triggers", func(t *testing.T) {
		var callCount, last atomic.Int32
		d := NewDebouncer(100 * time.Millisecond)
		d.SetMaxWait(time.Second)

		for i := 1; i <= 5; i++ {
			i := int32(i)
			d.Trigger(func() {
				callCount.Add(1)
				last.Store(i)
			})
			time.Sleep(10 * time.Millisecond)
		}

		time.Sleep(200 * time.Millisecond)

		if got := callCount.Load(); got != 1 {
			t.Errorf("callback called %d times, want 1", got)
		}
		if got := last.Load(); got != 5 {
			t.Errorf("last callback = %d, want 5", got)
		}
	})

	t.Run("max wait bounds a steady stream", func(t *testing.T) {
		var callCount atomic.Int32
		d := NewDebouncer(50 * time.Millisecond)
		d.SetMaxWait(100 * time.Millisecond)

		deadline := time.Now().Add(300 * time.Millisecond)
		for time.Now().Before(deadline) {
			d.Trigger(func() { callCount.Add(1) })
			time.Sleep(10 * time.Millisecond)
		}

		if got := callCount.Load(); got < 2 {
			t.Errorf("callback called %d times during a 300ms stream, want >= 2", got)
		}
	})
}

func TestDebouncerCancel(t *testing.T) {
	var callCount atomic.Int32
	d := NewDebouncer(100 * time.Millisecond)

	d.Trigger(func() {
		callCount.Add(1)
	})

	time.Sleep(20 * time.Millisecond)
	d.Cancel()

	time.Sleep(150 * time.Millisecond)

	if got := callCount.Load(); got != 0 {
		t.Errorf("callback called %d times after Cancel(), want 0", got)
	}
}

func TestDebouncerCancelNilTimer(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Cancel()
}
