package driver

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdogExpires(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := NewWatchdog(20*time.Millisecond, func() { fired <- struct{}{} })
	w.Kick()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
	if !w.Expired() {
		t.Error("Expired() = false after firing")
	}
}

func TestWatchdogKickDefers(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(50*time.Millisecond, func() { fired.Add(1) })
	for i := 0; i < 5; i++ {
		w.Kick()
		time.Sleep(20 * time.Millisecond)
	}
	if fired.Load() != 0 {
		t.Errorf("watchdog fired %d times while kicked", fired.Load())
	}
	w.Stop()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 || w.Expired() {
		t.Error("watchdog fired after Stop")
	}
}

func TestWatchdogDisabled(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(0, func() { fired.Add(1) })
	w.Kick()
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("disabled watchdog fired")
	}

	var nilWatchdog *Watchdog
	nilWatchdog.Kick()
	nilWatchdog.Stop()
}
