package driver

import (
	"sync"
	"time"
)

// Watchdog calls a function when it has not been kicked for a given
// duration. Drivers use it to stop actuators once commands stop arriving.
type Watchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	timer    *time.Timer
	gen      uint64
	expired  bool
	onExpire func()
}

// NewWatchdog returns a stopped watchdog. A zero timeout disables it.
func NewWatchdog(timeout time.Duration, onExpire func()) *Watchdog {
	return &Watchdog{timeout: timeout, onExpire: onExpire}
}

// Kick restarts the countdown.
func (w *Watchdog) Kick() {
	if w == nil || w.timeout <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expired = false
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

// Stop cancels the countdown without calling onExpire.
func (w *Watchdog) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Expired reports whether the last countdown ran out.
func (w *Watchdog) Expired() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	// A Kick or Stop after the timer fired replaced it.
	if w.gen != gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.expired = true
	fn := w.onExpire
	w.mu.Unlock()

	if fn != nil {
		fn()
	}
}
