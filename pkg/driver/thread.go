package driver

import (
	"context"
	"errors"
	"time"

	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/message"
)

// ThreadState is the state of a driver's worker thread.
type ThreadState uint8

const (
	ThreadStopped ThreadState = iota
	ThreadRunning
	ThreadStopping
)

// String returns the thread state name.
func (s ThreadState) String() string {
	switch s {
	case ThreadStopped:
		return "STOPPED"
	case ThreadRunning:
		return "RUNNING"
	case ThreadStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// ThreadState returns the worker thread state.
func (b *Base) ThreadState() ThreadState {
	b.threadMu.Lock()
	defer b.threadMu.Unlock()
	return b.threadState
}

// Stopping reports whether the worker thread has been asked to stop. Main
// loops check it between iterations alongside ctx.
func (b *Base) Stopping() bool {
	return b.stop.Load()
}

// StartThread runs the driver's Main on a new goroutine.
func (b *Base) StartThread() error {
	if b.main == nil {
		return ErrNoMain
	}

	b.threadMu.Lock()
	if b.threadState != ThreadStopped {
		b.threadMu.Unlock()
		return ErrThreadRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done
	b.stop.Store(false)
	b.threadState = ThreadRunning
	b.threadMu.Unlock()

	b.emitThread(ThreadStopped, ThreadRunning, "")

	go func() {
		defer close(done)
		b.main.Main(ctx)

		// Only the exiting goroutine marks the thread STOPPED.
		b.threadMu.Lock()
		from := b.threadState
		owned := b.done == done
		if owned {
			b.threadState = ThreadStopped
			b.cancel = nil
			b.done = nil
		}
		b.threadMu.Unlock()
		cancel()
		if !owned {
			return
		}
		reason := ""
		if from == ThreadRunning {
			reason = "main returned"
		}
		b.emitThread(from, ThreadStopped, reason)
	}()
	return nil
}

// StopThread asks the worker thread to stop and waits up to the configured
// stop timeout for Main to return. On timeout the thread stays STOPPING
// until Main does return, and StartThread keeps failing until then.
func (b *Base) StopThread() error {
	b.threadMu.Lock()
	if b.threadState != ThreadRunning {
		b.threadMu.Unlock()
		return nil
	}
	b.threadState = ThreadStopping
	cancel, done := b.cancel, b.done
	b.stop.Store(true)
	b.threadMu.Unlock()

	b.emitThread(ThreadRunning, ThreadStopping, "")
	cancel()
	b.DataAvailable()

	timer := time.NewTimer(b.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		b.warnLog("driver thread did not stop", "timeout", b.stopTimeout)
		return ErrStopTimeout
	}
}

func (b *Base) emitThread(from, to ThreadState, reason string) {
	plog.Emit(b.plogger, b.event(plog.NewStateEvent(plog.LayerDriver, plog.StateEntityThread,
		from.String(), to.String(), reason)))
}

// ThreadHooks are implemented by drivers that run a worker thread for as
// long as they are subscribed.
type ThreadHooks interface {
	// MainSetup runs before the thread starts. An error aborts Setup.
	MainSetup(ctx context.Context) error

	// MainQuit runs after the thread has stopped.
	MainQuit(ctx context.Context) error

	// Main is the thread body. It returns when ctx ends.
	Main(ctx context.Context)

	ProcessMessage(msg *message.Message) (Reply, error)
}

// threaded adapts ThreadHooks to Hooks.
type threaded struct {
	hooks ThreadHooks
	base  *Base
}

func (t *threaded) Setup(ctx context.Context) error {
	if err := t.hooks.MainSetup(ctx); err != nil {
		return err
	}
	if err := t.base.StartThread(); err != nil {
		return errors.Join(err, t.hooks.MainQuit(ctx))
	}
	return nil
}

func (t *threaded) Shutdown(ctx context.Context) error {
	err := t.base.StopThread()
	return errors.Join(err, t.hooks.MainQuit(ctx))
}

func (t *threaded) ProcessMessage(msg *message.Message) (Reply, error) {
	return t.hooks.ProcessMessage(msg)
}

func (t *threaded) Main(ctx context.Context) {
	t.hooks.Main(ctx)
}

// NewThreaded creates a Base whose Setup starts a worker thread running
// hooks.Main after MainSetup, and whose Shutdown stops it before MainQuit.
func NewThreaded(hooks ThreadHooks, opts Options) *Base {
	t := &threaded{hooks: hooks}
	b := NewBase(t, opts)
	t.base = b
	if d, ok := hooks.(Driver); ok {
		b.self = d
	}
	return b
}
