package driver

import "context"

// Wait blocks until DataAvailable is called, a message is queued for the
// driver, or ctx ends.
func (b *Base) Wait(ctx context.Context) error {
	b.sigMu.Lock()
	ch := b.sigCh
	b.sigMu.Unlock()

	if !b.inQueue.Empty() {
		return nil
	}

	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	queued := make(chan struct{})
	go func() {
		if b.inQueue.Wait(qctx) == nil {
			close(queued)
		}
	}()

	select {
	case <-ch:
		return nil
	case <-queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DataAvailable wakes every goroutine blocked in Wait and runs the listeners
// registered with OnDataAvailable.
func (b *Base) DataAvailable() {
	b.sigMu.Lock()
	close(b.sigCh)
	b.sigCh = make(chan struct{})
	fns := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.sigMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnDataAvailable registers fn to run on every DataAvailable. fn must not
// block. The returned function removes the listener.
func (b *Base) OnDataAvailable(fn func()) (cancel func()) {
	b.sigMu.Lock()
	id := b.nextListener
	b.nextListener++
	b.listeners[id] = fn
	b.sigMu.Unlock()

	return func() {
		b.sigMu.Lock()
		delete(b.listeners, id)
		b.sigMu.Unlock()
	}
}
