package playerc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/transport"
	"github.com/player-project/playerd/pkg/version"
	"github.com/player-project/playerd/pkg/wire"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 0)
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
	}
	b.Reset()
	if b.Current() != 100*time.Millisecond || b.Attempts() != 0 {
		t.Errorf("after Reset: Current = %v, Attempts = %d", b.Current(), b.Attempts())
	}
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff(time.Second, 0, retryJitter)
	for i := 0; i < 10; i++ {
		b.Reset()
		d := b.Next()
		if d < time.Second || d > 1250*time.Millisecond {
			t.Fatalf("Next() = %v, want within [1s, 1.25s]", d)
		}
	}
}

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestDialRetryGivesUp(t *testing.T) {
	addr := freeAddr(t)
	_, err := DialRetry(context.Background(), addr, Config{}, RetryConfig{Limit: 3, Initial: time.Millisecond})
	if err == nil {
		t.Fatal("DialRetry succeeded without a server")
	}
}

func TestDialRetryWaitsForServer(t *testing.T) {
	addr := freeAddr(t)

	started := make(chan *transport.Server, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		srv, err := transport.NewServer(transport.ServerConfig{Address: addr, Ident: wire.Ident(version.Current)})
		if err != nil {
			started <- nil
			return
		}
		if err := srv.Start(context.Background()); err != nil {
			started <- nil
			return
		}
		started <- srv
	}()
	t.Cleanup(func() {
		if srv := <-started; srv != nil {
			srv.Stop()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, err := DialRetry(ctx, addr, Config{}, RetryConfig{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("DialRetry failed: %v", err)
	}
	c.Close()
}

func TestDialRetryStopsOnIncompatible(t *testing.T) {
	addr := startServer(t, "2.0.0", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := DialRetry(ctx, addr, Config{}, RetryConfig{})
	if !errors.Is(err, version.ErrIncompatible) {
		t.Fatalf("DialRetry error = %v, want ErrIncompatible", err)
	}
	if time.Since(start) > time.Second {
		t.Error("DialRetry kept retrying an incompatible server")
	}
}

func TestDialRetryContextDone(t *testing.T) {
	addr := freeAddr(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := DialRetry(ctx, addr, Config{}, RetryConfig{Initial: 20 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("DialRetry error = %v, want DeadlineExceeded", err)
	}
}
