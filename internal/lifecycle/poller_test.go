package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPollerConfirms(t *testing.T) {
	var checks atomic.Int32
	confirmed := make(chan struct{})

	check := func(ctx context.Context) (bool, error) {
		return checks.Add(1) >= 3, nil
	}
	p := NewPoller(check, func() { close(confirmed) }, discardLogger())
	p.interval = 5 * time.Millisecond

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never confirmed")
	}
	if got := checks.Load(); got < 3 {
		t.Errorf("checks = %d, want >= 3", got)
	}
}

func TestPollerKeepsGoingOnError(t *testing.T) {
	var checks atomic.Int32
	confirmed := make(chan struct{})

	check := func(ctx context.Context) (bool, error) {
		if checks.Add(1) < 2 {
			return false, errors.New("transient")
		}
		return true, nil
	}
	p := NewPoller(check, func() { close(confirmed) }, discardLogger())
	p.interval = 5 * time.Millisecond

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("poller gave up after a transient error")
	}
}

func TestPollerStopHalts(t *testing.T) {
	var checks atomic.Int32

	check := func(ctx context.Context) (bool, error) {
		checks.Add(1)
		return false, nil
	}
	p := NewPoller(check, func() { t.Error("should never confirm") }, discardLogger())
	p.interval = 5 * time.Millisecond

	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	after := checks.Load()
	time.Sleep(30 * time.Millisecond)
	if got := checks.Load(); got != after {
		t.Errorf("checks continued after Stop: %d -> %d", after, got)
	}
}

func TestPollerChecksDoNotOverlap(t *testing.T) {
	var inFlight atomic.Int32
	var overlapped atomic.Bool

	check := func(ctx context.Context) (bool, error) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		// Slower than the tick interval.
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
		return false, nil
	}
	p := NewPoller(check, func() {}, discardLogger())
	p.interval = 5 * time.Millisecond

	p.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	if overlapped.Load() {
		t.Error("checks overlapped; ticks must be skipped while one is in flight")
	}
}
