package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CheckFunc reports whether the watched account's email is now confirmed.
type CheckFunc func(ctx context.Context) (bool, error)

// Poller re-checks verification status on a fixed interval while a user sits
// on the PendingVerification screen. Checks run one at a time: a tick that
// fires while the previous check is still resolving is dropped, never
// queued. Stop is immediate and leaves no goroutine behind.
type Poller struct {
	mu          sync.Mutex
	check       CheckFunc
	onConfirmed func()
	interval    time.Duration
	logger      *slog.Logger
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewPoller(check CheckFunc, onConfirmed func(), logger *slog.Logger) *Poller {
	return &Poller{
		check:       check,
		onConfirmed: onConfirmed,
		interval:    2 * time.Second,
		logger:      logger,
	}
}

// Start begins polling. A second Start while running is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		// Checks run synchronously in this loop, so ticks cannot
		// overlap; time.Ticker drops ticks that fire mid-check.
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				confirmed, err := p.check(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.logger.Warn("verification check failed", "error", err)
					continue
				}
				if confirmed {
					p.onConfirmed()
					return
				}
			}
		}
	}()
}

// Stop cancels polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
