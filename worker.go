package scangate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scangate/roster"
)

// syncPool runs remote syncs on a fixed set of workers fed by a bounded
// queue. Submission never blocks the scan path: when the queue is full the
// scan is dropped from the sync leg with a warning (it is already in the
// local history at that point).
type syncPool struct {
	logger *slog.Logger
	fn     func(context.Context, roster.ResolvedScan)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   chan roster.ResolvedScan
	closed bool
}

func newSyncPool(workers int, fn func(context.Context, roster.ResolvedScan), logger *slog.Logger) *syncPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &syncPool{
		logger: logger,
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan roster.ResolvedScan, 64),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *syncPool) worker() {
	defer p.wg.Done()
	for scan := range p.jobs {
		if p.ctx.Err() != nil {
			return
		}
		p.fn(p.ctx, scan)
	}
}

// submit queues a scan for sync. Reports false when the pool is shut down
// or the queue is full.
func (p *syncPool) submit(scan roster.ResolvedScan) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- scan:
		return true
	default:
		p.logger.Warn("scangate: sync queue full, dropping", "name", scan.DisplayName)
		return false
	}
}

// shutdown stops accepting work, waits up to grace for in-flight syncs,
// then cancels whatever remains.
func (p *syncPool) shutdown(grace time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		p.logger.Warn("scangate: sync workers did not drain in time, canceling")
		p.cancel()
		<-done
	}
	p.cancel()
}
