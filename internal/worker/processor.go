package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingPass is one periodic re-sync run.
type PendingPass interface {
	ProcessPending(ctx context.Context) error
}

// Processor runs a PendingPass on a fixed interval until stopped.
type Processor struct {
	pass     PendingPass
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProcessor(pass PendingPass, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Processor{pass: pass, interval: interval}
}

// Start begins the loop. Returns an error if already running.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	slog.InfoContext(ctx, "Pending sync processor started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Pending sync processor stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Pending sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.pass.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sync pass failed", "error", err)
			}
		}
	}
}
