package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingPass struct{ n atomic.Int32 }

func (p *countingPass) ProcessPending(context.Context) error {
	p.n.Add(1)
	return nil
}

func TestNewProcessor_DefaultInterval(t *testing.T) {
	p := NewProcessor(&countingPass{}, 0)
	if p.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", p.interval)
	}
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestProcessor_StartTwice(t *testing.T) {
	p := NewProcessor(&countingPass{}, time.Hour)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(ctx)

	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestProcessor_StopNotRunning(t *testing.T) {
	if err := NewProcessor(&countingPass{}, time.Second).Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestProcessor_RunsPeriodically(t *testing.T) {
	pass := &countingPass{}
	p := NewProcessor(pass, 10*time.Millisecond)
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for pass.n.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if pass.n.Load() < 2 {
		t.Errorf("expected at least 2 passes, got %d", pass.n.Load())
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}
