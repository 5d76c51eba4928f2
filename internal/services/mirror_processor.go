package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Mirrorer copies every table from the primary store to its replica.
type Mirrorer interface {
	MirrorAll(ctx context.Context) error
}

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// Interval is how often to mirror all tables (default: 5m)
	Interval time.Duration
}

// DefaultMirrorProcessorConfig returns sensible defaults
func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{Interval: 5 * time.Minute}
}

// MirrorProcessor runs a full mirror at start and then on a fixed interval.
// It backs up the message-driven path when change notifications are lost.
type MirrorProcessor struct {
	mirror Mirrorer
	config MirrorProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorProcessor(mirror Mirrorer, config MirrorProcessorConfig) *MirrorProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultMirrorProcessorConfig().Interval
	}
	return &MirrorProcessor{mirror: mirror, config: config}
}

// Start begins the mirror loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for the current pass.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *MirrorProcessor) runOnce(ctx context.Context) {
	if err := p.mirror.MirrorAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic mirror failed", "error", err)
	}
}
