package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/matthewjhunter/veille"
)

// poller runs a background loop scanning every topic. It also serializes
// on-demand scans so a tool call never races a scheduled cycle.
type poller struct {
	engine   *veille.Engine
	logger   *slog.Logger
	interval time.Duration

	mu   sync.Mutex
	done chan struct{}
}

func newPoller(engine *veille.Engine, logger *slog.Logger, interval time.Duration) *poller {
	return &poller{
		engine:   engine,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// start launches the background poll loop. It polls immediately, then on
// each tick of the configured interval. A zero interval disables the loop;
// on-demand scans still work.
func (p *poller) start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	go p.loop(ctx)
	p.logger.Info("poller started", "interval", p.interval)
}

// stop signals the poll loop to exit.
func (p *poller) stop() {
	close(p.done)
	p.logger.Info("poller stopped")
}

// poll scans every topic once.
func (p *poller) poll(ctx context.Context) ([]*veille.ScanResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	results, err := p.engine.ScanAll(ctx)
	var created, errs int
	for _, r := range results {
		created += r.CardsCreated
		errs += r.FetchErrors + r.AnalyzerErrors + r.SchemaViolations
	}
	p.logger.Info("poll finished", "topics", len(results), "cards", created, "errors", errs)
	return results, err
}

// scanTopic scans one topic under the same lock as poll.
func (p *poller) scanTopic(ctx context.Context, topicID string) (*veille.ScanResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Scan(ctx, topicID)
}

func (p *poller) loop(ctx context.Context) {
	if _, err := p.poll(ctx); err != nil {
		p.logger.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.poll(ctx); err != nil {
				p.logger.Error("poll failed", "error", err)
			}
		}
	}
}
