package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"meshscope/internal/domain"
	"meshscope/internal/logging"
)

// Scanner is the part of TopologyService the poller drives
type Scanner interface {
	Scan(ctx context.Context) (*domain.Graph, error)
}

// Poller runs scans on a fixed interval
type Poller struct {
	scanner  Scanner
	interval time.Duration
}

// NewPoller creates a poller. A non-positive interval disables polling.
func NewPoller(scanner Scanner, interval time.Duration) *Poller {
	return &Poller{scanner: scanner, interval: interval}
}

// Run scans immediately and then on every tick until ctx ends
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		logging.Debug("Polling disabled")
		<-ctx.Done()
		return nil
	}

	logging.Info("Started polling loop", zap.Duration("interval", p.interval))

	p.runScan(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Stopping polling loop")
			return nil
		case <-ticker.C:
			p.runScan(ctx)
		}
	}
}

func (p *Poller) runScan(ctx context.Context) {
	graph, err := p.scanner.Scan(ctx)
	switch {
	case errors.Is(err, ErrScanInProgress):
		logging.Debug("Scan already running, skipping tick")
	case err != nil:
		if ctx.Err() == nil {
			logging.Warn("Scheduled scan failed", zap.Error(err))
		}
	default:
		logging.Debug("Scheduled scan complete",
			zap.Int64("version", graph.Version),
			zap.Int("nodes", len(graph.Nodes)),
		)
	}
}
