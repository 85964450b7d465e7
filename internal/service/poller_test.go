package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"meshscope/internal/domain"
)

type countingScanner struct {
	calls atomic.Int32
	err   error
}

func (c *countingScanner) Scan(ctx context.Context) (*domain.Graph, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return domain.NewGraph(), nil
}

func TestPollerScansOnInterval(t *testing.T) {
	scanner := &countingScanner{}
	poller := NewPoller(scanner, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for scanner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 scans, got %d", scanner.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestPollerSkipsBusyScans(t *testing.T) {
	scanner := &countingScanner{err: ErrScanInProgress}
	poller := NewPoller(scanner, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := poller.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if scanner.calls.Load() == 0 {
		t.Error("expected scans to be attempted")
	}
}

func TestPollerDisabled(t *testing.T) {
	scanner := &countingScanner{}
	poller := NewPoller(scanner, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := poller.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if scanner.calls.Load() != 0 {
		t.Errorf("expected no scans, got %d", scanner.calls.Load())
	}
}
