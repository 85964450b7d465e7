package devscan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"meshscope/internal/domain"
	"meshscope/internal/logging"
	"meshscope/internal/transport"
)

// ErrScanInProgress is returned when Discover is called while a run is active
var ErrScanInProgress = errors.New("scan already in progress")

// Config holds engine settings
type Config struct {
	// MaxInFlight caps concurrent requests. Zero means no cap.
	MaxInFlight int
}

// Engine runs discovery scans, one at a time
type Engine struct {
	requester transport.Requester
	config    Config
	clock     *domain.VersionClock
	publisher EventPublisher

	mu      sync.Mutex
	running bool
}

// NewEngine creates an engine that queries nodes through requester
func NewEngine(requester transport.Requester, config Config) *Engine {
	if config.MaxInFlight < 0 {
		config.MaxInFlight = 0
	}
	return &Engine{
		requester: requester,
		config:    config,
		clock:     domain.NewVersionClock(),
	}
}

// SetEventPublisher sets the receiver of diagnostic events
func (e *Engine) SetEventPublisher(pub EventPublisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publisher = pub
}

// SetVersionFloor makes later graph versions exceed v
func (e *Engine) SetVersionFloor(v int64) {
	e.clock.Observe(v)
}

// Running reports whether a run is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) publish(eventType string, payload interface{}) {
	e.mu.Lock()
	pub := e.publisher
	e.mu.Unlock()
	if pub != nil {
		pub.PublishDiscoveryEvent(eventType, payload)
	}
}

// Discover runs one discovery scan starting at the coordinator and returns
// the resulting graph. Node failures never abort the run; only the end of
// ctx does, in which case ctx.Err() is returned.
func (e *Engine) Discover(ctx context.Context, coordinator string) (*domain.Graph, error) {
	addr, err := domain.Normalize(coordinator)
	if err != nil {
		return nil, fmt.Errorf("coordinator address: %w", err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrScanInProgress
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	s := newSession(addr)
	logging.Info("Devscan started",
		zap.String("run_id", s.id),
		zap.String("coordinator", string(addr)),
		zap.Int("max_in_flight", e.config.MaxInFlight),
	)
	e.publish(EventStarted, map[string]interface{}{
		"run_id":      s.id,
		"coordinator": addr,
	})

	if err := e.run(ctx, s); err != nil {
		logging.Warn("Devscan aborted",
			zap.String("run_id", s.id),
			zap.Int("in_flight", s.inFlight),
			zap.Error(err),
		)
		return nil, err
	}

	graph := buildTopology(s, e.publish)
	graph.Version = e.clock.Next()

	stats := s.stats()
	stats.Nodes = len(graph.Nodes)
	stats.Links = len(graph.Links)
	logging.Info("Devscan complete",
		zap.String("run_id", s.id),
		zap.Int("dispatched", stats.Dispatched),
		zap.Int("failed", stats.Failed),
		zap.Int("nodes", stats.Nodes),
		zap.Int("links", stats.Links),
		zap.Int64("duration_ms", stats.DurationMS),
	)
	e.publish(EventComplete, stats)

	return graph, nil
}

// outcome is the result of one request, delivered back to the loop
type outcome struct {
	addr    domain.Address
	payload []byte
	err     error
}

// run drives the session until it is quiescent. Only this goroutine touches
// session state; requests report back through results.
func (e *Engine) run(ctx context.Context, s *session) error {
	results := make(chan outcome)

	for {
		for e.canDispatch(s) {
			addr, ok := s.dequeue()
			if !ok {
				break
			}
			s.markPending(addr)
			e.publish(EventRequest, map[string]interface{}{
				"run_id":    s.id,
				"address":   addr,
				"in_flight": s.inFlight,
			})
			go e.request(ctx, addr, results)
		}

		if s.quiescent() {
			return nil
		}

		select {
		case o := <-results:
			e.complete(s, o)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) canDispatch(s *session) bool {
	return e.config.MaxInFlight == 0 || s.inFlight < e.config.MaxInFlight
}

func (e *Engine) request(ctx context.Context, addr domain.Address, results chan<- outcome) {
	payload, err := e.requester.Request(ctx, addr)
	select {
	case results <- outcome{addr: addr, payload: payload, err: err}:
	case <-ctx.Done():
	}
}

func (e *Engine) complete(s *session, o outcome) {
	if o.err != nil {
		s.fail(o.addr)
		logging.Debug("Devscan request failed",
			zap.String("address", string(o.addr)),
			zap.Error(o.err),
		)
		e.publish(EventFailed, map[string]interface{}{
			"run_id":  s.id,
			"address": o.addr,
			"timeout": transport.IsTimeout(o.err),
			"error":   o.err.Error(),
		})
		return
	}

	routes := s.resolve(o.addr, string(o.payload))
	logging.Debug("Devscan response",
		zap.String("address", string(o.addr)),
		zap.Int("bytes", len(o.payload)),
		zap.Int("routes", len(routes)),
	)
	e.publish(EventResponse, map[string]interface{}{
		"run_id":  s.id,
		"address": o.addr,
		"payload": string(o.payload),
		"routes":  len(routes),
	})
}
