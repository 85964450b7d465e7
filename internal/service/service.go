package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"meshscope/internal/codec"
	"meshscope/internal/devscan"
	"meshscope/internal/domain"
	"meshscope/internal/logging"
	"meshscope/internal/repository"
)

// ErrScanInProgress is returned when a scan is requested while one is running
var ErrScanInProgress = devscan.ErrScanInProgress

// Discoverer runs a single discovery scan
type Discoverer interface {
	Discover(ctx context.Context, coordinator string) (*domain.Graph, error)
	SetVersionFloor(v int64)
}

// CoordinatorResolver returns the address a scan starts from
type CoordinatorResolver func(ctx context.Context) (string, error)

// StaticCoordinator always resolves to addr
func StaticCoordinator(addr string) CoordinatorResolver {
	return func(context.Context) (string, error) {
		return addr, nil
	}
}

// TopologyService provides the last discovered topology and runs new scans
type TopologyService struct {
	engine      Discoverer
	repo        repository.Repository
	eventBus    *EventBus
	coordinator CoordinatorResolver
	runTimeout  time.Duration

	mu       sync.RWMutex
	last     *domain.Graph
	scanned  bool
	scanning bool
}

// NewTopologyService creates a new topology service. repo may be nil, in
// which case results are kept in memory only.
func NewTopologyService(engine Discoverer, repo repository.Repository, eventBus *EventBus, coordinator CoordinatorResolver, runTimeout time.Duration) *TopologyService {
	last := domain.NewGraph()
	last.Version = time.Now().UnixMilli()
	engine.SetVersionFloor(last.Version)

	return &TopologyService{
		engine:      engine,
		repo:        repo,
		eventBus:    eventBus,
		coordinator: coordinator,
		runTimeout:  runTimeout,
		last:        last,
	}
}

// Restore loads the stored snapshot as the last results
func (s *TopologyService) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	snapshot, err := s.repo.LatestSnapshot(ctx)
	if errors.Is(err, repository.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.engine.SetVersionFloor(snapshot.Graph.Version)

	s.mu.Lock()
	if !s.scanned {
		s.last = snapshot.Graph
	}
	s.mu.Unlock()

	logging.Info("Restored topology snapshot",
		zap.String("coordinator", string(snapshot.Coordinator)),
		zap.Int64("version", snapshot.Graph.Version),
		zap.Int("nodes", len(snapshot.Graph.Nodes)),
	)
	return nil
}

// LastResults returns the most recent graph
func (s *TopologyService) LastResults() *domain.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Scanning reports whether a scan is running
func (s *TopologyService) Scanning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanning
}

// SetCoordinator replaces the coordinator resolver used by later scans.
// A scan already running keeps the resolver it started with.
func (s *TopologyService) SetCoordinator(resolver CoordinatorResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coordinator = resolver
}

// Scan runs a discovery scan and makes its graph the last results
func (s *TopologyService) Scan(ctx context.Context) (*domain.Graph, error) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.scanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	s.mu.RLock()
	resolve := s.coordinator
	s.mu.RUnlock()

	coordinator, err := resolve(ctx)
	if err != nil {
		return nil, s.scanFailed(fmt.Errorf("failed to resolve coordinator: %w", err))
	}

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	started := time.Now()
	graph, err := s.engine.Discover(ctx, coordinator)
	if err != nil {
		return nil, s.scanFailed(err)
	}

	s.mu.Lock()
	s.last = graph
	s.scanned = true
	s.mu.Unlock()

	s.persist(coordinator, graph, time.Since(started))

	if s.eventBus != nil {
		s.eventBus.Publish(Event{Type: EventGraphUpdated, Payload: graph})
	}

	return graph, nil
}

func (s *TopologyService) scanFailed(err error) error {
	logging.Warn("Scan failed", zap.Error(err))
	if s.eventBus != nil {
		s.eventBus.Publish(Event{
			Type:    EventDevscanError,
			Payload: map[string]string{"error": err.Error()},
		})
	}
	return err
}

// persist stores the graph; a storage failure does not fail the scan
func (s *TopologyService) persist(coordinator string, graph *domain.Graph, elapsed time.Duration) {
	if s.repo == nil {
		return
	}

	addr, _ := domain.Normalize(coordinator)
	snapshot := &domain.Snapshot{
		Coordinator: addr,
		Graph:       graph,
		Stats: map[string]any{
			"nodes":       len(graph.Nodes),
			"links":       len(graph.Links),
			"duration_ms": elapsed.Milliseconds(),
		},
		CreatedAt: time.Now(),
	}

	// Persisting must outlive a scan context that is about to expire.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.SaveSnapshot(ctx, snapshot); err != nil {
		logging.Error("Failed to save snapshot", zap.Int64("version", graph.Version), zap.Error(err))
	}
}

// ClearResults drops the stored snapshot and resets the last results
func (s *TopologyService) ClearResults(ctx context.Context) error {
	if s.repo != nil {
		if err := s.repo.ClearSnapshot(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	empty := domain.NewGraph()
	empty.Version = s.last.Version + 1
	s.last = empty
	s.mu.Unlock()

	s.engine.SetVersionFloor(empty.Version)

	if s.eventBus != nil {
		s.eventBus.Publish(Event{Type: EventGraphUpdated, Payload: empty})
	}
	return nil
}

// Export writes the last results in the given format
func (s *TopologyService) Export(format string, w io.Writer) error {
	exporter, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	return exporter.Export(s.LastResults(), w)
}
