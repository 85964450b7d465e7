package devscan

import (
	"time"

	"github.com/google/uuid"

	"meshscope/internal/domain"
)

// session holds the mutable state of one discovery run.
// It is owned by the engine's loop goroutine and never shared.
type session struct {
	id            string
	started       time.Time
	coordinator   domain.Address
	coordinatorID domain.NodeIdentifier

	queue   []domain.Address
	records map[domain.Address]*domain.ScanRecord
	lookup  map[domain.NodeIdentifier]domain.Address

	inFlight   int
	dispatched int
	steps      int
}

func newSession(coordinator domain.Address) *session {
	s := &session{
		id:            uuid.NewString(),
		started:       time.Now(),
		coordinator:   coordinator,
		coordinatorID: domain.DeriveIdentifier(coordinator),
		records:       make(map[domain.Address]*domain.ScanRecord),
		lookup:        make(map[domain.NodeIdentifier]domain.Address),
	}
	s.register(s.coordinatorID, coordinator)
	s.enqueue(coordinator)
	return s
}

// enqueue appends addr unconditionally; duplicates are dropped at dequeue
func (s *session) enqueue(addr domain.Address) {
	s.queue = append(s.queue, addr)
}

// dequeue pops the next address that has no record yet
func (s *session) dequeue() (domain.Address, bool) {
	for len(s.queue) > 0 {
		addr := s.queue[0]
		s.queue = s.queue[1:]
		s.steps++
		if _, seen := s.records[addr]; seen {
			continue
		}
		return addr, true
	}
	return "", false
}

// markPending records addr as dispatched
func (s *session) markPending(addr domain.Address) {
	s.records[addr] = &domain.ScanRecord{State: domain.RecordPending}
	s.inFlight++
	s.dispatched++
}

// resolve stores the parsed routes of a successful response
func (s *session) resolve(addr domain.Address, payload string) domain.Routes {
	s.inFlight--
	routes := s.parse(payload)
	s.records[addr] = &domain.ScanRecord{State: domain.RecordResolved, Routes: routes}
	return routes
}

// fail marks addr as failed after a transport error or timeout
func (s *session) fail(addr domain.Address) {
	s.inFlight--
	s.records[addr] = &domain.ScanRecord{State: domain.RecordFailed}
}

// parse converts a payload to routes and feeds every reported peer back
// into the lookup table and the queue
func (s *session) parse(payload string) domain.Routes {
	entries := ParsePayload(payload)
	for _, e := range entries {
		s.register(domain.DeriveIdentifier(e.Peer), e.Peer)
		s.enqueue(e.Peer)
	}
	return Routes(entries)
}

// register keeps the first address seen for an identifier
func (s *session) register(id domain.NodeIdentifier, addr domain.Address) {
	if _, ok := s.lookup[id]; !ok {
		s.lookup[id] = addr
	}
}

// quiescent reports whether the run is complete
func (s *session) quiescent() bool {
	return len(s.queue) == 0 && s.inFlight == 0
}

func (s *session) stats() RunStats {
	st := RunStats{
		RunID:      s.id,
		Dispatched: s.dispatched,
		Steps:      s.steps,
		DurationMS: time.Since(s.started).Milliseconds(),
	}
	for _, r := range s.records {
		switch r.State {
		case domain.RecordResolved:
			st.Resolved++
		case domain.RecordFailed:
			st.Failed++
		}
	}
	return st
}
