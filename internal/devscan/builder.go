package devscan

import (
	"sort"

	"meshscope/internal/domain"
)

// builder turns the final record table of a run into a graph
type builder struct {
	s       *session
	graph   *domain.Graph
	nodeIDs map[domain.NodeIdentifier]string
	publish func(eventType string, payload interface{})
}

func buildTopology(s *session, publish func(string, interface{})) *domain.Graph {
	b := &builder{
		s:       s,
		graph:   domain.NewGraph(),
		nodeIDs: make(map[domain.NodeIdentifier]string),
		publish: publish,
	}

	coordinatorNodeID := b.node(s.coordinatorID, s.coordinator)

	record := s.records[s.coordinator]
	if record == nil || record.State != domain.RecordResolved {
		return b.graph
	}

	peers := make([]domain.NodeIdentifier, 0, len(record.Routes))
	for peer := range record.Routes {
		if peer == s.coordinatorID {
			continue
		}
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	for _, peer := range peers {
		addr, ok := s.lookup[peer]
		if !ok {
			continue
		}
		source := b.node(peer, addr)

		hop := record.Routes[peer]
		target := coordinatorNodeID
		if hop != domain.NoHop {
			target, ok = b.chase(peer, hop)
			if !ok {
				continue
			}
		}

		b.graph.AddLink(domain.Link{Source: source, Target: target})
	}

	return b.graph
}

// node returns the graph id for identifier, creating the node on first use.
// The id comes from the first address seen for the identifier.
func (b *builder) node(identifier domain.NodeIdentifier, addr domain.Address) string {
	if id, ok := b.nodeIDs[identifier]; ok {
		return id
	}

	nodeType := domain.NodeTypeController
	if identifier == b.s.coordinatorID {
		nodeType = domain.NodeTypeCoordinator
	}
	node := domain.NewNode(addr, identifier, nodeType)
	b.nodeIDs[identifier] = node.ID
	b.graph.AddNode(node)
	return node.ID
}

// chase follows the hop chain toward dst's parent. It stops at the
// coordinator or at the first hop whose own routes have no indirection for dst. The visited set bounds the
// walk on cyclic data; a cycle links dst to the last hop reached.
func (b *builder) chase(dst, hop domain.NodeIdentifier) (string, bool) {
	visited := map[domain.NodeIdentifier]struct{}{dst: {}}
	last := ""

	for {
		if _, seen := visited[hop]; seen {
			b.publish(EventHopCycle, map[string]interface{}{
				"run_id":      b.s.id,
				"destination": dst,
				"hop":         hop,
			})
			return last, last != ""
		}
		visited[hop] = struct{}{}

		// Routes end at the coordinator, whatever its own table says.
		if hop == b.s.coordinatorID {
			return b.node(hop, b.s.coordinator), true
		}

		hopAddr, ok := b.s.lookup[hop]
		if !ok {
			b.publish(EventUnresolvedHop, map[string]interface{}{
				"run_id":      b.s.id,
				"destination": dst,
				"hop":         hop,
			})
			return "", false
		}
		hopNodeID := b.node(hop, hopAddr)

		next, ok := b.s.records[hopAddr].Hop(dst)
		if !ok || next == domain.NoHop {
			return hopNodeID, true
		}

		last = hopNodeID
		hop = next
	}
}
