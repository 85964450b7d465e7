package domain

// RecordState is the lifecycle state of a scan record within one run
type RecordState string

const (
	RecordPending  RecordState = "pending"
	RecordResolved RecordState = "resolved"
	RecordFailed   RecordState = "failed"
)

// Routes maps a peer identifier to its next hop toward the coordinator.
// NoHop means the peer is a direct neighbor of the node that reported it.
type Routes map[NodeIdentifier]NodeIdentifier

// ScanRecord is the per-address entry of a discovery run
type ScanRecord struct {
	State  RecordState
	Routes Routes
}

// Hop returns the recorded hop for peer and whether an entry exists
func (r *ScanRecord) Hop(peer NodeIdentifier) (NodeIdentifier, bool) {
	if r == nil || r.State != RecordResolved {
		return NoHop, false
	}
	hop, ok := r.Routes[peer]
	return hop, ok
}
