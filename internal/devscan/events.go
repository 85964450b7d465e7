package devscan

// EventPublisher receives discovery diagnostics
type EventPublisher interface {
	PublishDiscoveryEvent(eventType string, payload interface{})
}

// Event types published during a run
const (
	EventStarted       = "devscan-started"
	EventRequest       = "devscan-request"
	EventResponse      = "devscan-response"
	EventFailed        = "devscan-failed"
	EventUnresolvedHop = "devscan-unresolved-hop"
	EventHopCycle      = "devscan-hop-cycle"
	EventComplete      = "devscan-complete"
)

// RunStats summarizes a completed run
type RunStats struct {
	RunID      string `json:"run_id"`
	Dispatched int    `json:"dispatched"`
	Resolved   int    `json:"resolved"`
	Failed     int    `json:"failed"`
	Steps      int    `json:"steps"`
	Nodes      int    `json:"nodes"`
	Links      int    `json:"links"`
	DurationMS int64  `json:"duration_ms"`
}
