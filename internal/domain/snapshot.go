package domain

import "time"

// Snapshot is the persisted result of the most recent discovery run
type Snapshot struct {
	Coordinator Address        `json:"coordinator"`
	Graph       *Graph         `json:"graph"`
	Stats       map[string]any `json:"stats,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
