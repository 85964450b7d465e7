package domain

import (
	"fmt"
	"sync"
	"time"
)

// Graph is the topology produced by one discovery run
type Graph struct {
	Version int64  `json:"version" yaml:"version"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
	Links   []Link `json:"links" yaml:"links"`
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]Node, 0),
		Links: make([]Link, 0),
	}
}

// AddNode appends a node
func (g *Graph) AddNode(node Node) {
	g.Nodes = append(g.Nodes, node)
}

// AddLink appends a link
func (g *Graph) AddLink(link Link) {
	g.Links = append(g.Links, link)
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks that node ids are unique and every link endpoint exists
func (g *Graph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("duplicate node %s", n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, l := range g.Links {
		if _, ok := ids[l.Source]; !ok {
			return fmt.Errorf("link source %s not in node list", l.Source)
		}
		if _, ok := ids[l.Target]; !ok {
			return fmt.Errorf("link target %s not in node list", l.Target)
		}
	}
	return nil
}

// VersionClock hands out strictly increasing millisecond timestamps
type VersionClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewVersionClock creates a clock backed by time.Now
func NewVersionClock() *VersionClock {
	return &VersionClock{now: time.Now}
}

// Next returns the current time in milliseconds, bumped past the previous value if needed
func (c *VersionClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.now().UnixMilli()
	if v <= c.last {
		v = c.last + 1
	}
	c.last = v
	return v
}

// Observe raises the clock floor to v so later versions stay above it
func (c *VersionClock) Observe(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.last {
		c.last = v
	}
}
