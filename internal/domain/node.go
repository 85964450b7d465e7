package domain

// NodeType tags a node for display
type NodeType string

const (
	NodeTypeCoordinator NodeType = "coordinator"
	NodeTypeController  NodeType = "controller"
)

// Node is a mesh device in the topology graph
type Node struct {
	ID         string         `json:"id" yaml:"id"`
	Address    Address        `json:"address" yaml:"address"`
	Identifier NodeIdentifier `json:"identifier" yaml:"identifier"`
	Type       NodeType       `json:"type" yaml:"type"`
}

// NewNode creates a node whose id is derived from its address
func NewNode(addr Address, identifier NodeIdentifier, nodeType NodeType) Node {
	return Node{
		ID:         addr.NodeID(),
		Address:    addr,
		Identifier: identifier,
		Type:       nodeType,
	}
}

// Link is a directed edge: Source reaches the coordinator through Target
type Link struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}
