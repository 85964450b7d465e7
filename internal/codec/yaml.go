package codec

import (
	"fmt"
	"io"

	"meshscope/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of the encoded output
func (c *YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

// yamlGraph is the document layout; addresses and identifiers are plain strings
type yamlGraph struct {
	Version int64      `yaml:"version"`
	Nodes   []yamlNode `yaml:"nodes"`
	Links   []yamlLink `yaml:"links"`
}

type yamlNode struct {
	ID         string `yaml:"id"`
	Address    string `yaml:"address"`
	Identifier string `yaml:"identifier"`
	Type       string `yaml:"type"`
}

type yamlLink struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Export writes the graph as YAML
func (c *YAMLCodec) Export(graph *domain.Graph, w io.Writer) error {
	if graph == nil {
		graph = domain.NewGraph()
	}

	yg := yamlGraph{
		Version: graph.Version,
		Nodes:   make([]yamlNode, 0, len(graph.Nodes)),
		Links:   make([]yamlLink, 0, len(graph.Links)),
	}

	for _, node := range graph.Nodes {
		yg.Nodes = append(yg.Nodes, yamlNode{
			ID:         node.ID,
			Address:    string(node.Address),
			Identifier: string(node.Identifier),
			Type:       string(node.Type),
		})
	}

	for _, link := range graph.Links {
		yg.Links = append(yg.Links, yamlLink{Source: link.Source, Target: link.Target})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yg); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
