package codec

import (
	"fmt"
	"io"

	"meshscope/internal/domain"
)

// Exporter writes a topology graph in a specific format
type Exporter interface {
	Export(graph *domain.Graph, w io.Writer) error
	Format() string
	ContentType() string
}

// ForFormat returns the exporter registered for format
func ForFormat(format string) (Exporter, error) {
	switch format {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
