package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"envscope/internal/modules/analysis/types"
)

// Document is the exported view of one session.
type Document struct {
	SessionID  string                     `json:"sessionId" yaml:"sessionId"`
	ExportedAt time.Time                  `json:"exportedAt" yaml:"exportedAt"`
	Turns      []types.ConversationTurn   `json:"turns" yaml:"turns"`
	Record     *types.EnvironmentalRecord `json:"record" yaml:"record"`
}

// Exporter writes a Document in one format.
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter returns the exporter for format; an empty format means json.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// Filename names the download for doc in the exporter's format.
func Filename(doc *Document, e Exporter) string {
	id := doc.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("envscope-%s-%s.%s", id, doc.ExportedAt.UTC().Format("20060102T150405Z"), e.Extension())
}
