package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"envscope/internal/modules/analysis/scene"
)

// MarkdownExporter writes a readable transcript followed by the current record.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Environmental analysis %s\n\n", doc.SessionID)
	fmt.Fprintf(&b, "**Exported:** %s  \n", doc.ExportedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Messages:** %d\n\n", len(doc.Turns))
	b.WriteString("---\n\n## Conversation\n\n")

	for i, turn := range doc.Turns {
		fmt.Fprintf(&b, "**%s:** (%s)\n\n%s\n\n", turn.Role, turn.Time.UTC().Format("15:04:05"), escapeMarkdown(turn.Content))
		if i < len(doc.Turns)-1 {
			b.WriteString("---\n\n")
		}
	}

	b.WriteString("## Current record\n\n")
	if doc.Record == nil {
		b.WriteString("No environmental record has been extracted yet.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("| Card | Measure | Value |\n|---|---|---|\n")
	for _, card := range scene.Cards(doc.Record) {
		for _, line := range card.Lines {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", card.Title, line.Label, line.Value)
		}
	}

	payload, err := json.MarshalIndent(doc.Record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	fmt.Fprintf(&b, "\n```json\n%s\n```\n", payload)

	_, err = io.WriteString(w, b.String())
	return err
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string { return "md" }

func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
