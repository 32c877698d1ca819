// ABOUTME: Output format selection for dump writers
// ABOUTME: Maps format names to the JSON and YAML encoders

package dump

import (
	"fmt"
	"io"
	"strings"

	"github.com/prateek/arclens/graph"
)

// Format names a dump encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a format name. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown dump format %q", s)
}

// Encode writes doc in the given format.
func Encode(w io.Writer, format Format, doc *Document) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatYAML:
		return WriteYAML(w, doc)
	}
	return fmt.Errorf("unknown dump format %q", format)
}

// Write serializes g in the given format.
func Write(w io.Writer, format Format, g graph.Graph) error {
	return Encode(w, format, FromGraph(g))
}
