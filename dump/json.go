// ABOUTME: JSON codec for reference graph dumps
// ABOUTME: Reads and writes the objects/roots document as JSON

package dump

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prateek/arclens/graph"
)

// JSONParser parses JSON dumps.
type JSONParser struct{}

// CanParse accepts input whose first non-space byte opens a JSON object that
// mentions an "objects" key.
func (p *JSONParser) CanParse(r io.Reader) bool {
	buf := make([]byte, previewSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false
	}
	preview := bytes.TrimLeft(buf[:n], " \t\r\n")
	if len(preview) == 0 || preview[0] != '{' {
		return false
	}
	return bytes.Contains(preview, []byte(`"objects"`))
}

// Parse reads a JSON dump and builds a graph
func (p *JSONParser) Parse(r io.Reader) (graph.Graph, error) {
	doc, err := DecodeJSON(r)
	if err != nil {
		return nil, err
	}
	g, err := doc.Graph()
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DecodeJSON reads a JSON document without validating it.
func DecodeJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if doc.Objects == nil {
		return nil, fmt.Errorf("%w: no objects key", ErrInvalidDump)
	}
	return &doc, nil
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func init() {
	Register(&JSONParser{})
}
