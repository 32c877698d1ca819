// ABOUTME: YAML codec for reference graph dumps
// ABOUTME: Reads and writes the objects/roots document as YAML

package dump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prateek/arclens/graph"
)

// YAMLParser parses YAML dumps.
type YAMLParser struct{}

// CanParse accepts block-style YAML with a top-level objects key. Flow-style
// documents that start with '{' are left to the JSON parser.
func (p *YAMLParser) CanParse(r io.Reader) bool {
	buf := make([]byte, previewSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false
	}
	preview := bytes.TrimLeft(buf[:n], " \t\r\n")
	if len(preview) == 0 || preview[0] == '{' || preview[0] == '[' {
		return false
	}

	scanner := bufio.NewScanner(bytes.NewReader(preview))
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "objects:") {
			return true
		}
	}
	return false
}

// Parse reads a YAML dump and builds a graph
func (p *YAMLParser) Parse(r io.Reader) (graph.Graph, error) {
	doc, err := DecodeYAML(r)
	if err != nil {
		return nil, err
	}
	g, err := doc.Graph()
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DecodeYAML reads a YAML document without validating it.
func DecodeYAML(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	if doc.Objects == nil {
		return nil, fmt.Errorf("%w: no objects key", ErrInvalidDump)
	}
	return &doc, nil
}

// WriteYAML writes doc as YAML.
func WriteYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func init() {
	Register(&YAMLParser{})
}
