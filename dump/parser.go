// ABOUTME: Parser interface for reference graph dump formats
// ABOUTME: Defines the contract for pluggable dump readers

package dump

import (
	"io"

	"github.com/prateek/arclens/graph"
)

// Parser reads one dump format.
type Parser interface {
	// CanParse reports whether the preview looks like this parser's format.
	// The reader holds at most the first few kilobytes of the dump.
	CanParse(r io.Reader) bool

	// Parse reads the whole dump and builds a graph
	Parse(r io.Reader) (graph.Graph, error)
}
