// ABOUTME: Registry for dump parsers
// ABOUTME: Sniffs a dump's format and hands it to the matching parser

package dump

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/prateek/arclens/graph"
)

// previewSize is how much of a dump parsers get to look at when sniffing.
const previewSize = 4096

var (
	// ErrNoParser is returned when no parser can handle the dump format
	ErrNoParser = errors.New("no parser found for dump format")
)

type parserRegistry struct {
	mu      sync.RWMutex
	parsers []Parser
}

var registry = &parserRegistry{
	parsers: make([]Parser, 0),
}

// Register adds a parser to the registry. Parsers are tried in registration
// order.
func Register(p Parser) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.parsers = append(registry.parsers, p)
}

// Open reads a dump in any registered format and returns its graph.
func Open(r io.Reader) (graph.Graph, error) {
	br := bufio.NewReaderSize(r, previewSize)
	preview, err := br.Peek(previewSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	registry.mu.RLock()
	parsers := append([]Parser(nil), registry.parsers...)
	registry.mu.RUnlock()

	for _, parser := range parsers {
		if parser.CanParse(bytes.NewReader(preview)) {
			return parser.Parse(br)
		}
	}
	return nil, ErrNoParser
}
