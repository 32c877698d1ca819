// ABOUTME: Tests for the parser registry system
// ABOUTME: Validates parser registration, format sniffing and selection

package dump

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prateek/arclens/graph"
)

// mockParser accepts input that mentions its name
type mockParser struct {
	name   string
	parsed bool
}

func (p *mockParser) CanParse(r io.Reader) bool {
	buf := make([]byte, 100)
	n, _ := r.Read(buf)
	return strings.Contains(string(buf[:n]), p.name)
}

func (p *mockParser) Parse(r io.Reader) (graph.Graph, error) {
	p.parsed = true
	return graph.NewMemGraph(), nil
}

// isolateRegistry swaps in an empty registry for the duration of a test.
func isolateRegistry(t *testing.T) {
	t.Helper()
	saved := registry
	registry = &parserRegistry{parsers: make([]Parser, 0)}
	t.Cleanup(func() { registry = saved })
}

func TestRegister(t *testing.T) {
	isolateRegistry(t)

	Register(&mockParser{name: "parser1"})
	Register(&mockParser{name: "parser2"})

	if len(registry.parsers) != 2 {
		t.Errorf("Expected 2 parsers registered, got %d", len(registry.parsers))
	}
}

func TestOpen(t *testing.T) {
	isolateRegistry(t)
	Register(&mockParser{name: "json"})
	Register(&mockParser{name: "yaml"})

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"JSON file", "json dump data", false},
		{"YAML file", "yaml dump data", false},
		{"Unknown format", "unknown format", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(strings.NewReader(tt.content))
			if tt.wantErr && !errors.Is(err, ErrNoParser) {
				t.Errorf("Expected ErrNoParser, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestParserSelection(t *testing.T) {
	isolateRegistry(t)
	fallback := &mockParser{name: "fallback"}
	specific := &mockParser{name: "specific"}
	Register(fallback)
	Register(specific)

	g, err := Open(strings.NewReader("specific format data"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if g == nil {
		t.Error("Expected graph, got nil")
	}
	if fallback.parsed || !specific.parsed {
		t.Errorf("Wrong parser selected: fallback=%v specific=%v", fallback.parsed, specific.parsed)
	}
}

func TestOpenBuiltinFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"JSON", `{"objects": [{"id": 1, "strong": 1}], "roots": [1]}`},
		{"YAML", "objects:\n  - id: 1\n    strong: 1\nroots: [1]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Open(strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if g.NumObjects() != 1 || g.GetObject(1).StrongCount != 1 {
				t.Errorf("Unexpected graph contents")
			}
		})
	}
}

func TestOpenLargeDump(t *testing.T) {
	// The document is larger than the sniffing window.
	var b strings.Builder
	b.WriteString(`{"store": "big", "objects": [`)
	for i := 1; i <= 2000; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id": %d, "strong": 1}`, i)
	}
	b.WriteString(`], "roots": []}`)

	g, err := Open(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if g.NumObjects() != 2000 {
		t.Errorf("Expected 2000 objects, got %d", g.NumObjects())
	}
}

func TestThreadSafeRegistry(t *testing.T) {
	isolateRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			Register(&mockParser{name: string(rune('a' + id))})
		}(i)
	}
	wg.Wait()

	if len(registry.parsers) != 10 {
		t.Errorf("Expected 10 parsers after concurrent registration, got %d", len(registry.parsers))
	}
}
