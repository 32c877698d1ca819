// ABOUTME: Format-neutral dump document shared by the JSON and YAML codecs
// ABOUTME: Converts between reference graphs and their serialized records

package dump

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/prateek/arclens/graph"
)

// ErrInvalidDump is wrapped by every validation failure while building a
// graph from a decoded document.
var ErrInvalidDump = errors.New("invalid dump")

// Document is the serialized form of a reference graph.
type Document struct {
	ID      string        `json:"id,omitempty" yaml:"id,omitempty"`
	Store   string        `json:"store,omitempty" yaml:"store,omitempty"`
	Objects []Record      `json:"objects" yaml:"objects"`
	Roots   []graph.ObjID `json:"roots" yaml:"roots"`
}

// Record is one object in a dump.
type Record struct {
	ID        graph.ObjID `json:"id" yaml:"id"`
	Type      string      `json:"type,omitempty" yaml:"type,omitempty"`
	Size      uint64      `json:"size,omitempty" yaml:"size,omitempty"`
	Strong    *uint32     `json:"strong,omitempty" yaml:"strong,omitempty"`
	Weak      uint32      `json:"weak,omitempty" yaml:"weak,omitempty"`
	Finalized bool        `json:"finalized,omitempty" yaml:"finalized,omitempty"`
	Edges     []Edge      `json:"edges,omitempty" yaml:"edges,omitempty"`

	// Ptrs is a shorthand list of strong edges.
	Ptrs []graph.ObjID `json:"ptrs,omitempty" yaml:"ptrs,omitempty"`
}

// Edge is one outgoing reference of a record.
type Edge struct {
	To   graph.ObjID `json:"to" yaml:"to"`
	Kind string      `json:"kind" yaml:"kind"`
}

// FromGraph builds a document holding every object and root of g, under a
// fresh dump id.
func FromGraph(g graph.Graph) *Document {
	doc := &Document{
		ID:      uuid.New().String(),
		Objects: make([]Record, 0, g.NumObjects()),
		Roots:   append([]graph.ObjID{}, g.GetRoots().IDs...),
	}
	g.ForEachObject(func(obj *graph.Object) {
		strong := obj.StrongCount
		rec := Record{
			ID:        obj.ID,
			Type:      obj.Type,
			Size:      obj.Size,
			Strong:    &strong,
			Weak:      obj.WeakCount,
			Finalized: obj.Finalized,
		}
		for _, kind := range []graph.EdgeKind{graph.EdgeStrong, graph.EdgeWeak, graph.EdgeUnowned} {
			for _, to := range obj.Edges(kind) {
				rec.Edges = append(rec.Edges, Edge{To: to, Kind: kind.String()})
			}
		}
		doc.Objects = append(doc.Objects, rec)
	})
	return doc
}

// Graph validates the document and builds its graph. Records without a
// strong count get the number of strong edges pointing at them from inside
// the dump.
func (d *Document) Graph() (*graph.MemGraph, error) {
	g := graph.NewMemGraph()
	var missing []*graph.Object

	for i, rec := range d.Objects {
		if rec.ID == 0 {
			return nil, fmt.Errorf("%w: object at index %d missing id", ErrInvalidDump, i)
		}
		if g.GetObject(rec.ID) != nil {
			return nil, fmt.Errorf("%w: duplicate object id %d", ErrInvalidDump, rec.ID)
		}

		obj := &graph.Object{
			ID:        rec.ID,
			Type:      rec.Type,
			Size:      rec.Size,
			WeakCount: rec.Weak,
			Finalized: rec.Finalized,
			Ptrs:      append([]graph.ObjID(nil), rec.Ptrs...),
		}
		for _, e := range rec.Edges {
			if e.To == 0 {
				return nil, fmt.Errorf("%w: object %d has an edge to id 0", ErrInvalidDump, rec.ID)
			}
			kind, ok := graph.ParseEdgeKind(e.Kind)
			if !ok {
				return nil, fmt.Errorf("%w: object %d has unknown edge kind %q", ErrInvalidDump, rec.ID, e.Kind)
			}
			switch kind {
			case graph.EdgeStrong:
				obj.Ptrs = append(obj.Ptrs, e.To)
			case graph.EdgeWeak:
				obj.Weak = append(obj.Weak, e.To)
			case graph.EdgeUnowned:
				obj.Unowned = append(obj.Unowned, e.To)
			}
		}
		if rec.Strong != nil {
			obj.StrongCount = *rec.Strong
		} else {
			missing = append(missing, obj)
		}
		g.AddObject(obj)
	}

	if len(missing) > 0 {
		internal := graph.InternalStrong(g)
		for _, obj := range missing {
			obj.StrongCount = internal[obj.ID]
		}
	}

	g.SetRoots(graph.Roots{IDs: append([]graph.ObjID{}, d.Roots...)})
	return g, nil
}
