// ABOUTME: Graph interface and in-memory implementation
// ABOUTME: Provides methods for storing and querying reference graphs

package graph

import (
	"sort"
	"sync"
)

// Graph represents a reference graph
type Graph interface {
	// AddObject adds an object to the graph, replacing any with the same ID
	AddObject(obj *Object)

	// GetObject retrieves an object by ID
	GetObject(id ObjID) *Object

	// NumObjects returns the total number of objects
	NumObjects() int

	// ForEachObject iterates over all objects in ascending ID order
	ForEachObject(fn func(*Object))

	// SetRoots sets the external roots
	SetRoots(roots Roots)

	// GetRoots returns the external roots
	GetRoots() Roots
}

// MemGraph is an in-memory implementation of Graph
type MemGraph struct {
	mu      sync.RWMutex
	objects map[ObjID]*Object
	order   []ObjID // sorted IDs, rebuilt lazily
	roots   Roots
}

// NewMemGraph creates a new in-memory graph
func NewMemGraph() *MemGraph {
	return &MemGraph{
		objects: make(map[ObjID]*Object),
	}
}

// AddObject adds an object to the graph
func (g *MemGraph) AddObject(obj *Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.objects[obj.ID]; !exists {
		g.order = nil
	}
	g.objects[obj.ID] = obj
}

// GetObject retrieves an object by ID
func (g *MemGraph) GetObject(id ObjID) *Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.objects[id]
}

// NumObjects returns the total number of objects
func (g *MemGraph) NumObjects() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// ForEachObject iterates over all objects in ascending ID order so that
// every analysis built on it is deterministic
func (g *MemGraph) ForEachObject(fn func(*Object)) {
	g.mu.Lock()
	if g.order == nil {
		g.order = make([]ObjID, 0, len(g.objects))
		for id := range g.objects {
			g.order = append(g.order, id)
		}
		sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })
	}
	objs := make([]*Object, 0, len(g.order))
	for _, id := range g.order {
		objs = append(objs, g.objects[id])
	}
	g.mu.Unlock()

	for _, obj := range objs {
		fn(obj)
	}
}

// SetRoots sets the external roots
func (g *MemGraph) SetRoots(roots Roots) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roots = roots
}

// GetRoots returns the external roots
func (g *MemGraph) GetRoots() Roots {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roots
}
