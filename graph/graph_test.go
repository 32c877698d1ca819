// ABOUTME: Tests for the graph data structures and interfaces
// ABOUTME: Validates object storage, typed edges and deterministic iteration

package graph

import (
	"reflect"
	"testing"
)

func TestObjectEdges(t *testing.T) {
	obj := &Object{
		ID:      1,
		Type:    "demo.Person",
		Ptrs:    []ObjID{2},
		Weak:    []ObjID{3},
		Unowned: []ObjID{4},
	}

	tests := []struct {
		kind EdgeKind
		want []ObjID
	}{
		{EdgeStrong, []ObjID{2}},
		{EdgeWeak, []ObjID{3}},
		{EdgeUnowned, []ObjID{4}},
		{EdgeKind(0), nil},
	}
	for _, tt := range tests {
		if got := obj.Edges(tt.kind); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Edges(%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestEdgeKindRoundTrip(t *testing.T) {
	for _, k := range []EdgeKind{EdgeStrong, EdgeWeak, EdgeUnowned} {
		got, ok := ParseEdgeKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseEdgeKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseEdgeKind("borrowed"); ok {
		t.Error("ParseEdgeKind accepted an unknown kind")
	}
}

func TestGraphInterface(t *testing.T) {
	g := NewMemGraph()

	g.AddObject(&Object{ID: 1, Type: "root", StrongCount: 1, Ptrs: []ObjID{2}})
	g.AddObject(&Object{ID: 2, Type: "child", StrongCount: 1})

	retrieved := g.GetObject(1)
	if retrieved == nil {
		t.Fatal("Expected to retrieve object 1")
	}
	if retrieved.ID != 1 {
		t.Errorf("Expected ID 1, got %d", retrieved.ID)
	}

	if g.NumObjects() != 2 {
		t.Errorf("Expected 2 objects, got %d", g.NumObjects())
	}

	g.SetRoots(Roots{IDs: []ObjID{1}})
	roots := g.GetRoots()
	if len(roots.IDs) != 1 || roots.IDs[0] != 1 {
		t.Errorf("Expected root [1], got %v", roots.IDs)
	}
}

func TestForEachObjectIsOrdered(t *testing.T) {
	g := NewMemGraph()
	for _, id := range []ObjID{5, 3, 9, 1, 7} {
		g.AddObject(&Object{ID: id})
	}

	var got []ObjID
	g.ForEachObject(func(obj *Object) { got = append(got, obj.ID) })
	want := []ObjID{1, 3, 5, 7, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("iteration order = %v, want %v", got, want)
	}

	// Adding after an iteration must invalidate the cached order.
	g.AddObject(&Object{ID: 4})
	got = nil
	g.ForEachObject(func(obj *Object) { got = append(got, obj.ID) })
	want = []ObjID{1, 3, 4, 5, 7, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("iteration order after add = %v, want %v", got, want)
	}
}

func TestIDUniqueness(t *testing.T) {
	g := NewMemGraph()

	g.AddObject(&Object{ID: 1, Type: "first"})
	g.AddObject(&Object{ID: 1, Type: "duplicate"})

	if g.NumObjects() != 1 {
		t.Errorf("Expected 1 object after duplicate ID, got %d", g.NumObjects())
	}
	if got := g.GetObject(1).Type; got != "duplicate" {
		t.Errorf("Expected duplicate to replace first, got type %s", got)
	}
}

func TestReverseEdgesFollowStrongOnly(t *testing.T) {
	g := NewMemGraph()
	g.AddObject(&Object{ID: 1, Ptrs: []ObjID{3}, Weak: []ObjID{2}})
	g.AddObject(&Object{ID: 2, Ptrs: []ObjID{3, 3}, Unowned: []ObjID{1}})
	g.AddObject(&Object{ID: 3})

	reverse := BuildReverseEdges(g)
	if want := []ObjID{1, 2, 2}; !reflect.DeepEqual(reverse[3], want) {
		t.Errorf("reverse[3] = %v, want %v", reverse[3], want)
	}
	if len(reverse[1]) != 0 || len(reverse[2]) != 0 {
		t.Errorf("non-owning edges leaked into reverse map: %v", reverse)
	}

	internal := InternalStrong(g)
	if internal[3] != 3 {
		t.Errorf("InternalStrong[3] = %d, want 3", internal[3])
	}
}

func TestNilObjectHandling(t *testing.T) {
	g := NewMemGraph()

	if obj := g.GetObject(999); obj != nil {
		t.Error("Expected nil for non-existent object")
	}
	if g.NumObjects() != 0 {
		t.Errorf("Expected 0 objects in empty graph, got %d", g.NumObjects())
	}
}
