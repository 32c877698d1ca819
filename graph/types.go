// ABOUTME: Core data types for the reference graph of a store snapshot
// ABOUTME: Defines Object, ObjID, EdgeKind and Roots structures

package graph

// ObjID is a unique identifier for a slot in the graph. 0 is reserved.
type ObjID uint64

// EdgeKind is the strength of a reference between two objects.
type EdgeKind uint8

const (
	// EdgeStrong is an owning reference; only strong edges keep objects alive.
	EdgeStrong EdgeKind = iota + 1
	// EdgeWeak is a checked non-owning reference.
	EdgeWeak
	// EdgeUnowned is an unchecked non-owning reference.
	EdgeUnowned
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeStrong:
		return "strong"
	case EdgeWeak:
		return "weak"
	case EdgeUnowned:
		return "unowned"
	default:
		return "invalid"
	}
}

// ParseEdgeKind is the inverse of EdgeKind.String.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch s {
	case "strong":
		return EdgeStrong, true
	case "weak":
		return EdgeWeak, true
	case "unowned":
		return EdgeUnowned, true
	}
	return 0, false
}

// Object represents a single slot
type Object struct {
	ID          ObjID   // Unique identifier
	Type        string  // Payload type name (e.g. "demo.Person")
	Size        uint64  // Payload size in bytes
	StrongCount uint32  // Strong references, from payloads and from outside
	WeakCount   uint32  // Weak references
	Finalized   bool    // Payload already released
	Ptrs        []ObjID // Strong edges: objects this object owns
	Weak        []ObjID // Weak edges
	Unowned     []ObjID // Unowned edges
}

// Edges returns the targets of this object's edges of the given kind.
func (o *Object) Edges(kind EdgeKind) []ObjID {
	switch kind {
	case EdgeStrong:
		return o.Ptrs
	case EdgeWeak:
		return o.Weak
	case EdgeUnowned:
		return o.Unowned
	}
	return nil
}

// Roots represents the externally held objects the analysis starts from
type Roots struct {
	IDs []ObjID // Object IDs that are roots
}
