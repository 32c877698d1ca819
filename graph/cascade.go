// ABOUTME: Simulates reference-count teardown on a graph snapshot
// ABOUTME: Computes which objects one released strong reference would finalize

package graph

// Cascade simulates releasing one strong reference to id and returns the
// objects that would be finalized as a result, in the order the store's
// engine finalizes them. It returns nil if the release would not bring the
// count to zero, or if id is unknown or already finalized.
//
// Unlike a tracing collector's retained set, this follows counts: an object
// owned by two others survives the loss of one of them.
func Cascade(g Graph, id ObjID) []ObjID {
	start := g.GetObject(id)
	if start == nil || start.Finalized || start.StrongCount == 0 {
		return nil
	}

	counts := make(map[ObjID]uint32)
	count := func(id ObjID) uint32 {
		if c, ok := counts[id]; ok {
			return c
		}
		return g.GetObject(id).StrongCount
	}

	counts[id] = start.StrongCount - 1
	if counts[id] > 0 {
		return nil
	}

	var finalized []ObjID
	pending := []ObjID{id}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		finalized = append(finalized, cur)

		for _, next := range g.GetObject(cur).Ptrs {
			obj := g.GetObject(next)
			if obj == nil || obj.Finalized {
				continue
			}
			c := count(next)
			if c == 0 {
				continue
			}
			counts[next] = c - 1
			if c == 1 {
				pending = append(pending, next)
			}
		}
	}
	return finalized
}
