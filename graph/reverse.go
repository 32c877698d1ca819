// ABOUTME: Builds reverse strong edges for graph traversal
// ABOUTME: Maps objects to their owners for paths-to-roots

package graph

// ReverseEdges maps each object to the objects that strongly reference it
type ReverseEdges map[ObjID][]ObjID

// BuildReverseEdges creates a map of reverse strong edges. An object that
// owns another twice appears twice, matching the two counts it contributes.
func BuildReverseEdges(g Graph) ReverseEdges {
	reverse := make(ReverseEdges)

	g.ForEachObject(func(obj *Object) {
		for _, targetID := range obj.Ptrs {
			reverse[targetID] = append(reverse[targetID], obj.ID)
		}
	})

	return reverse
}

// InternalStrong returns, for each object, how many of its strong references
// come from payloads in the graph. StrongCount minus this is the number of
// references held from outside the graph.
func InternalStrong(g Graph) map[ObjID]uint32 {
	internal := make(map[ObjID]uint32)
	g.ForEachObject(func(obj *Object) {
		for _, targetID := range obj.Ptrs {
			internal[targetID]++
		}
	})
	return internal
}
