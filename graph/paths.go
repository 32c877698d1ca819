// ABOUTME: BFS algorithm for finding ownership paths from objects to roots
// ABOUTME: Answers "what keeps this object alive" over strong edges only

package graph

// Path represents a path from an object to a root
type Path struct {
	IDs []ObjID // Sequence of object IDs from target to root
}

// PathsToRoots finds up to maxPaths ownership paths from an object to the
// graph's roots using BFS over reversed strong edges. Shorter paths come
// first. Weak and unowned edges never keep anything alive and are ignored.
func PathsToRoots(g Graph, from ObjID, maxPaths int) []Path {
	if maxPaths <= 0 || g.GetObject(from) == nil {
		return nil
	}

	reverse := BuildReverseEdges(g)

	rootSet := make(map[ObjID]bool)
	for _, id := range g.GetRoots().IDs {
		rootSet[id] = true
	}

	if rootSet[from] {
		return []Path{{IDs: []ObjID{from}}}
	}

	type searchNode struct {
		id   ObjID
		path []ObjID
	}

	var result []Path
	queue := []searchNode{{id: from, path: []ObjID{from}}}

	for len(queue) > 0 && len(result) < maxPaths {
		node := queue[0]
		queue = queue[1:]

		seen := make(map[ObjID]bool, len(reverse[node.id]))
		for _, owner := range reverse[node.id] {
			// One path per distinct owner, and never revisit a node on the
			// current path.
			if seen[owner] || contains(node.path, owner) {
				continue
			}
			seen[owner] = true

			newPath := make([]ObjID, len(node.path)+1)
			copy(newPath, node.path)
			newPath[len(node.path)] = owner

			if rootSet[owner] {
				result = append(result, Path{IDs: newPath})
				if len(result) >= maxPaths {
					break
				}
				continue
			}
			queue = append(queue, searchNode{id: owner, path: newPath})
		}
	}

	return result
}

func contains(ids []ObjID, id ObjID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
