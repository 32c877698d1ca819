// ABOUTME: Reachability and strongly connected component analysis over strong edges
// ABOUTME: Detects retain cycles that reference counting can never free

package graph

import "sort"

// Reachable marks every object transitively reachable from roots along
// strong edges. Roots that are not in the graph are ignored.
func Reachable(g Graph, roots []ObjID) map[ObjID]bool {
	marked := make(map[ObjID]bool)
	var stack []ObjID
	for _, id := range roots {
		if g.GetObject(id) != nil && !marked[id] {
			marked[id] = true
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.GetObject(id).Ptrs {
			if marked[next] || g.GetObject(next) == nil {
				continue
			}
			marked[next] = true
			stack = append(stack, next)
		}
	}
	return marked
}

// StronglyConnected returns the strongly connected components of the strong
// subgraph induced by the objects for which include returns true, using
// Tarjan's algorithm. IDs within a component are ascending and components
// are ordered by their smallest ID.
func StronglyConnected(g Graph, include func(*Object) bool) [][]ObjID {
	var (
		index   = make(map[ObjID]int)
		lowlink = make(map[ObjID]int)
		onStack = make(map[ObjID]bool)
		stack   []ObjID
		next    int
		comps   [][]ObjID
	)

	in := func(id ObjID) bool {
		obj := g.GetObject(id)
		return obj != nil && include(obj)
	}

	var strongConnect func(v ObjID)
	strongConnect = func(v ObjID) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.GetObject(v).Ptrs {
			if !in(w) {
				continue
			}
			if _, visited := index[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] == index[v] {
			var comp []ObjID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
			comps = append(comps, comp)
		}
	}

	g.ForEachObject(func(obj *Object) {
		if _, visited := index[obj.ID]; !visited && include(obj) {
			strongConnect(obj.ID)
		}
	})

	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// IsCycle reports whether a strongly connected component actually contains a
// cycle: more than one member, or a single member that owns itself.
func IsCycle(g Graph, comp []ObjID) bool {
	if len(comp) > 1 {
		return true
	}
	if len(comp) == 0 {
		return false
	}
	obj := g.GetObject(comp[0])
	return obj != nil && contains(obj.Ptrs, obj.ID)
}

// LeakedCycles returns the strong cycles among live objects that are not
// reachable from roots. Under pure reference counting each of them keeps
// its own counts above zero forever.
func LeakedCycles(g Graph, roots []ObjID) [][]ObjID {
	reached := Reachable(g, roots)
	leaked := func(obj *Object) bool {
		return !obj.Finalized && obj.StrongCount > 0 && !reached[obj.ID]
	}

	var cycles [][]ObjID
	for _, comp := range StronglyConnected(g, leaked) {
		if IsCycle(g, comp) {
			cycles = append(cycles, comp)
		}
	}
	return cycles
}

// Stranded returns live objects that are not reachable from roots, are not
// part of any of the given cycles, but are strongly owned (directly or
// transitively) by a member of one. They leak because the cycle does.
func Stranded(g Graph, roots []ObjID, cycles [][]ObjID) []ObjID {
	inCycle := make(map[ObjID]bool)
	var members []ObjID
	for _, c := range cycles {
		for _, id := range c {
			inCycle[id] = true
			members = append(members, id)
		}
	}

	reached := Reachable(g, roots)
	var stranded []ObjID
	for id := range Reachable(g, members) {
		if !inCycle[id] && !reached[id] {
			stranded = append(stranded, id)
		}
	}
	sort.Slice(stranded, func(i, j int) bool { return stranded[i] < stranded[j] })
	return stranded
}
