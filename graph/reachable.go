// ABOUTME: Reachability from the GC roots
// ABOUTME: The reference answer a finished marking cycle must agree with

package graph

// Reachable returns the set of objects reachable from the roots. Weak edges
// are followed only when withWeak is set. Dangling IDs are ignored.
func Reachable(g Graph, withWeak bool) map[ObjID]bool {
	seen := make(map[ObjID]bool)
	var stack []ObjID

	push := func(id ObjID) {
		if seen[id] || g.GetObject(id) == nil {
			return
		}
		seen[id] = true
		stack = append(stack, id)
	}

	for _, id := range g.GetRoots().IDs {
		push(id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		obj := g.GetObject(id)
		for _, p := range obj.Ptrs {
			push(p)
		}
		if withWeak {
			for _, p := range obj.WeakPtrs {
				push(p)
			}
		}
	}
	return seen
}

// Unreachable returns the IDs of objects not reachable from the roots, in
// ID order
func Unreachable(g Graph, withWeak bool) []ObjID {
	live := Reachable(g, withWeak)
	var dead []ObjID
	g.ForEachObject(func(obj *Object) {
		if !live[obj.ID] {
			dead = append(dead, obj.ID)
		}
	})
	return dead
}
