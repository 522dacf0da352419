// ABOUTME: Builds reverse edges for graph traversal
// ABOUTME: Maps objects to their referrers for paths-to-roots

package graph

// ReverseEdges maps each object to the objects that point to it
type ReverseEdges map[ObjID][]ObjID

// BuildReverseEdges creates a map of reverse edges. Each referrer appears
// once per target even if it holds several references to it. Weak edges
// are included only when withWeak is set.
func BuildReverseEdges(g Graph, withWeak bool) ReverseEdges {
	reverse := make(ReverseEdges)

	g.ForEachObject(func(obj *Object) {
		seen := make(map[ObjID]bool)
		add := func(targets []ObjID) {
			for _, targetID := range targets {
				if seen[targetID] {
					continue
				}
				seen[targetID] = true
				reverse[targetID] = append(reverse[targetID], obj.ID)
			}
		}
		add(obj.Ptrs)
		if withWeak {
			add(obj.WeakPtrs)
		}
	})

	return reverse
}
