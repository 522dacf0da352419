// ABOUTME: BFS search for paths from an object back to GC roots
// ABOUTME: Explains why the marker kept an object alive

package graph

// Path is a chain of strong references from a target back to a root
type Path struct {
	IDs []ObjID // Target first, root last
}

// maxSearchNodes bounds the BFS frontier on densely connected heaps
const maxSearchNodes = 1 << 16

// PathsToRoots returns up to maxPaths shortest simple paths from the object
// `from` back to a root, following strong references only
func PathsToRoots(g Graph, from ObjID, maxPaths int) []Path {
	if maxPaths <= 0 || g.GetObject(from) == nil {
		return nil
	}

	rootSet := make(map[ObjID]bool)
	for _, id := range g.GetRoots().IDs {
		rootSet[id] = true
	}
	if rootSet[from] {
		return []Path{{IDs: []ObjID{from}}}
	}

	reverse := BuildReverseEdges(g, false)

	var result []Path
	queue := [][]ObjID{{from}}
	expanded := 0
	for len(queue) > 0 && len(result) < maxPaths && expanded < maxSearchNodes {
		path := queue[0]
		queue = queue[1:]
		expanded++

		for _, referrer := range reverse[path[len(path)-1]] {
			if contains(path, referrer) {
				continue
			}
			next := make([]ObjID, len(path)+1)
			copy(next, path)
			next[len(path)] = referrer

			if rootSet[referrer] {
				result = append(result, Path{IDs: next})
				if len(result) >= maxPaths {
					break
				}
				continue
			}
			queue = append(queue, next)
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
