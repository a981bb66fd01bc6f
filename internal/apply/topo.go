package apply

import "sort"

// topoSort orders ids dependency-first (a pack appears only after every
// dependency of its that is also in ids), using the same sorted-frontier
// Kahn's-algorithm shape as store.PackRegistry.hasCycleLocked and
// manifest.findCycle. ids is assumed acyclic — the manifest pipeline
// rejects cyclic manifests before an apply ever reaches here. Edges to ids
// outside the set are ignored (e.g. an already-installed dependency that
// isn't itself part of this apply).
func topoSort(ids []string, dependsOn func(string) []string) []string {
	inSet := map[string]bool{}
	for _, id := range ids {
		inSet[id] = true
	}

	indegree := map[string]int{}
	dependents := map[string][]string{} // dep -> packs (within ids) that depend on it
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range dependsOn(id) {
			if !inSet[dep] {
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string{}, dependents[id]...)
		sort.Strings(next)
		for _, n := range next {
			indegree[n]--
			if indegree[n] == 0 {
				queue = append(queue, n)
				sort.Strings(queue)
			}
		}
	}
	return order
}

// reversed returns a new slice with ids in reverse order.
func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
