package manifest

import "sort"

// Derive computes the three pure outputs named in spec.md §4.3: Hierarchy,
// Graph, Stats. Manifest is assumed already validated (referential
// integrity and acyclicity both hold).
func Derive(m Manifest) (Hierarchy []HierarchyNode, G Graph, S Stats) {
	return deriveHierarchy(m), deriveGraph(m), deriveStats(m)
}

// deriveHierarchy builds the forest of pack nodes. A pack is a root iff no
// other pack's `contains` lists it.
func deriveHierarchy(m Manifest) []HierarchyNode {
	contained := map[string]bool{}
	for _, id := range m.SortedPackIDs() {
		for _, child := range m.Packs[id].Contains {
			contained[child] = true
		}
	}

	var roots []string
	for _, id := range m.SortedPackIDs() {
		if !contained[id] {
			roots = append(roots, id)
		}
	}

	seen := map[string]bool{}
	var build func(id string) HierarchyNode
	build = func(id string) HierarchyNode {
		p := m.Packs[id]
		node := HierarchyNode{ID: id, Version: p.Version, Pages: p.SortedPageNames()}
		if seen[id] {
			// Defensive: validated manifests are acyclic, so this only
			// guards against a pack appearing under multiple parents,
			// which is legal (contains is not itself a tree).
			return node
		}
		seen[id] = true
		children := append([]string{}, p.Contains...)
		sort.Strings(children)
		for _, childID := range children {
			node.Children = append(node.Children, build(childID))
		}
		return node
	}

	nodes := make([]HierarchyNode, 0, len(roots))
	for _, id := range roots {
		seen = map[string]bool{}
		nodes = append(nodes, build(id))
	}
	return nodes
}

func deriveGraph(m Manifest) Graph {
	g := Graph{}
	for _, id := range m.SortedPackIDs() {
		p := m.Packs[id]
		contains := append([]string{}, p.Contains...)
		sort.Strings(contains)
		for _, to := range contains {
			g.Contains = append(g.Contains, Edge{From: id, To: to})
		}
		depends := append([]string{}, p.DependsOn...)
		sort.Strings(depends)
		for _, to := range depends {
			g.Depends = append(g.Depends, Edge{From: id, To: to})
		}
	}
	return g
}

func deriveStats(m Manifest) Stats {
	pages := 0
	for _, p := range m.Packs {
		pages += len(p.Pages)
	}
	return Stats{PackCount: len(m.Packs), PageCount: pages}
}
