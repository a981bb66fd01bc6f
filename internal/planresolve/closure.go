// Package planresolve computes the read-only selection closure and the flat
// apply plan handed to the orchestrator (spec.md §4.5). Unlike
// internal/session's closure, which mutates a live PackSessionState as a
// side effect of a command, this package is pure: given a manifest and a
// set of inputs, it returns a value, following the same deterministic
// sorted-BFS shape as internal/session/closure.go.
package planresolve

import (
	"sort"

	"github.com/contentpacks/cpack/internal/manifest"
)

// Closure is the transitive expansion of a manually-selected pack set under
// both the `contains` and `depends_on` edge sets.
type Closure struct {
	Packs      []string
	Pages      []string
	PageOwners map[string][]string
}

// ResolveClosure expands selected under Contains and DependsOn edges until
// fixpoint, then collects every page name declared by any pack in the
// resulting set. Unknown pack ids in selected are ignored — callers are
// expected to have already validated the selection against the manifest.
func ResolveClosure(m manifest.Manifest, selected []string) Closure {
	visited := map[string]bool{}
	var frontier []string
	for _, id := range selected {
		if _, ok := m.Packs[id]; ok && !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	for len(frontier) > 0 {
		edges := map[string]bool{}
		for _, id := range frontier {
			pack := m.Packs[id]
			for _, to := range pack.Contains {
				edges[to] = true
			}
			for _, to := range pack.DependsOn {
				edges[to] = true
			}
		}
		var next []string
		for to := range edges {
			if visited[to] {
				continue
			}
			if _, ok := m.Packs[to]; !ok {
				continue
			}
			visited[to] = true
			next = append(next, to)
		}
		sort.Strings(next)
		frontier = next
	}

	packs := make([]string, 0, len(visited))
	for id := range visited {
		packs = append(packs, id)
	}
	sort.Strings(packs)

	pageOwners := map[string][]string{}
	for _, id := range packs {
		for _, pageName := range m.Packs[id].SortedPageNames() {
			pageOwners[pageName] = append(pageOwners[pageName], id)
		}
	}
	pages := make([]string, 0, len(pageOwners))
	for pageName := range pageOwners {
		pages = append(pages, pageName)
	}
	sort.Strings(pages)

	return Closure{Packs: packs, Pages: pages, PageOwners: pageOwners}
}
