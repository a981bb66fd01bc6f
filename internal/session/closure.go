package session

import (
	"fmt"
	"sort"

	"github.com/contentpacks/cpack/internal/manifest"
)

// ApplyInstallClosure auto-selects, for install, every pack transitively
// required by packName's depends_on edges that isn't already installed and
// isn't already selected for install. Each newly selected pack's
// auto_selected_reason names the pack that pulled it in. Ties (multiple
// candidates at the same BFS frontier) are broken by pack name, per
// spec.md §4.4.
func ApplyInstallClosure(m manifest.Manifest, state map[string]*PackState, packName string) []string {
	var autoSelected []string
	visited := map[string]bool{packName: true}
	frontier := []string{packName}

	for len(frontier) > 0 {
		deps := map[string]string{} // dep id -> requiring pack id (first discovered)
		for _, id := range frontier {
			pack, ok := m.Packs[id]
			if !ok {
				continue
			}
			names := append([]string{}, pack.DependsOn...)
			sort.Strings(names)
			for _, dep := range names {
				if _, already := deps[dep]; !already {
					deps[dep] = id
				}
			}
		}

		var depNames []string
		for dep := range deps {
			depNames = append(depNames, dep)
		}
		sort.Strings(depNames)

		var next []string
		for _, dep := range depNames {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			next = append(next, dep)

			ps, ok := state[dep]
			if !ok || ps.Installed || ps.Action == ActionInstall {
				continue
			}
			ps.Action = ActionInstall
			reason := fmt.Sprintf("required by %s", deps[dep])
			ps.AutoSelectedReason = &reason
			autoSelected = append(autoSelected, dep)
		}
		frontier = next
	}

	sort.Strings(autoSelected)
	return autoSelected
}

// ApplyRemovalClosure auto-selects, for removal, every currently-installed
// pack whose depends_on chain runs through packName — removing packName
// would otherwise leave a dangling dependency. Ties broken by pack name.
func ApplyRemovalClosure(m manifest.Manifest, state map[string]*PackState, packName string) []string {
	dependents := map[string][]string{} // pack id -> packs that depend_on it
	for _, id := range m.SortedPackIDs() {
		for _, dep := range m.Packs[id].DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var autoSelected []string
	visited := map[string]bool{packName: true}
	frontier := []string{packName}

	for len(frontier) > 0 {
		removedOf := map[string]string{} // dependent id -> removed pack it depends on (first discovered)
		for _, id := range frontier {
			ds := append([]string{}, dependents[id]...)
			sort.Strings(ds)
			for _, dep := range ds {
				if _, already := removedOf[dep]; !already {
					removedOf[dep] = id
				}
			}
		}

		var candidates []string
		for dep := range removedOf {
			candidates = append(candidates, dep)
		}
		sort.Strings(candidates)

		var next []string
		for _, dep := range candidates {
			if visited[dep] {
				continue
			}
			visited[dep] = true

			ps, ok := state[dep]
			if !ok || !ps.Installed {
				continue
			}
			next = append(next, dep)
			if ps.Action == ActionRemove {
				continue
			}
			ps.Action = ActionRemove
			reason := fmt.Sprintf("dependency of %s removed", removedOf[dep])
			ps.AutoSelectedReason = &reason
			autoSelected = append(autoSelected, dep)
		}
		frontier = next
	}

	sort.Strings(autoSelected)
	return autoSelected
}
