package session

import (
	"fmt"
	"sort"
)

// TitleOwnership reports, for a final_title, whether an existing wiki page
// already owns it and (if so) which pack installed it — exists is false if
// the wiki has no page at that title. Implemented by internal/wiki.Client in production;
// tests inject a map-backed stub.
type TitleOwnership interface {
	OwnerOf(finalTitle string) (packName string, exists bool)
}

// DependencyLookup resolves a pack's declared depends_on list. Implemented
// by ManifestDeps in production.
type DependencyLookup interface {
	DependsOnOf(pack string) ([]string, bool)
}

// ComputeWarnings recomputes every warning class named in spec.md §4.4:
// (a) external title collisions, (b) pack-pack collisions within the
// session, (c) missing dependencies.
func ComputeWarnings(m DependencyLookup, state map[string]*PackState, ownership TitleOwnership) []string {
	var warnings []string

	// (b) pack-pack collisions within the session: same final_title claimed
	// by pages belonging to two different install/update packs.
	titleOwners := map[string][]string{}
	for _, packName := range sortedPackNames(state) {
		ps := state[packName]
		if ps.Action != ActionInstall && ps.Action != ActionUpdate {
			continue
		}
		for _, pageName := range sortedPageNames(ps.Pages) {
			title := ps.Pages[pageName].FinalTitle
			titleOwners[title] = append(titleOwners[title], packName)
		}
	}
	for _, title := range sortedKeys(titleOwners) {
		owners := titleOwners[title]
		if len(owners) > 1 {
			sort.Strings(owners)
			warnings = append(warnings, fmt.Sprintf("page title %q is claimed by multiple packs: %v", title, owners))
		}
	}

	// (a) external title collisions: final_title equals an existing wiki
	// page not owned by this pack.
	if ownership != nil {
		for _, packName := range sortedPackNames(state) {
			ps := state[packName]
			if ps.Action != ActionInstall && ps.Action != ActionUpdate {
				continue
			}
			for _, pageName := range sortedPageNames(ps.Pages) {
				title := ps.Pages[pageName].FinalTitle
				owner, exists := ownership.OwnerOf(title)
				if exists && owner != packName {
					warnings = append(warnings, fmt.Sprintf("page title %q collides with an existing page owned by %q", title, owner))
				}
			}
		}
	}

	// (c) missing dependencies.
	for _, packName := range sortedPackNames(state) {
		ps := state[packName]
		if ps.Action != ActionInstall && ps.Action != ActionUpdate {
			continue
		}
		deps, ok := m.DependsOnOf(packName)
		if !ok {
			continue
		}
		for _, dep := range deps {
			depState, known := state[dep]
			if !known {
				warnings = append(warnings, fmt.Sprintf("pack %q depends on unknown pack %q", packName, dep))
				continue
			}
			if !depState.Installed && depState.Action != ActionInstall {
				warnings = append(warnings, fmt.Sprintf("pack %q depends on %q, which is neither installed nor selected for install", packName, dep))
			}
		}
	}

	sort.Strings(warnings)
	return warnings
}

func sortedPackNames(state map[string]*PackState) []string {
	names := make([]string, 0, len(state))
	for n := range state {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedPageNames(pages map[string]*PageState) []string {
	names := make([]string, 0, len(pages))
	for n := range pages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string][]string) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
