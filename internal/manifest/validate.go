package manifest

import (
	"sort"

	"github.com/contentpacks/cpack/internal/store"
	"gopkg.in/yaml.v3"
)

// Validate runs full manifest validation: JSON Schema structural checks,
// schema_version enforcement, and the semantic rules JSON Schema can't
// express (at-least-one-of pages/contains/depends_on, cross-reference
// resolution, cycle rejection over contains+depends_on).
func Validate(raw []byte) (Manifest, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Manifest{}, store.NewError(store.KindParse, "decoding manifest for validation: %v", err)
	}
	if err := ValidateStructure(doc); err != nil {
		return Manifest{}, err
	}

	m, err := Parse(raw)
	if err != nil {
		return Manifest{}, err
	}
	if err := ValidateSchemaVersion(m.SchemaVersion); err != nil {
		return Manifest{}, err
	}
	if err := validateSemantics(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func validateSemantics(m Manifest) error {
	for _, id := range m.SortedPackIDs() {
		p := m.Packs[id]
		if p.Version == "" {
			return store.NewError(store.KindSchema, "pack %q is missing required field version", id)
		}
		if len(p.Pages) == 0 && len(p.Contains) == 0 && len(p.DependsOn) == 0 {
			return store.NewError(store.KindSchema, "pack %q must declare at least one of pages, contains, depends_on", id)
		}
		for _, ref := range p.Contains {
			if _, ok := m.Packs[ref]; !ok {
				return store.NewError(store.KindSchema, "pack %q contains unknown pack %q", id, ref)
			}
		}
		for _, ref := range p.DependsOn {
			if _, ok := m.Packs[ref]; !ok {
				return store.NewError(store.KindSchema, "pack %q depends_on unknown pack %q", id, ref)
			}
		}
	}
	if cycle := findCycle(m); cycle != nil {
		return store.NewError(store.KindSchema, "manifest contains a pack reference cycle: %v", cycle)
	}
	return nil
}

// findCycle runs Kahn's algorithm over the union of contains+depends_on
// edges and returns every pack id that never reaches indegree zero (the
// cycle's nodes and anything they reach), sorted, if a cycle exists, nil
// otherwise.
func findCycle(m Manifest) []string {
	indegree := map[string]int{}
	adj := map[string][]string{}
	for _, id := range m.SortedPackIDs() {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		p := m.Packs[id]
		for _, ref := range append(append([]string{}, p.Contains...), p.DependsOn...) {
			adj[id] = append(adj[id], ref)
			indegree[ref]++
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := map[string]bool{}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited[n] = true
		next := append([]string{}, adj[n]...)
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
				sort.Strings(queue)
			}
		}
	}

	if len(visited) == len(indegree) {
		return nil
	}
	var remaining []string
	for id := range indegree {
		if !visited[id] {
			remaining = append(remaining, id)
		}
	}
	sort.Strings(remaining)
	return remaining
}
