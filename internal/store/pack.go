package store

import (
	"sort"
	"sync"
	"time"
)

// PackStatus is the installed-pack lifecycle state.
type PackStatus string

const (
	PackInstalled PackStatus = "installed"
	PackRemoved   PackStatus = "removed"
)

// Pack is an *installed* pack row — the registry record of a prior apply.
// Distinct from a manifest pack (the declarative YAML entity). Unique by
// (ref_id, name).
type Pack struct {
	ID           string
	RefID        string
	Name         string
	Version      string
	SourceCommit string
	InstalledBy  string
	InstalledAt  time.Time
	Status       PackStatus
	UpdatedAt    time.Time
}

// PackUpdate carries the partial fields PackRegistry.Update may change.
type PackUpdate struct {
	Version      *string
	SourceCommit *string
	InstalledBy  *string
	Status       *PackStatus
}

type packKey struct {
	refID string
	name  string
}

// PackRegistry is the sole writer of the pack table, plus the depends_on
// edge set (PackDependency).
type PackRegistry struct {
	mu    sync.Mutex
	clock Clock
	byID  map[string]*Pack
	byKey map[packKey]string
	// deps[packID] = set of depends_on pack ids (same ref only).
	deps map[string]map[string]bool
}

func NewPackRegistry(clock Clock) *PackRegistry {
	return &PackRegistry{
		clock: clock,
		byID:  map[string]*Pack{},
		byKey: map[packKey]string{},
		deps:  map[string]map[string]bool{},
	}
}

// Ensure upserts an installed pack row by (refID, name). Documented per
// spec.md §9 open question: installed_by is always overwritten with the
// latest caller on re-install, matching the source's observed behavior.
func (r *PackRegistry) Ensure(refID, name, version, sourceCommit, installedBy string) (*Pack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := packKey{refID, name}
	now := r.clock.Now()
	if id, exists := r.byKey[key]; exists {
		p := r.byID[id]
		p.Version = version
		p.SourceCommit = sourceCommit
		p.InstalledBy = installedBy // always latest caller, see DESIGN.md
		p.Status = PackInstalled
		p.UpdatedAt = now
		cp := *p
		return &cp, nil
	}
	p := &Pack{
		ID:           NewID(),
		RefID:        refID,
		Name:         name,
		Version:      version,
		SourceCommit: sourceCommit,
		InstalledBy:  installedBy,
		InstalledAt:  now,
		Status:       PackInstalled,
		UpdatedAt:    now,
	}
	r.byID[p.ID] = p
	r.byKey[key] = p.ID
	cp := *p
	return &cp, nil
}

// GetByKey returns the pack by (refID, name), or nil if absent. A removed
// row is still returned, with Status PackRemoved.
func (r *PackRegistry) GetByKey(refID, name string) *Pack {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[packKey{refID, name}]
	if !ok {
		return nil
	}
	cp := *r.byID[id]
	return &cp
}

// Get returns the pack by id, or nil if absent.
func (r *PackRegistry) Get(id string) *Pack {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Update applies a partial update by id.
func (r *PackRegistry) Update(id string, upd PackUpdate) (*Pack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound("pack", id)
	}
	changed := false
	if upd.Version != nil {
		p.Version = *upd.Version
		changed = true
	}
	if upd.SourceCommit != nil {
		p.SourceCommit = *upd.SourceCommit
		changed = true
	}
	if upd.InstalledBy != nil {
		p.InstalledBy = *upd.InstalledBy
		changed = true
	}
	if upd.Status != nil {
		p.Status = *upd.Status
		changed = true
	}
	if changed {
		p.UpdatedAt = r.clock.Now()
	}
	cp := *p
	return &cp, nil
}

// Remove marks a pack row as removed (soft-delete, preserving history) and
// clears its dependency edges.
func (r *PackRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound("pack", id)
	}
	p.Status = PackRemoved
	p.UpdatedAt = r.clock.Now()
	delete(r.deps, id)
	for _, set := range r.deps {
		delete(set, id)
	}
	return nil
}

// ListByRef returns all installed (status=installed) packs for refID,
// sorted by name ascending.
func (r *PackRegistry) ListByRef(refID string) []*Pack {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Pack, 0)
	for _, p := range r.byID {
		if p.RefID == refID && p.Status == PackInstalled {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDependencies replaces the depends_on edge set for packID with dependsOn
// (pack ids, same ref only). Returns a conflict error if this would create a
// cycle anywhere in the ref's dependency graph — the registry enforces the
// DAG invariant defensively even though manifest validation should already
// have rejected a cyclic manifest before any apply reaches here.
func (r *PackRegistry) SetDependencies(packID string, dependsOn []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.deps[packID]
	next := map[string]bool{}
	for _, d := range dependsOn {
		next[d] = true
	}
	r.deps[packID] = next
	if r.hasCycleLocked() {
		r.deps[packID] = prev
		return NewError(KindConflict, "dependency edge set for %s would introduce a cycle", packID)
	}
	return nil
}

// DependsOn returns the direct depends_on set for packID, sorted.
func (r *PackRegistry) DependsOn(packID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.deps[packID]))
	for id := range r.deps[packID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dependents returns the packs that directly depend on packID, sorted.
func (r *PackRegistry) Dependents(packID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, set := range r.deps {
		if set[packID] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// hasCycleLocked runs Kahn's algorithm over the directed graph where an edge
// pack -> dep means "pack depends on dep". indegree[x] counts edges pointing
// INTO x, i.e. how many packs depend on x.
func (r *PackRegistry) hasCycleLocked() bool {
	nodes := map[string]bool{}
	indegree := map[string]int{}
	for id, set := range r.deps {
		nodes[id] = true
		for dep := range set {
			nodes[dep] = true
		}
	}
	for id := range nodes {
		indegree[id] = 0
	}
	for _, set := range r.deps {
		for dep := range set {
			indegree[dep]++
		}
	}

	queue := make([]string, 0)
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue) // deterministic processing order
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for dep := range r.deps[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return visited != len(nodes)
}
