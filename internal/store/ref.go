package store

import (
	"sort"
	"sync"
	"time"
)

// ContentRef is a named ref (branch/tag) within a ContentRepo. Unique by
// (repo_id, source_ref).
type ContentRef struct {
	ID                  string
	RepoID              string
	SourceRef           string
	LastCommit          string
	ManifestHash        string
	ManifestLastParsed  time.Time
	WorktreePath        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RefUpdate carries the partial fields ContentRefRegistry.Update may change.
type RefUpdate struct {
	LastCommit         *string
	ManifestHash       *string
	ManifestLastParsed *time.Time
	WorktreePath       *string
}

type refKey struct {
	repoID string
	ref    string
}

// ContentRefRegistry is the sole writer of the content_ref table.
type ContentRefRegistry struct {
	mu   sync.Mutex
	clock Clock
	byID map[string]*ContentRef
	byKey map[refKey]string
}

func NewContentRefRegistry(clock Clock) *ContentRefRegistry {
	return &ContentRefRegistry{
		clock: clock,
		byID:  map[string]*ContentRef{},
		byKey: map[refKey]string{},
	}
}

// Ensure upserts by (repoID, sourceRef). Idempotent.
func (r *ContentRefRegistry) Ensure(repoID, sourceRef string, upd RefUpdate) (*ContentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := refKey{repoID, sourceRef}
	if id, exists := r.byKey[key]; exists {
		ref := r.byID[id]
		r.applyUpdateLocked(ref, upd)
		cp := *ref
		return &cp, nil
	}
	now := r.clock.Now()
	ref := &ContentRef{
		ID:         NewID(),
		RepoID:     repoID,
		SourceRef:  sourceRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.applyUpdateLocked(ref, upd)
	r.byID[ref.ID] = ref
	r.byKey[key] = ref.ID
	cp := *ref
	return &cp, nil
}

func (r *ContentRefRegistry) applyUpdateLocked(ref *ContentRef, upd RefUpdate) {
	changed := false
	if upd.LastCommit != nil {
		ref.LastCommit = *upd.LastCommit
		changed = true
	}
	if upd.ManifestHash != nil {
		ref.ManifestHash = *upd.ManifestHash
		changed = true
	}
	if upd.ManifestLastParsed != nil {
		ref.ManifestLastParsed = *upd.ManifestLastParsed
		changed = true
	}
	if upd.WorktreePath != nil {
		ref.WorktreePath = *upd.WorktreePath
		changed = true
	}
	if changed {
		ref.UpdatedAt = r.clock.Now()
	}
}

// Get returns the ref by id, or nil if absent.
func (r *ContentRefRegistry) Get(id string) *ContentRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *ref
	return &cp
}

// GetByKey returns the ref by (repoID, sourceRef), or nil if absent.
func (r *ContentRefRegistry) GetByKey(repoID, sourceRef string) *ContentRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[refKey{repoID, sourceRef}]
	if !ok {
		return nil
	}
	cp := *r.byID[id]
	return &cp
}

// Update applies a partial update by id.
func (r *ContentRefRegistry) Update(id string, upd RefUpdate) (*ContentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound("content_ref", id)
	}
	r.applyUpdateLocked(ref, upd)
	cp := *ref
	return &cp, nil
}

// Delete removes the ref row.
func (r *ContentRefRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.byID[id]
	if !ok {
		return ErrNotFound("content_ref", id)
	}
	delete(r.byID, id)
	delete(r.byKey, refKey{ref.RepoID, ref.SourceRef})
	return nil
}

// ListByRepo returns all refs for repoID sorted by source_ref ascending.
func (r *ContentRefRegistry) ListByRepo(repoID string) []*ContentRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ContentRef, 0)
	for _, ref := range r.byID {
		if ref.RepoID == repoID {
			cp := *ref
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceRef < out[j].SourceRef })
	return out
}

// DeleteByRepo removes all refs belonging to repoID and returns their ids.
func (r *ContentRefRegistry) DeleteByRepo(repoID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, ref := range r.byID {
		if ref.RepoID == repoID {
			ids = append(ids, id)
			delete(r.byID, id)
			delete(r.byKey, refKey{ref.RepoID, ref.SourceRef})
		}
	}
	sort.Strings(ids)
	return ids
}
