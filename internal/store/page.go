package store

import (
	"sort"
	"sync"
	"time"
)

// Page is an *installed* wiki page row, written by a prior apply. Unique by
// (pack_id, name); final_title is additionally unique across all packs in
// the same ref (enforced by PageRegistry.Ensure as a conflict error, the
// "cross-pack collision" case named in spec.md §3).
type Page struct {
	ID            string
	PackID        string
	Name          string
	FinalTitle    string
	PageNamespace string
	WikiPageID    string
	LastRevID     string
	ContentHash   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PageUpdate carries the partial fields PageRegistry.Update may change.
type PageUpdate struct {
	FinalTitle    *string
	PageNamespace *string
	WikiPageID    *string
	LastRevID     *string
	ContentHash   *string
}

type pageKey struct {
	packID string
	name   string
}

// PageRegistry is the sole writer of the page table.
type PageRegistry struct {
	mu    sync.Mutex
	clock Clock
	byID  map[string]*Page
	byKey map[pageKey]string
	// byFinalTitle indexes final_title -> page id, scoped by refID (passed in
	// explicitly since Page itself doesn't carry ref_id — it's reached via
	// its pack). Keyed "refID\x00finalTitle".
	byFinalTitle map[string]string
}

func NewPageRegistry(clock Clock) *PageRegistry {
	return &PageRegistry{
		clock:        clock,
		byID:         map[string]*Page{},
		byKey:        map[pageKey]string{},
		byFinalTitle: map[string]string{},
	}
}

func finalTitleKey(refID, finalTitle string) string {
	return refID + "\x00" + finalTitle
}

// Ensure upserts a page row by (packID, name). refID scopes the final_title
// collision index. Returns a conflict error if finalTitle is already owned
// by a different page within the same ref.
func (r *PageRegistry) Ensure(refID, packID, name, finalTitle, namespace string) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pageKey{packID, name}
	ftKey := finalTitleKey(refID, finalTitle)

	if ownerID, exists := r.byFinalTitle[ftKey]; exists {
		if ownerID != r.byKey[key] {
			return nil, ErrConflict("page.final_title", finalTitle).WithContext(map[string]any{
				"final_title": finalTitle,
				"owner_page":  ownerID,
			})
		}
	}

	now := r.clock.Now()
	if id, exists := r.byKey[key]; exists {
		p := r.byID[id]
		if p.FinalTitle != finalTitle {
			delete(r.byFinalTitle, finalTitleKey(refID, p.FinalTitle))
			r.byFinalTitle[ftKey] = p.ID
		}
		p.FinalTitle = finalTitle
		p.PageNamespace = namespace
		p.UpdatedAt = now
		cp := *p
		return &cp, nil
	}

	p := &Page{
		ID:            NewID(),
		PackID:        packID,
		Name:          name,
		FinalTitle:    finalTitle,
		PageNamespace: namespace,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.byID[p.ID] = p
	r.byKey[key] = p.ID
	r.byFinalTitle[ftKey] = p.ID
	cp := *p
	return &cp, nil
}

// GetByKey returns the page by (packID, name), or nil if absent.
func (r *PageRegistry) GetByKey(packID, name string) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[pageKey{packID, name}]
	if !ok {
		return nil
	}
	cp := *r.byID[id]
	return &cp
}

// FindByFinalTitle returns the page owning finalTitle within refID, or nil.
func (r *PageRegistry) FindByFinalTitle(refID, finalTitle string) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byFinalTitle[finalTitleKey(refID, finalTitle)]
	if !ok {
		return nil
	}
	cp := *r.byID[id]
	return &cp
}

// Update applies a partial update by id.
func (r *PageRegistry) Update(refID, id string, upd PageUpdate) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound("page", id)
	}
	changed := false
	if upd.FinalTitle != nil && *upd.FinalTitle != p.FinalTitle {
		delete(r.byFinalTitle, finalTitleKey(refID, p.FinalTitle))
		r.byFinalTitle[finalTitleKey(refID, *upd.FinalTitle)] = p.ID
		p.FinalTitle = *upd.FinalTitle
		changed = true
	}
	if upd.PageNamespace != nil {
		p.PageNamespace = *upd.PageNamespace
		changed = true
	}
	if upd.WikiPageID != nil {
		p.WikiPageID = *upd.WikiPageID
		changed = true
	}
	if upd.LastRevID != nil {
		p.LastRevID = *upd.LastRevID
		changed = true
	}
	if upd.ContentHash != nil {
		p.ContentHash = *upd.ContentHash
		changed = true
	}
	if changed {
		p.UpdatedAt = r.clock.Now()
	}
	cp := *p
	return &cp, nil
}

// Delete removes the page row.
func (r *PageRegistry) Delete(refID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound("page", id)
	}
	delete(r.byID, id)
	delete(r.byKey, pageKey{p.PackID, p.Name})
	delete(r.byFinalTitle, finalTitleKey(refID, p.FinalTitle))
	return nil
}

// ListByPack returns all pages for packID sorted by name ascending.
func (r *PageRegistry) ListByPack(packID string) []*Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Page, 0)
	for _, p := range r.byID {
		if p.PackID == packID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteByPack removes all pages belonging to packID and returns their ids.
func (r *PageRegistry) DeleteByPack(refID, packID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, p := range r.byID {
		if p.PackID == packID {
			ids = append(ids, id)
			delete(r.byID, id)
			delete(r.byKey, pageKey{p.PackID, p.Name})
			delete(r.byFinalTitle, finalTitleKey(refID, p.FinalTitle))
		}
	}
	sort.Strings(ids)
	return ids
}
