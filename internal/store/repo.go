package store

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// ContentRepo is a Git remote that has been added as a content source.
// Unique by normalized URL.
type ContentRepo struct {
	ID         string
	URL        string
	DefaultRef string
	BarePath   string
	LastFetched time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RepoUpdate carries the partial fields ContentRepoRegistry.Update may change.
type RepoUpdate struct {
	DefaultRef  *string
	BarePath    *string
	LastFetched *time.Time
}

// ContentRepoRegistry is the sole writer of the content_repo table.
type ContentRepoRegistry struct {
	mu    sync.Mutex
	clock Clock
	byID  map[string]*ContentRepo
	byURL map[string]string // normalized url -> id
}

func NewContentRepoRegistry(clock Clock) *ContentRepoRegistry {
	return &ContentRepoRegistry{
		clock: clock,
		byID:  map[string]*ContentRepo{},
		byURL: map[string]string{},
	}
}

// NormalizeURL trims surrounding whitespace, then one trailing slash, then a
// trailing ".git". Case is left alone (git URLs are case-sensitive in path).
func NormalizeURL(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	return u
}

// Add inserts a new ContentRepo. Returns a conflict error if the normalized
// URL already exists.
func (r *ContentRepoRegistry) Add(url, defaultRef string) (*ContentRepo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	norm := NormalizeURL(url)
	if _, exists := r.byURL[norm]; exists {
		return nil, ErrConflict("content_repo", norm)
	}
	now := r.clock.Now()
	repo := &ContentRepo{
		ID:         NewID(),
		URL:        norm,
		DefaultRef: defaultRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.byID[repo.ID] = repo
	r.byURL[norm] = repo.ID
	cp := *repo
	return &cp, nil
}

// Ensure upserts by normalized URL: returns the existing row (applying any
// provided update fields) or creates a new one. Idempotent.
func (r *ContentRepoRegistry) Ensure(url, defaultRef string, upd RepoUpdate) (*ContentRepo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	norm := NormalizeURL(url)
	if id, exists := r.byURL[norm]; exists {
		repo := r.byID[id]
		r.applyUpdateLocked(repo, upd)
		cp := *repo
		return &cp, nil
	}
	now := r.clock.Now()
	repo := &ContentRepo{
		ID:         NewID(),
		URL:        norm,
		DefaultRef: defaultRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.applyUpdateLocked(repo, upd)
	r.byID[repo.ID] = repo
	r.byURL[norm] = repo.ID
	cp := *repo
	return &cp, nil
}

func (r *ContentRepoRegistry) applyUpdateLocked(repo *ContentRepo, upd RepoUpdate) {
	changed := false
	if upd.DefaultRef != nil {
		repo.DefaultRef = *upd.DefaultRef
		changed = true
	}
	if upd.BarePath != nil {
		repo.BarePath = *upd.BarePath
		changed = true
	}
	if upd.LastFetched != nil {
		repo.LastFetched = *upd.LastFetched
		changed = true
	}
	if changed {
		repo.UpdatedAt = r.clock.Now()
	}
}

// Get returns the repo by id, or nil if absent.
func (r *ContentRepoRegistry) Get(id string) *ContentRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *repo
	return &cp
}

// GetByURL returns the repo by (normalized) URL, or nil if absent.
func (r *ContentRepoRegistry) GetByURL(url string) *ContentRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byURL[NormalizeURL(url)]
	if !ok {
		return nil
	}
	cp := *r.byID[id]
	return &cp
}

// Update applies a partial update by id. Returns not_found if absent.
func (r *ContentRepoRegistry) Update(id string, upd RepoUpdate) (*ContentRepo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound("content_repo", id)
	}
	r.applyUpdateLocked(repo, upd)
	cp := *repo
	return &cp, nil
}

// Delete removes the repo row. Callers are responsible for cascading to refs
// and the bare directory first (see gitmgr.Manager.RemoveRepo).
func (r *ContentRepoRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	repo, ok := r.byID[id]
	if !ok {
		return ErrNotFound("content_repo", id)
	}
	delete(r.byID, id)
	delete(r.byURL, repo.URL)
	return nil
}

// List returns all repos sorted by URL ascending (the natural key).
func (r *ContentRepoRegistry) List() []*ContentRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ContentRepo, 0, len(r.byID))
	for _, repo := range r.byID {
		cp := *repo
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
