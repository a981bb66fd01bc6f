package manifest

import (
	"context"
	"sync"
	"time"
)

// CacheLookupStatus mirrors the three-way distinction the teacher's model
// catalog lookup makes (found / found-but-stale / not-found), applied here
// to manifest cache entries instead of model ids.
type CacheLookupStatus int

const (
	CacheMiss CacheLookupStatus = iota
	CacheHitFresh
	CacheHitStale
)

// CacheEntry is the derived bundle kept per (repo_url, ref) key.
type CacheEntry struct {
	Manifest    Manifest
	Hierarchy   []HierarchyNode
	Graph       Graph
	Stats       Stats
	Hash        string
	FetchedAt   time.Time
	LastFetched time.Time // the ContentRef.LastFetched this entry was built against
}

type cacheKey struct {
	repoURL string
	ref     string
}

// entryState additionally tracks a per-key mutex so concurrent misses on the
// same key coalesce into a single build instead of racing redundant
// fetch+parse+validate+derive work. No x/sync/singleflight dependency
// appears anywhere in the retrieved example pack, so this coalescer is
// hand-rolled rather than fabricated (see DESIGN.md).
type entryState struct {
	mu    sync.Mutex
	entry *CacheEntry
}

// Source supplies the inputs Store needs to build a CacheEntry: where to
// read the manifest from, and the ref's current last_fetched stamp (used to
// invalidate the cache — spec.md §4.3: "invalidated whenever last_fetched
// advances, contractual not best-effort").
type Source interface {
	WorktreePath(repoURL, ref string) string
	HTTPURL(repoURL, ref string) string
	LastFetched(repoURL, ref string) time.Time
}

// Store is the manifest cache layer (spec.md §4.3's "Store").
type Store struct {
	fetcher *Fetcher
	source  Source

	mu      sync.Mutex
	entries map[cacheKey]*entryState
}

// NewStore builds a Store backed by fetcher and source.
func NewStore(fetcher *Fetcher, source Source) *Store {
	return &Store{
		fetcher: fetcher,
		source:  source,
		entries: map[cacheKey]*entryState{},
	}
}

func (s *Store) stateFor(key cacheKey) *entryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[key]
	if !ok {
		st = &entryState{}
		s.entries[key] = st
	}
	return st
}

// Get returns the full cache entry for (repoURL, ref), rebuilding it if
// stale or absent. fromCache reports whether a prebuilt entry was reused.
func (s *Store) Get(ctx context.Context, repoURL, ref string) (CacheEntry, bool, error) {
	return s.get(ctx, repoURL, ref, false)
}

// Refresh bypasses the cache unconditionally (the `?refresh=1` / `refresh`
// getter named in spec.md §4.3 and §6).
func (s *Store) Refresh(ctx context.Context, repoURL, ref string) (CacheEntry, error) {
	entry, _, err := s.get(ctx, repoURL, ref, true)
	return entry, err
}

func (s *Store) get(ctx context.Context, repoURL, ref string, forceRefresh bool) (CacheEntry, bool, error) {
	key := cacheKey{repoURL: repoURL, ref: ref}
	st := s.stateFor(key)

	st.mu.Lock()
	defer st.mu.Unlock()

	lastFetched := s.source.LastFetched(repoURL, ref)
	if !forceRefresh && st.entry != nil && st.entry.LastFetched.Equal(lastFetched) {
		return *st.entry, true, nil
	}

	entry, err := s.build(ctx, repoURL, ref, lastFetched)
	if err != nil {
		return CacheEntry{}, false, err
	}
	st.entry = &entry
	return entry, false, nil
}

func (s *Store) build(ctx context.Context, repoURL, ref string, lastFetched time.Time) (CacheEntry, error) {
	worktreePath := s.source.WorktreePath(repoURL, ref)
	httpURL := s.source.HTTPURL(repoURL, ref)

	raw, err := s.fetcher.Fetch(ctx, worktreePath, httpURL)
	if err != nil {
		return CacheEntry{}, err
	}
	m, err := Validate(raw)
	if err != nil {
		return CacheEntry{}, err
	}
	hierarchy, graph, stats := Derive(m)
	return CacheEntry{
		Manifest:    m,
		Hierarchy:   hierarchy,
		Graph:       graph,
		Stats:       stats,
		Hash:        Hash(m),
		FetchedAt:   time.Now().UTC(),
		LastFetched: lastFetched,
	}, nil
}

// GetManifest is the selective getter returning only the Manifest.
func (s *Store) GetManifest(ctx context.Context, repoURL, ref string) (Manifest, bool, error) {
	e, fromCache, err := s.Get(ctx, repoURL, ref)
	return e.Manifest, fromCache, err
}

// GetHierarchy is the selective getter returning only the Hierarchy.
func (s *Store) GetHierarchy(ctx context.Context, repoURL, ref string) ([]HierarchyNode, bool, error) {
	e, fromCache, err := s.Get(ctx, repoURL, ref)
	return e.Hierarchy, fromCache, err
}

// GetGraph is the selective getter returning only the Graph.
func (s *Store) GetGraph(ctx context.Context, repoURL, ref string) (Graph, bool, error) {
	e, fromCache, err := s.Get(ctx, repoURL, ref)
	return e.Graph, fromCache, err
}

// Invalidate drops any cached entry for (repoURL, ref), forcing the next Get
// to rebuild regardless of last_fetched. Used when a caller knows content
// changed out-of-band (e.g. a just-completed repo_sync operation).
func (s *Store) Invalidate(repoURL, ref string) {
	key := cacheKey{repoURL: repoURL, ref: ref}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
