// Package gitmgr is the Git Content Manager from spec.md §4.2: it owns one
// bare mirror per remote repository URL and one checked-out worktree per
// (repo, ref) pair, reconciling both with the ContentRepo/ContentRef
// registries. Modeled on the pack's gitclone.Manager/Repository split
// (see DESIGN.md) — a Manager holding a locked map of per-url state, each
// entry serializing its own git operations.
package gitmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/contentpacks/cpack/internal/store"
)

type mirrorStateKind int

const (
	mirrorEmpty mirrorStateKind = iota
	mirrorCloning
	mirrorReady
)

// mirrorEntry is the per-url state: one bare clone plus the mutex that
// serializes every git command against it (spec.md §5: "Git operations on
// the same bare repo are serialized by a per-url lock").
type mirrorEntry struct {
	mu    sync.Mutex
	state mirrorStateKind
	url   string
	path  string
}

// worktreeEntry is the per-(url,ref) state, serialized independently of its
// parent mirror's lock (spec.md §5: "worktree operations ... serialized by
// a per-(url, ref) lock").
type worktreeEntry struct {
	mu   sync.Mutex
	url  string
	ref  string
	path string
}

// Manager owns the on-disk cache root and reconciles it with the registries.
type Manager struct {
	root string

	mirrorsMu sync.RWMutex
	mirrors   map[string]*mirrorEntry // key: urlHash(url)

	worktreesMu sync.RWMutex
	worktrees   map[string]*worktreeEntry // key: urlHash(url)+"/"+refHash(ref)

	store *store.Store
}

// New creates a Manager rooted at root (created if absent) backed by st.
func New(root string, st *store.Store) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("gitmgr: root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "cache"), 0o750); err != nil {
		return nil, fmt.Errorf("gitmgr: create cache dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "worktrees"), 0o750); err != nil {
		return nil, fmt.Errorf("gitmgr: create worktrees dir: %w", err)
	}
	return &Manager{
		root:      root,
		mirrors:   map[string]*mirrorEntry{},
		worktrees: map[string]*worktreeEntry{},
		store:     st,
	}, nil
}

func (m *Manager) mirrorEntryFor(url string) *mirrorEntry {
	key := urlHash(url)
	m.mirrorsMu.RLock()
	e, ok := m.mirrors[key]
	m.mirrorsMu.RUnlock()
	if ok {
		return e
	}
	m.mirrorsMu.Lock()
	defer m.mirrorsMu.Unlock()
	if e, ok = m.mirrors[key]; ok {
		return e
	}
	path := barePathFor(m.root, url)
	state := mirrorEmpty
	if _, err := os.Stat(filepath.Join(path, "HEAD")); err == nil {
		state = mirrorReady
	}
	e = &mirrorEntry{state: state, url: url, path: path}
	m.mirrors[key] = e
	return e
}

func (m *Manager) worktreeEntryFor(url, ref string) *worktreeEntry {
	key := urlHash(url) + "/" + refHash(ref)
	m.worktreesMu.RLock()
	e, ok := m.worktrees[key]
	m.worktreesMu.RUnlock()
	if ok {
		return e
	}
	m.worktreesMu.Lock()
	defer m.worktreesMu.Unlock()
	if e, ok = m.worktrees[key]; ok {
		return e
	}
	e = &worktreeEntry{url: url, ref: ref, path: worktreePathFor(m.root, url, ref)}
	m.worktrees[key] = e
	return e
}

// Reconcile performs the startup scan named in spec.md §4.2: worktrees
// without a matching ContentRef are pruned; refs without an on-disk
// worktree are left alone (lazy recreation happens on next EnsureWorktree
// call, not here).
func (m *Manager) Reconcile(ctx context.Context) error {
	m.worktreesMu.Lock()
	defer m.worktreesMu.Unlock()

	root := filepath.Join(m.root, "worktrees")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("gitmgr: reconcile: %w", err)
	}

	known := map[string]bool{}
	for _, repo := range m.store.Repos.List() {
		for _, ref := range m.store.Refs.ListByRepo(repo.ID) {
			known[urlHash(repo.URL)+"/"+refHash(ref.SourceRef)] = true
		}
	}

	for _, urlDir := range entries {
		if !urlDir.IsDir() {
			continue
		}
		refDirs, err := os.ReadDir(filepath.Join(root, urlDir.Name()))
		if err != nil {
			continue
		}
		for _, refDir := range refDirs {
			key := urlDir.Name() + "/" + refDir.Name()
			if known[key] {
				continue
			}
			_ = os.RemoveAll(filepath.Join(root, urlDir.Name(), refDir.Name()))
		}
	}
	return nil
}
