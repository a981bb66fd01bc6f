package gitmgr

import (
	"context"
	"os"

	"github.com/contentpacks/cpack/internal/store"
)

// RemoveRef removes the worktree directory and the ContentRef row.
func (m *Manager) RemoveRef(ctx context.Context, url, ref string) error {
	repo := m.store.Repos.GetByURL(url)
	if repo == nil {
		return store.ErrNotFound("content_repo", url)
	}
	refRow := m.store.Refs.GetByKey(repo.ID, ref)
	if refRow == nil {
		return store.ErrNotFound("content_ref", ref)
	}

	wt := m.worktreeEntryFor(url, ref)
	wt.mu.Lock()
	if wt.path != "" {
		if _, err := runGit(ctx, "", "--git-dir", barePathFor(m.root, url), "worktree", "remove", "--force", wt.path); err != nil {
			// Best-effort: if git doesn't know about the worktree anymore
			// (e.g. already manually removed), fall back to a plain rm.
			_ = os.RemoveAll(wt.path)
		}
	}
	wt.mu.Unlock()

	m.worktreesMu.Lock()
	delete(m.worktrees, urlHash(url)+"/"+refHash(ref))
	m.worktreesMu.Unlock()

	return m.store.Refs.Delete(refRow.ID)
}

// RemoveRepo removes all refs (via RemoveRef), then the bare directory,
// then the repo row.
func (m *Manager) RemoveRepo(ctx context.Context, url string) error {
	repo := m.store.Repos.GetByURL(url)
	if repo == nil {
		return store.ErrNotFound("content_repo", url)
	}
	for _, ref := range m.store.Refs.ListByRepo(repo.ID) {
		if err := m.RemoveRef(ctx, url, ref.SourceRef); err != nil {
			return err
		}
	}

	mirror := m.mirrorEntryFor(url)
	mirror.mu.Lock()
	if mirror.path != "" {
		_ = os.RemoveAll(mirror.path)
	}
	mirror.state = mirrorEmpty
	mirror.mu.Unlock()

	m.mirrorsMu.Lock()
	delete(m.mirrors, urlHash(url))
	m.mirrorsMu.Unlock()

	return m.store.Repos.Delete(repo.ID)
}
