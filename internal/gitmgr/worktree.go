package gitmgr

import (
	"context"
	"os"

	"github.com/contentpacks/cpack/internal/store"
)

// EnsureWorktree requires the bare repo to already exist, creates the
// worktree if absent, resolves ref to a commit, and ensures a ContentRef row
// with worktree_path and last_commit.
func (m *Manager) EnsureWorktree(ctx context.Context, url, ref string) (string, error) {
	mirror := m.mirrorEntryFor(url)
	mirror.mu.Lock()
	barePath := mirror.path
	ready := mirror.state == mirrorReady
	mirror.mu.Unlock()
	if !ready {
		return "", store.NewError(store.KindNotFound, "no bare mirror for %s; call EnsureBareRepo first", url)
	}

	wt := m.worktreeEntryFor(url, ref)
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if _, err := os.Stat(wt.path); os.IsNotExist(err) {
		if _, err := runGit(ctx, "", "--git-dir", barePath, "worktree", "add", "--detach", wt.path, ref); err != nil {
			return "", store.NewError(store.KindFetch, "worktree add %s@%s: %v", url, ref, err)
		}
	}

	commit, err := resolveCommit(ctx, barePath, ref)
	if err != nil {
		return "", err
	}

	repo := m.store.Repos.GetByURL(url)
	if repo == nil {
		return "", store.ErrNotFound("content_repo", url)
	}
	path := wt.path
	if _, err := m.store.Refs.Ensure(repo.ID, ref, store.RefUpdate{
		LastCommit:   &commit,
		WorktreePath: &path,
	}); err != nil {
		return "", err
	}
	return wt.path, nil
}
