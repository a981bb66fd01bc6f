package gitmgr

import (
	"context"
	"fmt"

	"github.com/contentpacks/cpack/internal/store"
)

// SyncRef fetches into the bare mirror, fast-forwards the worktree to the
// new commit, and updates last_commit. Fails with a fetch error if ref no
// longer exists upstream.
func (m *Manager) SyncRef(ctx context.Context, url, ref string) error {
	mirror := m.mirrorEntryFor(url)
	mirror.mu.Lock()
	if mirror.state != mirrorReady {
		mirror.mu.Unlock()
		return store.NewError(store.KindNotFound, "no bare mirror for %s", url)
	}
	if err := fetchMirrorLocked(ctx, mirror); err != nil {
		mirror.mu.Unlock()
		return err
	}
	barePath := mirror.path
	mirror.mu.Unlock()

	commit, err := resolveCommit(ctx, barePath, ref)
	if err != nil {
		return store.NewError(store.KindFetch, "ref %s no longer exists upstream for %s: %v", ref, url, err)
	}

	wt := m.worktreeEntryFor(url, ref)
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if _, err := runGit(ctx, wt.path, "checkout", "--detach", commit); err != nil {
		return store.NewError(store.KindFetch, "fast-forward worktree %s@%s: %v", url, ref, err)
	}

	repo := m.store.Repos.GetByURL(url)
	if repo == nil {
		return store.ErrNotFound("content_repo", url)
	}
	now := m.store.Clock.Now()
	if _, err := m.store.Refs.Ensure(repo.ID, ref, store.RefUpdate{LastCommit: &commit}); err != nil {
		return err
	}
	if _, err := m.store.Repos.Update(repo.ID, store.RepoUpdate{LastFetched: &now}); err != nil {
		return err
	}
	return nil
}

// SyncResult aggregates per-ref outcomes for SyncRepo.
type SyncResult struct {
	Synced int
	Errors map[string]error // ref -> error, for refs that failed
}

// SyncRepo syncs all known refs of the repo, continuing past per-ref
// failures and aggregating them.
func (m *Manager) SyncRepo(ctx context.Context, url string) (SyncResult, error) {
	repo := m.store.Repos.GetByURL(url)
	if repo == nil {
		return SyncResult{}, store.ErrNotFound("content_repo", url)
	}
	res := SyncResult{Errors: map[string]error{}}
	for _, ref := range m.store.Refs.ListByRepo(repo.ID) {
		if err := m.SyncRef(ctx, url, ref.SourceRef); err != nil {
			res.Errors[ref.SourceRef] = err
			continue
		}
		res.Synced++
	}
	if len(res.Errors) > 0 && res.Synced == 0 {
		return res, fmt.Errorf("gitmgr: all %d ref(s) failed to sync for %s", len(res.Errors), url)
	}
	return res, nil
}
