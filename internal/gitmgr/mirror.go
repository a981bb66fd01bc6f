package gitmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contentpacks/cpack/internal/store"
)

// EnsureBareRepo clones `--mirror` if the bare repo is absent; idempotent.
// On success it ensures a ContentRepo row and stamps last_fetched.
func (m *Manager) EnsureBareRepo(ctx context.Context, url, defaultRef string) (string, error) {
	e := m.mirrorEntryFor(url)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == mirrorEmpty {
		if err := os.MkdirAll(filepath.Dir(e.path), 0o750); err != nil {
			return "", fmt.Errorf("gitmgr: create mirror parent dir: %w", err)
		}
		if _, err := runGit(ctx, "", "clone", "--mirror", url, e.path); err != nil {
			return "", store.NewError(store.KindFetch, "clone --mirror %s: %v", url, err)
		}
		e.state = mirrorReady
	}

	now := m.store.Clock.Now()
	_, err := m.store.Repos.Ensure(url, defaultRef, store.RepoUpdate{
		BarePath:    &e.path,
		LastFetched: &now,
	})
	if err != nil {
		return "", err
	}
	return e.path, nil
}

// fetchMirrorLocked runs `git fetch` against a bare mirror. Caller must hold
// e.mu.
func fetchMirrorLocked(ctx context.Context, e *mirrorEntry) error {
	_, err := runGit(ctx, "", "--git-dir", e.path, "fetch", "--prune", "origin", "+refs/*:refs/*")
	if err != nil {
		return store.NewError(store.KindFetch, "fetch %s: %v", e.url, err)
	}
	return nil
}

// resolveCommit resolves ref to a commit sha within the bare mirror at
// barePath.
func resolveCommit(ctx context.Context, barePath, ref string) (string, error) {
	out, err := runGit(ctx, "", "--git-dir", barePath, "rev-parse", ref)
	if err != nil {
		return "", store.NewError(store.KindFetch, "resolve ref %s: %v", ref, err)
	}
	commit := firstLine(out)
	if commit == "" {
		return "", store.NewError(store.KindNotFound, "ref %s did not resolve to a commit", ref)
	}
	return commit, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
