package gitmgr

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentpacks/cpack/internal/store"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

// initUpstreamRepo creates a local bare-able upstream repository with one
// commit on "main" so EnsureBareRepo has something to clone.
func initUpstreamRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runUpstream(t, dir, "init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	runUpstream(t, dir, "add", "-A")
	runUpstreamEnv(t, dir, "commit", "-m", "seed")
	return dir
}

func runUpstream(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func runUpstreamEnv(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func TestManager_EnsureBareRepoAndWorktreeLifecycle(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	upstream := initUpstreamRepo(t)

	st := store.New(store.NewFixedClock(time.Unix(0, 0)))
	mgr, err := New(t.TempDir(), st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := mgr.EnsureBareRepo(ctx, upstream, "main"); err != nil {
		t.Fatalf("EnsureBareRepo: %v", err)
	}
	// idempotent
	if _, err := mgr.EnsureBareRepo(ctx, upstream, "main"); err != nil {
		t.Fatalf("EnsureBareRepo (second call): %v", err)
	}

	wtPath, err := mgr.EnsureWorktree(ctx, upstream, "main")
	if err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wtPath, "README.md")); err != nil {
		t.Fatalf("expected README.md in worktree: %v", err)
	}

	repo := st.Repos.GetByURL(upstream)
	if repo == nil {
		t.Fatal("expected repo row after EnsureBareRepo")
	}
	refRow := st.Refs.GetByKey(repo.ID, "main")
	if refRow == nil || refRow.WorktreePath != wtPath {
		t.Fatalf("expected ref row with worktree path %q, got %+v", wtPath, refRow)
	}

	// add an upstream commit, then sync
	if err := os.WriteFile(filepath.Join(upstream, "CHANGELOG.md"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	runUpstream(t, upstream, "add", "-A")
	runUpstreamEnv(t, upstream, "commit", "-m", "v2")

	if err := mgr.SyncRef(ctx, upstream, "main"); err != nil {
		t.Fatalf("SyncRef: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wtPath, "CHANGELOG.md")); err != nil {
		t.Fatalf("expected CHANGELOG.md after sync: %v", err)
	}

	if err := mgr.RemoveRef(ctx, upstream, "main"); err != nil {
		t.Fatalf("RemoveRef: %v", err)
	}
	if st.Refs.GetByKey(repo.ID, "main") != nil {
		t.Fatal("expected ref row removed")
	}

	if err := mgr.RemoveRepo(ctx, upstream); err != nil {
		t.Fatalf("RemoveRepo: %v", err)
	}
	if st.Repos.GetByURL(upstream) != nil {
		t.Fatal("expected repo row removed")
	}
}

func TestManager_Reconcile_PrunesOrphanedWorktreeDirs(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	upstream := initUpstreamRepo(t)

	st := store.New(store.NewFixedClock(time.Unix(0, 0)))
	root := t.TempDir()
	mgr, err := New(root, st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := mgr.EnsureBareRepo(ctx, upstream, "main"); err != nil {
		t.Fatalf("EnsureBareRepo: %v", err)
	}
	if _, err := mgr.EnsureWorktree(ctx, upstream, "main"); err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}

	orphanDir := filepath.Join(root, "worktrees", "deadbeefdeadbeef", "deadbeefdeadbeef")
	if err := os.MkdirAll(orphanDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, err := os.Stat(orphanDir); !os.IsNotExist(err) {
		t.Fatalf("expected orphaned worktree dir pruned, stat err = %v", err)
	}

	repo := st.Repos.GetByURL(upstream)
	refRow := st.Refs.GetByKey(repo.ID, "main")
	if _, err := os.Stat(refRow.WorktreePath); err != nil {
		t.Fatalf("expected known worktree preserved: %v", err)
	}
}
