package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentpacks/cpack/internal/gitmgr"
	"github.com/contentpacks/cpack/internal/manifest"
	"github.com/contentpacks/cpack/internal/operation"
	"github.com/contentpacks/cpack/internal/store"
)

const testManifestYAML = `
schema_version: "1.0.0"
packs:
  core:
    version: "1.0.0"
    pages:
      intro:
        file: pages/intro.md
  extras:
    version: "1.0.0"
    depends_on: [core]
    pages:
      bonus:
        file: pages/bonus.md
`

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

func runGitCmd(t *testing.T, dir string, args ...string) {
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

// newTestApp builds an upstream repo with a manifest.yml and wires a full
// App against it, the same stack cmd/cpack assembles in production.
func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	requireGit(t)

	upstream := t.TempDir()
	runGitCmd(t, upstream, "init", "-b", "main")
	if err := os.MkdirAll(filepath.Join(upstream, "pages"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(upstream, "manifest.yml"), []byte(testManifestYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(upstream, "pages", "intro.md"), []byte("# intro"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(upstream, "pages", "bonus.md"), []byte("# bonus"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGitCmd(t, upstream, "add", "-A")
	runGitCmd(t, upstream, "commit", "-m", "seed")

	st := store.New(store.RealClock{})
	git, err := gitmgr.New(t.TempDir(), st)
	if err != nil {
		t.Fatalf("gitmgr.New: %v", err)
	}
	if _, err := git.EnsureBareRepo(t.Context(), upstream, "main"); err != nil {
		t.Fatalf("EnsureBareRepo: %v", err)
	}
	if _, err := git.EnsureWorktree(t.Context(), upstream, "main"); err != nil {
		t.Fatalf("EnsureWorktree: %v", err)
	}

	manifests := manifest.NewStore(manifest.NewFetcher(), newManifestSource(st))
	rt := operation.New(st, 8, 2)
	t.Cleanup(func() { _ = rt.Shutdown() })

	app := New(st, git, manifests, rt, nil)
	return app, upstream
}

func TestServer_GetManifest(t *testing.T) {
	app, upstream := newTestApp(t)
	srv := httptest.NewServer(app.Routes())
	defer srv.Close()

	path := "/repos/" + url.QueryEscape(upstream) + "/main/manifest"
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET manifest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := body["manifest"].(map[string]any)
	if !ok {
		t.Fatalf("missing manifest in %v", body)
	}
	packs, ok := m["packs"].(map[string]any)
	if !ok || len(packs) != 2 {
		t.Fatalf("packs = %v", m["packs"])
	}
}

func TestServer_PackCommandLifecycle(t *testing.T) {
	app, upstream := newTestApp(t)
	srv := httptest.NewServer(app.Routes())
	defer srv.Close()

	post := func(data map[string]any) packCommandResponse {
		t.Helper()
		b, _ := json.Marshal(data)
		resp, err := http.Post(srv.URL+"/packs", "application/json", bytes.NewReader(b))
		if err != nil {
			t.Fatalf("POST /packs: %v", err)
		}
		defer resp.Body.Close()
		var out packCommandResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	first := post(map[string]any{
		"command":  "set_pack_action",
		"repo_url": upstream,
		"ref":      "main",
		"data":     map[string]any{"pack_name": "core", "action": "install"},
	})
	if first.StateHash == "" {
		t.Fatal("expected a state_hash after set_pack_action")
	}

	stale := post(map[string]any{
		"command":           "set_pack_action",
		"repo_url":          upstream,
		"ref":               "main",
		"client_state_hash": "not-the-real-hash",
		"data":              map[string]any{"pack_name": "extras", "action": "install"},
	})
	if stale.Reconcile == nil && stale.Differences == nil {
		t.Fatalf("expected a reconcile/differences payload on stale hash, got %+v", stale)
	}
}

func TestServer_OperationPollingSurface(t *testing.T) {
	app, upstream := newTestApp(t)
	srv := httptest.NewServer(app.Routes())
	defer srv.Close()

	b, _ := json.Marshal(map[string]any{"url": upstream})
	resp, err := http.Post(srv.URL+"/repos/sync", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST /repos/sync: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var op store.Operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		t.Fatalf("decode: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		r, err := http.Get(srv.URL + "/operations/" + op.ID)
		if err != nil {
			t.Fatalf("GET /operations/%s: %v", op.ID, err)
		}
		var got store.Operation
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		r.Body.Close()
		if got.Status.Terminal() {
			if got.Status != store.OpSuccess {
				t.Fatalf("status = %s, want success", got.Status)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("operation %s never reached a terminal state", op.ID)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
