package server

import (
	"time"

	"github.com/contentpacks/cpack/internal/manifest"
	"github.com/contentpacks/cpack/internal/store"
)

// manifestSource adapts the Git Content Manager's registries into
// manifest.Source: where the manifest pipeline should read from, and the
// last_fetched stamp the cache keys its invalidation on (spec.md §4.3).
type manifestSource struct {
	store *store.Store
}

func newManifestSource(st *store.Store) *manifestSource {
	return &manifestSource{store: st}
}

// NewManifestSource exposes the manifestSource adapter so a process
// assembling the façade (cmd/cpack) can build the manifest.Store it hands
// to server.New without reimplementing manifest.Source.
func NewManifestSource(st *store.Store) manifest.Source {
	return newManifestSource(st)
}

func (s *manifestSource) WorktreePath(repoURL, ref string) string {
	repo := s.store.Repos.GetByURL(repoURL)
	if repo == nil {
		return ""
	}
	r := s.store.Refs.GetByKey(repo.ID, ref)
	if r == nil {
		return ""
	}
	return r.WorktreePath
}

// HTTPURL is left blank: every repo this service manages is Git-hosted and
// reachable through the worktree path above. A deployment fronting a
// manifest published purely over HTTP (no git remote) is out of scope per
// spec.md §1 ("the specific YAML dialect or Git binary invocation details
// beyond the observable contracts named here").
func (s *manifestSource) HTTPURL(repoURL, ref string) string {
	return ""
}

func (s *manifestSource) LastFetched(repoURL, ref string) time.Time {
	repo := s.store.Repos.GetByURL(repoURL)
	if repo == nil {
		return time.Time{}
	}
	return repo.LastFetched
}
