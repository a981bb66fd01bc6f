// Package server is the External HTTP/CLI façade (spec.md §4's last row,
// §6): a thin adapter wiring the Git Content Manager, manifest pipeline,
// Pack Session Engine, Apply Orchestrator, and Operation Runtime behind a
// JSON HTTP surface. Routing follows the teacher's own plain stdlib
// net/http style (no router/framework import anywhere in the pack's own
// internal/server); progress fan-out and polling reuse
// internal/operation's Broadcaster/PollOperation, themselves adapted from
// the teacher's server.Broadcaster / WebInterviewer.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/contentpacks/cpack/internal/apply"
	"github.com/contentpacks/cpack/internal/gitmgr"
	"github.com/contentpacks/cpack/internal/manifest"
	"github.com/contentpacks/cpack/internal/operation"
	"github.com/contentpacks/cpack/internal/session"
	"github.com/contentpacks/cpack/internal/store"
	"github.com/contentpacks/cpack/internal/wiki"
)

// App aggregates every component the façade fronts. One App per process.
type App struct {
	Store     *store.Store
	Git       *gitmgr.Manager
	Manifests *manifest.Store
	Runtime   *operation.Runtime
	Wiki      *wiki.Client

	// DeletePages is only the initial value copied into each new session's
	// Orchestrator. Whether a pack_remove also deletes the backing wiki
	// pages is decided per call: handlers_packs.go rejects an apply command
	// whose data carries no delete_pages flag and sets the Orchestrator from
	// that flag. Neither cmd/cpack nor internal/config sets this field.
	DeletePages bool

	sessionsMu sync.Mutex
	sessions   map[sessionKey]*sessionEntry
}

type sessionKey struct {
	UserID string
	RefID  string
}

// sessionEntry pairs a live session.Session with its own Orchestrator (so
// the façade can flip DeletePages per apply call) and a lock serializing
// every command against that one session, per spec.md §5 "at most one
// in-flight command per (user, ref)".
type sessionEntry struct {
	mu      sync.Mutex
	session *session.Session
	orch    *apply.Orchestrator
}

// New wires an App. wikiClient may be nil in tests that never reach the
// apply phase.
func New(st *store.Store, git *gitmgr.Manager, manifests *manifest.Store, rt *operation.Runtime, wikiClient *wiki.Client) *App {
	return &App{
		Store:     st,
		Git:       git,
		Manifests: manifests,
		Runtime:   rt,
		Wiki:      wikiClient,
		sessions:  map[sessionKey]*sessionEntry{},
	}
}

// sessionFor returns the (userID, refID) session, building and init-ing a
// fresh one on first access. Subsequent commands reuse the same *session.Session
// so history/state_hash continuity holds across the life of the process.
func (a *App) sessionFor(ctx context.Context, userID, repoURL, ref string) (*sessionEntry, error) {
	repo := a.Store.Repos.GetByURL(repoURL)
	if repo == nil {
		return nil, store.ErrNotFound("content_repo", repoURL)
	}
	refRow := a.Store.Refs.GetByKey(repo.ID, ref)
	if refRow == nil {
		return nil, store.ErrNotFound("content_ref", ref)
	}

	key := sessionKey{UserID: userID, RefID: refRow.ID}

	a.sessionsMu.Lock()
	entry, ok := a.sessions[key]
	a.sessionsMu.Unlock()
	if ok {
		return entry, nil
	}

	m, _, err := a.Manifests.GetManifest(ctx, repoURL, ref)
	if err != nil {
		return nil, err
	}

	orch := &apply.Orchestrator{
		Manifest:     m,
		Packs:        a.Store.Packs,
		Pages:        a.Store.Pages,
		Files:        apply.OSFileReader{},
		Wiki:         a.Wiki,
		WorktreePath: refRow.WorktreePath,
		RefID:        refRow.ID,
		SourceCommit: refRow.LastCommit,
		InstalledBy:  userID,
		DeletePages:  a.DeletePages,
	}

	var ownership session.TitleOwnership
	if a.Wiki != nil {
		ownership = a.Wiki
	}

	sess := &session.Session{
		RefID:     refRow.ID,
		Manifest:  m,
		Packs:     a.Store.Packs,
		Pages:     a.Store.Pages,
		Ownership: ownership,
		Applier:   orch,
	}
	if _, err := sess.Dispatch(session.CmdInit, nil, ""); err != nil {
		return nil, err
	}

	entry = &sessionEntry{session: sess, orch: orch}

	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	if existing, ok := a.sessions[key]; ok {
		return existing, nil
	}
	a.sessions[key] = entry
	return entry, nil
}

// refreshSession drops one (userID, ref) session so the next command
// against it rebuilds from the current manifest.
func (a *App) refreshSession(ctx context.Context, userID, repoURL, ref string) error {
	repo := a.Store.Repos.GetByURL(repoURL)
	if repo == nil {
		return store.ErrNotFound("content_repo", repoURL)
	}
	refRow := a.Store.Refs.GetByKey(repo.ID, ref)
	if refRow == nil {
		return store.ErrNotFound("content_ref", ref)
	}
	key := sessionKey{UserID: userID, RefID: refRow.ID}

	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	delete(a.sessions, key)
	return nil
}

// invalidateRepoSessions drops every cached session (any user) keyed on a
// ref belonging to repoURL, used after a repo_sync so every session picks
// up the newly fetched manifest rather than one stale per-user copy
// lingering until its owner happens to hit a cache miss.
func (a *App) invalidateRepoSessions(repoURL string) {
	repo := a.Store.Repos.GetByURL(repoURL)
	if repo == nil {
		return
	}
	refIDs := map[string]bool{}
	for _, ref := range a.Store.Refs.ListByRepo(repo.ID) {
		refIDs[ref.ID] = true
	}

	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	for key := range a.sessions {
		if refIDs[key.RefID] {
			delete(a.sessions, key)
		}
	}
}

// pollInterval is a polling interval for blocking on an operation. Nothing
// in this package reads it, and the CLI has no flag that waits on one.
const pollInterval = 250 * time.Millisecond
