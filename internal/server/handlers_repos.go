package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/contentpacks/cpack/internal/operation"
	"github.com/contentpacks/cpack/internal/store"
)

func (a *App) handleListRepos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.Repos.List())
}

type addRepoRequest struct {
	URL        string `json:"url"`
	DefaultRef string `json:"default_ref"`
}

// handleAddRepo enqueues a repo_add operation (spec.md §4.7): cloning a
// bare mirror and the default ref's worktree is slow enough that it runs on
// the Operation Runtime's worker pool rather than the request goroutine.
func (a *App) handleAddRepo(w http.ResponseWriter, r *http.Request) {
	var req addRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.URL == "" {
		writeError(w, store.NewError(store.KindValidation, "url is required"))
		return
	}
	if req.DefaultRef == "" {
		req.DefaultRef = "refs/heads/main"
	}

	userID := requestUserID(r)
	op, err := a.Runtime.Submit(store.OpRepoAdd, userID, "adding repo "+req.URL, func(ctx context.Context, op *store.Operation, progress operation.ProgressFunc) (string, error) {
		progress(10, "cloning bare mirror")
		if _, err := a.Git.EnsureBareRepo(ctx, req.URL, req.DefaultRef); err != nil {
			return "", err
		}
		progress(60, "checking out default ref")
		if _, err := a.Git.EnsureWorktree(ctx, req.URL, req.DefaultRef); err != nil {
			return "", err
		}
		progress(100, "done")
		return `{"url":"` + req.URL + `"}`, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, op)
}

type repoURLRequest struct {
	URL string `json:"url"`
}

// handleSyncRepo enqueues a repo_sync operation fetching and fast-forwarding
// every known ref of the repo.
func (a *App) handleSyncRepo(w http.ResponseWriter, r *http.Request) {
	var req repoURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.URL == "" {
		writeError(w, store.NewError(store.KindValidation, "url is required"))
		return
	}

	userID := requestUserID(r)
	op, err := a.Runtime.Submit(store.OpRepoSync, userID, "syncing repo "+req.URL, func(ctx context.Context, op *store.Operation, progress operation.ProgressFunc) (string, error) {
		progress(10, "fetching")
		res, err := a.Git.SyncRepo(ctx, req.URL)
		if err != nil {
			return "", err
		}
		if repo := a.Store.Repos.GetByURL(req.URL); repo != nil {
			for _, ref := range a.Store.Refs.ListByRepo(repo.ID) {
				a.Manifests.Invalidate(req.URL, ref.SourceRef)
			}
			a.invalidateRepoSessions(req.URL)
		}
		progress(100, "done")
		data, _ := json.Marshal(res)
		return string(data), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, op)
}

// handleRemoveRepo enqueues a repo_remove operation removing every worktree,
// the bare mirror, and the registry rows.
func (a *App) handleRemoveRepo(w http.ResponseWriter, r *http.Request) {
	var req repoURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.URL == "" {
		writeError(w, store.NewError(store.KindValidation, "url is required"))
		return
	}

	userID := requestUserID(r)
	op, err := a.Runtime.Submit(store.OpRepoRemove, userID, "removing repo "+req.URL, func(ctx context.Context, op *store.Operation, progress operation.ProgressFunc) (string, error) {
		progress(10, "removing worktrees and mirror")
		if err := a.Git.RemoveRepo(ctx, req.URL); err != nil {
			return "", err
		}
		progress(100, "done")
		return "{}", nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, op)
}
