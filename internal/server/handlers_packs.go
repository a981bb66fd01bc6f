package server

import (
	"encoding/json"
	"net/http"

	"github.com/contentpacks/cpack/internal/session"
	"github.com/contentpacks/cpack/internal/store"
)

// packCommandRequest is the command envelope spec.md §4.4 describes:
// one named command plus its payload, scoped to a (repo_url, ref) session
// and guarded by the caller's last-seen client_state_hash.
type packCommandRequest struct {
	Command         session.CommandTag `json:"command"`
	RepoURL         string             `json:"repo_url"`
	Ref             string             `json:"ref"`
	ClientStateHash string             `json:"client_state_hash"`
	Data            json.RawMessage    `json:"data"`
}

// applyCommandData is CmdApply's payload: in addition to whatever
// session.doApply reads off state, it carries the per-call delete_pages
// policy decision (spec.md §9 open question #1) the façade applies to the
// session's Orchestrator before dispatching.
type applyCommandData struct {
	DeletePages *bool `json:"delete_pages"`
}

type packCommandResponse struct {
	Diff        session.Diff         `json:"diff,omitempty"`
	StateHash   string               `json:"state_hash"`
	Warnings    []string             `json:"warnings,omitempty"`
	Differences session.Diff         `json:"differences,omitempty"`
	Reconcile   []session.CommandTag `json:"reconcile,omitempty"`
	Replace     bool                 `json:"replace"`
}

// handlePackCommand is the single entry point for every Pack Session Engine
// command (spec.md §4.4/§6): it resolves the caller's session, serializes
// against any concurrent command on that same session (spec.md §5), and
// maps a state_mismatch error to the reconcile payload instead of a bare
// 409 with nothing to act on.
func (a *App) handlePackCommand(w http.ResponseWriter, r *http.Request) {
	var req packCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.RepoURL == "" || req.Ref == "" {
		writeError(w, store.NewError(store.KindValidation, "repo_url and ref are required"))
		return
	}

	userID := requestUserID(r)
	entry, err := a.sessionFor(r.Context(), userID, req.RepoURL, req.Ref)
	if err != nil {
		writeError(w, err)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if req.Command == session.CmdApply {
		var applyData applyCommandData
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &applyData); err != nil {
				writeError(w, store.NewError(store.KindValidation, "invalid apply data: %v", err))
				return
			}
		}
		if applyData.DeletePages == nil {
			writeError(w, store.NewError(store.KindValidation, "delete_pages is required for apply"))
			return
		}
		entry.orch.DeletePages = *applyData.DeletePages
	}

	result, err := entry.session.Dispatch(req.Command, req.Data, req.ClientStateHash)
	if err != nil {
		if serr, ok := err.(*store.Error); ok && serr.Kind == store.KindStateMismatch && result != nil {
			writeJSON(w, http.StatusConflict, packCommandResponse{
				StateHash:   result.StateHash,
				Warnings:    result.Warnings,
				Differences: result.Differences,
				Reconcile:   result.Reconcile,
			})
			return
		}
		writeError(w, err)
		return
	}

	replace := req.Command == session.CmdInit || req.Command == session.CmdClear || req.Command == session.CmdRefresh
	writeJSON(w, http.StatusOK, packCommandResponse{
		Diff:      result.Diff,
		StateHash: result.StateHash,
		Warnings:  result.Warnings,
		Replace:   replace,
	})
}
