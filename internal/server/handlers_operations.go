package server

import (
	"net/http"

	"github.com/contentpacks/cpack/internal/operation"
	"github.com/contentpacks/cpack/internal/store"
)

// handleGetOperation is the required polling surface (spec.md §4.7/§6): a
// single snapshot read of an operation's current status/progress.
func (a *App) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	op := a.Runtime.Get(id)
	if op == nil {
		writeError(w, store.ErrNotFound("operation", id))
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// handleOperationEvents is the additive SSE stream SPEC_FULL.md §6 layers
// on top of polling, reusing the same Broadcaster a poller would otherwise
// have to hit repeatedly.
func (a *App) handleOperationEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if op := a.Runtime.Get(id); op == nil {
		writeError(w, store.ErrNotFound("operation", id))
		return
	}
	bc, ok := a.Runtime.Subscribe(id)
	if !ok {
		// Operation already finished and its broadcaster was torn down;
		// the snapshot is still available via GET /operations/{id}.
		writeError(w, store.NewError(store.KindNotFound, "no live event stream for operation %s", id))
		return
	}
	operation.WriteSSE(w, r, bc)
}
