package server

import (
	"encoding/json"
	"net/http"

	"github.com/contentpacks/cpack/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a store.ErrorKind (spec.md §7's closed error-kind set) to
// an HTTP status and writes a structured body. Non-typed errors default to
// 500 and are treated as internal per §7's "internal is reserved for
// invariant violations ... treated as a crash signal".
func writeError(w http.ResponseWriter, err error) {
	serr, ok := err.(*store.Error)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"kind": store.KindInternal, "message": err.Error()},
		})
		return
	}

	status := http.StatusInternalServerError
	switch serr.Kind {
	case store.KindNotFound, store.KindMissing, store.KindMissingFile:
		status = http.StatusNotFound
	case store.KindConflict, store.KindDependencyViolation, store.KindStateMismatch:
		status = http.StatusConflict
	case store.KindValidation, store.KindParse, store.KindSchema, store.KindSchemaVersion:
		status = http.StatusBadRequest
	case store.KindFetch, store.KindWriteFailed:
		status = http.StatusBadGateway
	case store.KindRead, store.KindInternal:
		status = http.StatusInternalServerError
	case store.KindBusy:
		status = http.StatusLocked
	case store.KindQueueFull:
		status = http.StatusServiceUnavailable
	case store.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":    serr.Kind,
			"message": serr.Message,
			"context": serr.Context,
		},
	})
}

// requestUserID resolves the caller identity. Authentication itself is the
// embedding host's responsibility (spec.md §1 Non-goals); the façade only
// needs a stable identifier to key sessions and stamp installed_by/user_id
// fields, so it trusts an upstream-set header.
func requestUserID(r *http.Request) string {
	if u := r.Header.Get("X-User-Id"); u != "" {
		return u
	}
	return "anonymous"
}
