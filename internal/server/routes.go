package server

import "net/http"

// Routes builds the full HTTP mux. Handler grouping and the bare
// net/http.ServeMux (no router import) follow the teacher's own
// internal/server wiring; only the Go 1.22+ method+wildcard patterns are
// new, since the teacher predates that ServeMux feature.
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos", a.handleListRepos)
	mux.HandleFunc("POST /repos", a.handleAddRepo)
	mux.HandleFunc("POST /repos/sync", a.handleSyncRepo)
	mux.HandleFunc("POST /repos/remove", a.handleRemoveRepo)

	mux.HandleFunc("GET /repos/{url}/{ref}/manifest", a.handleGetManifest)
	mux.HandleFunc("GET /repos/{url}/{ref}/hierarchy", a.handleGetHierarchy)
	mux.HandleFunc("GET /repos/{url}/{ref}/graph", a.handleGetGraph)

	mux.HandleFunc("POST /packs", a.handlePackCommand)

	mux.HandleFunc("GET /operations/{id}", a.handleGetOperation)
	mux.HandleFunc("GET /operations/{id}/events", a.handleOperationEvents)

	return mux
}
