package server

import (
	"net/http"
	"net/url"

	"github.com/contentpacks/cpack/internal/store"
)

// pathURL decodes the {url} wildcard segment. Repo URLs contain slashes,
// which a single path segment can't carry literally, so callers percent-
// encode the whole URL (slashes included) before placing it in the path.
func pathURL(r *http.Request) (string, error) {
	raw := r.PathValue("url")
	return url.QueryUnescape(raw)
}

func (a *App) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	repoURL, err := pathURL(r)
	if err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid url path segment: %v", err))
		return
	}
	ref := r.PathValue("ref")

	var m any
	var fromCache bool
	if r.URL.Query().Get("refresh") == "1" {
		entry, err := a.Manifests.Refresh(r.Context(), repoURL, ref)
		if err != nil {
			writeError(w, err)
			return
		}
		m = entry.Manifest
	} else {
		manifest, cached, err := a.Manifests.GetManifest(r.Context(), repoURL, ref)
		if err != nil {
			writeError(w, err)
			return
		}
		m, fromCache = manifest, cached
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"manifest":   m,
		"from_cache": fromCache,
	})
}

func (a *App) handleGetHierarchy(w http.ResponseWriter, r *http.Request) {
	repoURL, err := pathURL(r)
	if err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid url path segment: %v", err))
		return
	}
	ref := r.PathValue("ref")

	hierarchy, fromCache, err := a.Manifests.GetHierarchy(r.Context(), repoURL, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hierarchy": hierarchy,
		"from_cache": fromCache,
	})
}

func (a *App) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	repoURL, err := pathURL(r)
	if err != nil {
		writeError(w, store.NewError(store.KindValidation, "invalid url path segment: %v", err))
		return
	}
	ref := r.PathValue("ref")

	graph, fromCache, err := a.Manifests.GetGraph(r.Context(), repoURL, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"graph":      graph,
		"from_cache": fromCache,
	})
}
