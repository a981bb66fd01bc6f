// Package apply implements the Pack Apply Orchestrator (spec.md §4.6): the
// install/update/remove phases that turn a resolved session selection into
// registry rows and wiki pages.
package apply

import (
	"context"
	"os"
	"path/filepath"

	"github.com/contentpacks/cpack/internal/wiki"
)

// FileReader reads a declared page's source content out of a checked-out
// worktree. Implemented by OSFileReader in production; tests inject a
// map-backed stub.
type FileReader interface {
	ReadFile(worktreePath, relPath string) ([]byte, error)
}

// OSFileReader reads directly off disk.
type OSFileReader struct{}

func (OSFileReader) ReadFile(worktreePath, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(worktreePath, relPath))
}

// WikiClient is the narrow slice of internal/wiki.Client the orchestrator
// needs — a page-write boundary, so tests can inject a stub instead of an
// HTTP server.
type WikiClient interface {
	CreatePage(ctx context.Context, title string, content []byte, ownerPack string) (wiki.Page, error)
	UpdatePage(ctx context.Context, pageID string, content []byte) (wiki.Page, error)
	DeletePage(ctx context.Context, pageID string) error
}

// PageFailure is one page-level error within a pack's install/update pass.
type PageFailure struct {
	Pack    string
	Page    string
	Kind    string
	Message string
}

// Result is what an apply run reports back, per spec.md §4.6.
type Result struct {
	Success   bool
	Installed []string
	Failed    []string
	Errors    []PageFailure
}
