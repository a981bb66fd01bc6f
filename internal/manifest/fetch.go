package manifest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/contentpacks/cpack/internal/store"
)

// ManifestFilename is the name the Fetcher looks for at a worktree root.
const ManifestFilename = "manifest.yml"

// HTTPFetcher is the narrow interface the Fetcher falls back to when no
// worktree path is available (e.g. a ref the Git Content Manager has not
// checked out locally). Production code supplies an *http.Client; tests
// inject a stub.
type HTTPFetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// DefaultHTTPFetcher adapts *http.Client to HTTPFetcher.
type DefaultHTTPFetcher struct {
	Client *http.Client
}

func (f DefaultHTTPFetcher) Get(ctx context.Context, url string) (*http.Response, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// Fetcher retrieves the raw manifest bytes, preferring a worktree file and
// falling back to an HTTP source, per spec.md §4.3.
type Fetcher struct {
	HTTP HTTPFetcher
}

// NewFetcher builds a Fetcher backed by http.DefaultClient.
func NewFetcher() *Fetcher {
	return &Fetcher{HTTP: DefaultHTTPFetcher{}}
}

// Fetch tries worktreePath/manifest.yml first; if worktreePath is empty or
// the file is absent, it falls back to httpURL (if non-empty). Failure
// categories: fetch (transport), missing (200 but empty/absent), read (I/O).
func (f *Fetcher) Fetch(ctx context.Context, worktreePath, httpURL string) ([]byte, error) {
	if worktreePath != "" {
		path := filepath.Join(worktreePath, ManifestFilename)
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if len(b) == 0 {
				return nil, store.NewError(store.KindMissing, "manifest at %s is empty", path)
			}
			return b, nil
		case os.IsNotExist(err):
			if httpURL == "" {
				return nil, store.NewError(store.KindMissing, "manifest not found at %s", path)
			}
			// fall through to HTTP
		default:
			return nil, store.NewError(store.KindRead, "reading manifest at %s: %v", path, err)
		}
	}

	if httpURL == "" {
		return nil, store.NewError(store.KindMissing, "no worktree or http source configured for manifest")
	}
	return f.fetchHTTP(ctx, httpURL)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	fetcher := f.HTTP
	if fetcher == nil {
		fetcher = DefaultHTTPFetcher{}
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := fetcher.Get(ctx, url)
	if err != nil {
		return nil, store.NewError(store.KindFetch, "fetching manifest from %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, store.NewError(store.KindMissing, "manifest not found at %s (status %d)", url, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, store.NewError(store.KindFetch, "fetching manifest from %s: unexpected status %d", url, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, store.NewError(store.KindRead, "reading manifest body from %s: %v", url, err)
	}
	if len(b) == 0 {
		return nil, store.NewError(store.KindMissing, "manifest at %s is empty", url)
	}
	return b, nil
}
