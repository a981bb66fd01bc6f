package gitmgr

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ListFiles walks worktreePath and returns every regular file's
// slash-separated path relative to the worktree root, skipping the .git
// directory and any path matching one of excludes. Patterns follow the
// doublestar dialect (`**` crosses directory boundaries), mirroring the
// exclude semantics the teacher's gitutil package enforced for staging.
func ListFiles(worktreePath string, excludes []string) ([]string, error) {
	var out []string
	err := filepath.Walk(worktreePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(worktreePath, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		excluded, matchErr := matchesAny(rel, excludes)
		if matchErr != nil {
			return matchErr
		}
		if excluded {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// matchesAny reports whether rel matches any exclude pattern, or is nested
// under a directory matched by one (so "**/.cargo_target*/**"-style patterns
// exclude everything beneath a matched directory, not just the directory
// entry itself).
func matchesAny(rel string, excludes []string) (bool, error) {
	for _, pattern := range excludes {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if strings.HasPrefix(pattern, "**/") {
			ok, err := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}
