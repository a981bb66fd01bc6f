package gitmgr

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// urlHash and refHash make mirror/worktree paths deterministic functions of
// (url, ref) so a crash-safe startup scan can recover state purely by
// walking the cache directory, per spec.md §4.2.
func urlHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

func refHash(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])[:16]
}

// barePathFor returns the deterministic bare-mirror directory for url under
// root: cache/<urlhash>.git
func barePathFor(root, url string) string {
	return filepath.Join(root, "cache", urlHash(url)+".git")
}

// worktreePathFor returns the deterministic worktree directory for (url,
// ref) under root: worktrees/<urlhash>/<refhash>
func worktreePathFor(root, url, ref string) string {
	return filepath.Join(root, "worktrees", urlHash(url), refHash(ref))
}
