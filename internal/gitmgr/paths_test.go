package gitmgr

import "testing"

func TestPathHashing_DeterministicAndDistinct(t *testing.T) {
	a := barePathFor("/root", "https://example.com/a.git")
	b := barePathFor("/root", "https://example.com/a.git")
	c := barePathFor("/root", "https://example.com/b.git")
	if a != b {
		t.Fatalf("expected deterministic hashing, got %q != %q", a, b)
	}
	if a == c {
		t.Fatalf("expected distinct urls to hash differently, got %q == %q", a, c)
	}
}

func TestWorktreePathFor_VariesByRef(t *testing.T) {
	main := worktreePathFor("/root", "https://example.com/a.git", "main")
	dev := worktreePathFor("/root", "https://example.com/a.git", "develop")
	if main == dev {
		t.Fatalf("expected distinct refs to hash differently, got %q == %q", main, dev)
	}
}
