package store

import (
	"testing"
	"time"
)

func TestPackRegistry_EnsureUpdatesInstalledByOnReinstall(t *testing.T) {
	packs := NewPackRegistry(NewFixedClock(time.Unix(0, 0)))
	first, err := packs.Ensure("ref-1", "Core", "1.0", "sha1", "alice")
	if err != nil {
		t.Fatalf("Ensure #1: %v", err)
	}
	second, err := packs.Ensure("ref-1", "Core", "1.1", "sha2", "bob")
	if err != nil {
		t.Fatalf("Ensure #2: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("Ensure should upsert the same row")
	}
	if second.InstalledBy != "bob" {
		t.Fatalf("InstalledBy = %q, want latest caller bob", second.InstalledBy)
	}
	if second.Version != "1.1" {
		t.Fatalf("Version = %q, want 1.1", second.Version)
	}
}

func TestPackRegistry_SetDependenciesRejectsCycle(t *testing.T) {
	packs := NewPackRegistry(NewFixedClock(time.Unix(0, 0)))
	a, _ := packs.Ensure("ref-1", "A", "1.0", "", "u")
	b, _ := packs.Ensure("ref-1", "B", "1.0", "", "u")

	if err := packs.SetDependencies(a.ID, []string{b.ID}); err != nil {
		t.Fatalf("SetDependencies A->B: %v", err)
	}
	if err := packs.SetDependencies(b.ID, []string{a.ID}); err == nil {
		t.Fatalf("expected cycle rejection for B->A given A->B already exists")
	}
}

func TestPackRegistry_DependentsAndDependsOn(t *testing.T) {
	packs := NewPackRegistry(NewFixedClock(time.Unix(0, 0)))
	core, _ := packs.Ensure("ref-1", "Core", "1.0", "", "u")
	ui, _ := packs.Ensure("ref-1", "UI", "1.0", "", "u")
	if err := packs.SetDependencies(ui.ID, []string{core.ID}); err != nil {
		t.Fatalf("SetDependencies: %v", err)
	}
	if deps := packs.DependsOn(ui.ID); len(deps) != 1 || deps[0] != core.ID {
		t.Fatalf("DependsOn(UI) = %v, want [%s]", deps, core.ID)
	}
	if dependents := packs.Dependents(core.ID); len(dependents) != 1 || dependents[0] != ui.ID {
		t.Fatalf("Dependents(Core) = %v, want [%s]", dependents, ui.ID)
	}
}
