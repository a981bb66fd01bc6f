package session

import (
	"testing"

	"github.com/contentpacks/cpack/internal/manifest"
)

func threeTierManifest() manifest.Manifest {
	return manifest.Manifest{
		SchemaVersion: "1.0.0",
		Packs: map[string]manifest.Pack{
			"Core": {ID: "Core", Version: "1.0.0"},
			"UI":   {ID: "UI", Version: "1.0.0", DependsOn: []string{"Core"}},
			"App":  {ID: "App", Version: "1.0.0", DependsOn: []string{"UI"}},
		},
	}
}

func freshPackStates(names ...string) map[string]*PackState {
	out := map[string]*PackState{}
	for _, n := range names {
		out[n] = &PackState{Action: ActionUnchanged, Pages: map[string]*PageState{}}
	}
	return out
}

func TestApplyInstallClosure_TransitiveChain(t *testing.T) {
	m := threeTierManifest()
	state := freshPackStates("Core", "UI", "App")
	state["App"].Action = ActionInstall

	selected := ApplyInstallClosure(m, state, "App")
	if len(selected) != 2 || selected[0] != "Core" || selected[1] != "UI" {
		t.Fatalf("expected [Core UI] auto-selected, got %v", selected)
	}
	if state["Core"].Action != ActionInstall || *state["Core"].AutoSelectedReason != "required by UI" {
		t.Fatalf("expected Core required by UI, got action=%s reason=%v", state["Core"].Action, state["Core"].AutoSelectedReason)
	}
	if state["UI"].Action != ActionInstall || *state["UI"].AutoSelectedReason != "required by App" {
		t.Fatalf("expected UI required by App, got action=%s reason=%v", state["UI"].Action, state["UI"].AutoSelectedReason)
	}
}

func TestApplyInstallClosure_SkipsAlreadyInstalledOrSelected(t *testing.T) {
	m := threeTierManifest()
	state := freshPackStates("Core", "UI", "App")
	state["Core"].Installed = true
	state["App"].Action = ActionInstall

	selected := ApplyInstallClosure(m, state, "App")
	if len(selected) != 1 || selected[0] != "UI" {
		t.Fatalf("expected only UI auto-selected (Core already installed), got %v", selected)
	}
	if state["Core"].AutoSelectedReason != nil {
		t.Fatalf("expected Core untouched since already installed")
	}
}

func TestApplyRemovalClosure_CascadesToDependents(t *testing.T) {
	m := threeTierManifest()
	state := freshPackStates("Core", "UI", "App")
	state["Core"].Installed = true
	state["UI"].Installed = true
	state["App"].Installed = true

	selected := ApplyRemovalClosure(m, state, "Core")
	if len(selected) != 2 || selected[0] != "App" || selected[1] != "UI" {
		t.Fatalf("expected [App UI] auto-selected for removal, got %v", selected)
	}
	if state["UI"].Action != ActionRemove || *state["UI"].AutoSelectedReason != "dependency of Core removed" {
		t.Fatalf("expected UI removal cascade from Core, got action=%s reason=%v", state["UI"].Action, state["UI"].AutoSelectedReason)
	}
	if state["App"].Action != ActionRemove {
		t.Fatalf("expected App also cascaded (depends on UI depends on Core), got action=%s", state["App"].Action)
	}
}

func TestApplyRemovalClosure_IgnoresUninstalledDependents(t *testing.T) {
	m := threeTierManifest()
	state := freshPackStates("Core", "UI", "App")
	state["Core"].Installed = true
	// UI and App are not installed, so removing Core shouldn't select them.

	selected := ApplyRemovalClosure(m, state, "Core")
	if len(selected) != 0 {
		t.Fatalf("expected no auto-selection for uninstalled dependents, got %v", selected)
	}
}
