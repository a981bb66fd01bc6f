package session

import (
	"reflect"
	"testing"
)

func TestDiffStates_DetectsChangedAddedAndRemovedKeys(t *testing.T) {
	v1 := "1.0.0"
	prev := map[string]*PackState{
		"Core": {Action: ActionUnchanged, TargetVersion: &v1, Pages: map[string]*PageState{
			"Intro": {FinalTitle: "Intro", OriginalTitle: "Intro"},
		}},
	}
	next := map[string]*PackState{
		"Core": {Action: ActionInstall, TargetVersion: &v1, Pages: map[string]*PageState{
			"Intro": {FinalTitle: "Sandbox/Intro", OriginalTitle: "Intro"},
		}},
	}

	diff := DiffStates(prev, next)
	core, ok := diff["Core"].(map[string]any)
	if !ok {
		t.Fatalf("expected Core entry, got %#v", diff)
	}
	if core["action"] != string(ActionInstall) {
		t.Fatalf("expected action=install, got %v", core["action"])
	}
	if _, ok := core["target_version"]; ok {
		t.Fatalf("expected unchanged target_version to be absent from diff, got present")
	}
	pages, ok := core["pages"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested pages diff, got %#v", core)
	}
	intro, ok := pages["Intro"].(map[string]any)
	if !ok {
		t.Fatalf("expected Intro page diff, got %#v", pages)
	}
	if intro["final_title"] != "Sandbox/Intro" {
		t.Fatalf("expected final_title change, got %v", intro["final_title"])
	}
	if _, ok := intro["original_title"]; ok {
		t.Fatalf("expected unchanged original_title to be absent, got present")
	}
}

func TestDiffStates_RemovedPackBecomesDeleteMarker(t *testing.T) {
	prev := map[string]*PackState{
		"Core": {Action: ActionUnchanged, Pages: map[string]*PageState{}},
	}
	next := map[string]*PackState{}

	diff := DiffStates(prev, next)
	if _, ok := diff["Core"].(deleteMarkerType); !ok {
		t.Fatalf("expected Core to be DeleteMarker, got %#v", diff["Core"])
	}
}

func TestMergeComposeLaw(t *testing.T) {
	base := map[string]any{
		"Core": map[string]any{
			"action": "unchanged",
			"pages": map[string]any{
				"Intro": map[string]any{"final_title": "Intro"},
			},
		},
		"UI": map[string]any{"action": "unchanged"},
	}

	d1 := map[string]any{
		"Core": map[string]any{
			"action": "install",
			"pages": map[string]any{
				"Intro": map[string]any{"final_title": "Sandbox/Intro"},
			},
		},
	}
	d2 := map[string]any{
		"UI":   map[string]any{"action": "install", "auto_selected_reason": "required by Core"},
		"Core": map[string]any{"pages": map[string]any{"Intro": map[string]any{"final_title": "Sandbox/Welcome"}}},
	}

	sequential := Merge(Merge(base, d1), d2)
	composed := Merge(base, Compose(d1, d2))

	if !reflect.DeepEqual(sequential, composed) {
		t.Fatalf("merge law violated:\nsequential=%#v\ncomposed=%#v", sequential, composed)
	}
}

func TestMerge_DeleteMarkerRemovesKey(t *testing.T) {
	base := map[string]any{"Core": map[string]any{"action": "install"}, "UI": map[string]any{"action": "unchanged"}}
	diff := map[string]any{"UI": DeleteMarker}

	out := Merge(base, diff)
	if _, ok := out["UI"]; ok {
		t.Fatalf("expected UI removed after merging a delete marker, got %#v", out)
	}
	if _, ok := out["Core"]; !ok {
		t.Fatalf("expected Core untouched")
	}
}
