package session

import (
	"testing"

	"github.com/contentpacks/cpack/internal/manifest"
)

func TestComputeFinalTitle(t *testing.T) {
	cases := []struct {
		name                            string
		prefix, namespaceSource, base   string
		want                            string
	}{
		{"no prefix no namespace", "", "Intro", "Intro", "Intro"},
		{"prefix no namespace", "Sandbox", "Intro", "Intro", "Sandbox/Intro"},
		{"no prefix with namespace", "", "Category:Foo", "Category:Foo", "Category:Foo"},
		{"prefix with namespace", "Sandbox", "Category:Foo", "Foo", "Category:Sandbox/Foo"},
		{"renamed base keeps namespace from source", "Sandbox", "Category:Foo", "Bar", "Category:Sandbox/Bar"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ComputeFinalTitle(c.prefix, c.namespaceSource, c.base)
			if got != c.want {
				t.Fatalf("ComputeFinalTitle(%q, %q, %q) = %q, want %q", c.prefix, c.namespaceSource, c.base, got, c.want)
			}
		})
	}
}

type stubApplier struct {
	applied []string
	err     error
}

func (a *stubApplier) Apply(state map[string]*PackState) ([]string, error) {
	return a.applied, a.err
}

func TestDoApply_MarksAppliedPacksUnchanged(t *testing.T) {
	s := newTestSession(t, sampleManifest())
	mustDispatch(t, s, CmdInit, nil, "")
	state := s.State()
	mustDispatch(t, s, CmdSetPackAction, SetPackActionData{PackName: "Core", Action: ActionInstall}, state.StateHash)

	s.Applier = &stubApplier{applied: []string{"Core"}}

	state = s.State()
	mustDispatch(t, s, CmdApply, nil, state.StateHash)

	final := s.State()
	if final.Packs["Core"].Action != ActionUnchanged {
		t.Fatalf("expected Core action reset to unchanged after a clean apply, got %s", final.Packs["Core"].Action)
	}
	if final.Packs["Core"].AutoSelectedReason != nil {
		t.Fatalf("expected auto_selected_reason cleared after apply")
	}
}

// TestSetPackPrefix_PreservesNamespaceWithoutDuplicatingIt guards against a
// regression where doSetPackPrefix fed ComputeFinalTitle the full
// namespaced OriginalTitle as base, yielding "Template:Pubs/Template:Card"
// instead of the spec.md §8 scenario 3 result "Template:Pubs/Card".
func TestSetPackPrefix_PreservesNamespaceWithoutDuplicatingIt(t *testing.T) {
	m := manifest.Manifest{
		SchemaVersion: "1.0.0",
		Packs: map[string]manifest.Pack{
			"Publication": {
				ID:      "Publication",
				Version: "1.0.0",
				Pages: map[string]manifest.Page{
					"Home":         {Name: "Home", File: "pub/home.md"},
					"Template:Card": {Name: "Template:Card", File: "pub/card.md"},
				},
			},
		},
	}
	s := newTestSession(t, m)
	mustDispatch(t, s, CmdInit, nil, "")
	state := s.State()
	mustDispatch(t, s, CmdSetPackAction, SetPackActionData{PackName: "Publication", Action: ActionInstall}, state.StateHash)

	state = s.State()
	mustDispatch(t, s, CmdSetPackPrefix, SetPackPrefixData{PackName: "Publication", Prefix: "Pubs"}, state.StateHash)

	final := s.State()
	pages := final.Packs["Publication"].Pages
	if got, want := pages["Home"].FinalTitle, "Pubs/Home"; got != want {
		t.Fatalf("Home final_title = %q, want %q", got, want)
	}
	if got, want := pages["Template:Card"].FinalTitle, "Template:Pubs/Card"; got != want {
		t.Fatalf("Template:Card final_title = %q, want %q", got, want)
	}
}

func TestDoApply_NoApplierConfiguredReturnsInternalError(t *testing.T) {
	s := newTestSession(t, sampleManifest())
	mustDispatch(t, s, CmdInit, nil, "")
	state := s.State()

	_, err := s.Dispatch(CmdApply, nil, state.StateHash)
	if err == nil {
		t.Fatalf("expected an error when no Applier is configured")
	}
}
