package manifest

import (
	"strings"
	"testing"

	"github.com/contentpacks/cpack/internal/store"
)

const sampleManifest = `
schema_version: "1.0.0"
packs:
  Core:
    version: "1.0.0"
    pages:
      Intro: { file: "core/intro.md" }
      Setup: { file: "core/setup.md" }
  UI:
    version: "1.0.0"
    depends_on: ["Core"]
    pages:
      Widgets: { file: "ui/widgets.md" }
  Bundle:
    version: "2.0.0"
    contains: ["Core", "UI"]
`

func TestParse_MapShape(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.SchemaVersion != "1.0.0" {
		t.Fatalf("expected schema_version 1.0.0, got %q", m.SchemaVersion)
	}
	if len(m.Packs) != 3 {
		t.Fatalf("expected 3 packs, got %d", len(m.Packs))
	}
	core, ok := m.Packs["Core"]
	if !ok {
		t.Fatal("expected Core pack")
	}
	if len(core.Pages) != 2 {
		t.Fatalf("expected 2 pages in Core, got %d", len(core.Pages))
	}
	if core.Pages["Intro"].File != "core/intro.md" {
		t.Fatalf("expected page file core/intro.md, got %q", core.Pages["Intro"].File)
	}
	ui := m.Packs["UI"]
	if len(ui.DependsOn) != 1 || ui.DependsOn[0] != "Core" {
		t.Fatalf("expected UI depends_on [Core], got %v", ui.DependsOn)
	}
	bundle := m.Packs["Bundle"]
	if len(bundle.Contains) != 2 {
		t.Fatalf("expected Bundle contains 2 packs, got %v", bundle.Contains)
	}
}

func TestParse_ListShape(t *testing.T) {
	const doc = `
schema_version: "1.0.0"
packs:
  - id: Core
    version: "1.0.0"
    pages:
      Intro: { file: "core/intro.md" }
`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := m.Packs["Core"]; !ok {
		t.Fatalf("expected Core pack from list shape, got %v", m.Packs)
	}
}

func TestParse_RejectsOversizedInput(t *testing.T) {
	huge := strings.Repeat("a", MaxManifestBytes+1)
	_, err := Parse([]byte(huge))
	assertKind(t, err, store.KindParse)
}

func TestParse_RejectsExcessiveNesting(t *testing.T) {
	var b strings.Builder
	b.WriteString("schema_version: \"1.0.0\"\npacks:\n  Core:\n    version: \"1.0.0\"\n    pages:\n")
	// Build a deeply nested YAML mapping to exceed MaxManifestDepth.
	b.WriteString("      Deep: { file: deep.md }\n")
	b.WriteString("extra:\n")
	indent := "  "
	for i := 0; i < MaxManifestDepth+5; i++ {
		b.WriteString(indent + "nested:\n")
		indent += "  "
	}
	b.WriteString(indent + "leaf: true\n")

	_, err := Parse([]byte(b.String()))
	assertKind(t, err, store.KindParse)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("packs: [this is not: valid"))
	assertKind(t, err, store.KindParse)
}

func assertKind(t *testing.T, err error, kind store.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", kind)
	}
	se, ok := err.(*store.Error)
	if !ok {
		t.Fatalf("expected *store.Error, got %T: %v", err, err)
	}
	if se.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, se.Kind, err)
	}
}
