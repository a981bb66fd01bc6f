package manifest

import (
	"testing"

	"github.com/contentpacks/cpack/internal/store"
)

func TestValidate_AcceptsWellFormedManifest(t *testing.T) {
	if _, err := Validate([]byte(sampleManifest)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RejectsWrongSchemaVersion(t *testing.T) {
	const doc = `
schema_version: "2.0.0"
packs:
  Core:
    version: "1.0.0"
    pages:
      Intro: { file: "intro.md" }
`
	_, err := Validate([]byte(doc))
	assertKind(t, err, store.KindSchemaVersion)
}

func TestValidate_RejectsMissingVersion(t *testing.T) {
	const doc = `
schema_version: "1.0.0"
packs:
  Core:
    pages:
      Intro: { file: "intro.md" }
`
	_, err := Validate([]byte(doc))
	assertKind(t, err, store.KindSchema)
}

func TestValidate_RejectsPackWithNoContent(t *testing.T) {
	const doc = `
schema_version: "1.0.0"
packs:
  Empty:
    version: "1.0.0"
`
	_, err := Validate([]byte(doc))
	assertKind(t, err, store.KindSchema)
}

func TestValidate_RejectsUnknownReference(t *testing.T) {
	const doc = `
schema_version: "1.0.0"
packs:
  UI:
    version: "1.0.0"
    depends_on: ["Ghost"]
    pages:
      Widgets: { file: "widgets.md" }
`
	_, err := Validate([]byte(doc))
	assertKind(t, err, store.KindSchema)
}

func TestValidate_RejectsCycle(t *testing.T) {
	const doc = `
schema_version: "1.0.0"
packs:
  A:
    version: "1.0.0"
    depends_on: ["B"]
    pages:
      PA: { file: "a.md" }
  B:
    version: "1.0.0"
    depends_on: ["A"]
    pages:
      PB: { file: "b.md" }
`
	_, err := Validate([]byte(doc))
	assertKind(t, err, store.KindSchema)
}

func TestValidate_AcceptsDiamondDependency(t *testing.T) {
	const doc = `
schema_version: "1.0.0"
packs:
  Base:
    version: "1.0.0"
    pages:
      B: { file: "b.md" }
  Left:
    version: "1.0.0"
    depends_on: ["Base"]
    pages:
      L: { file: "l.md" }
  Right:
    version: "1.0.0"
    depends_on: ["Base"]
    pages:
      R: { file: "r.md" }
  Top:
    version: "1.0.0"
    depends_on: ["Left", "Right"]
    pages:
      T: { file: "t.md" }
`
	if _, err := Validate([]byte(doc)); err != nil {
		t.Fatalf("expected diamond dependency to validate, got %v", err)
	}
}
