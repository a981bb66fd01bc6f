package manifest

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/contentpacks/cpack/internal/store"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SupportedSchemaVersion is the only schema_version this validator accepts.
// A manifest declaring anything else fails with KindSchemaVersion rather
// than KindSchema, so callers can distinguish "wrong version" from
// "malformed document" per spec.md §4.3.
const SupportedSchemaVersion = "1.0.0"

// structuralSchemaJSON is the embedded Draft2020 schema for the top-level
// shape only: a required string schema_version and a required packs. The
// "at least one of pages/contains/depends_on" rule and cross-reference
// resolution are semantic checks enforced separately in Validate.
// packs is validated as either the map shape or the list shape (each element
// carrying its own id); per-pack field checks (required version, etc.) are
// done in the semantic pass after normalization, not here, since JSON
// Schema can't express "same shape constraints regardless of which of two
// container types wraps it" without duplicating the whole subschema twice.
const structuralSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema_version", "packs"],
  "properties": {
    "schema_version": {"type": "string"},
    "packs": {"type": ["object", "array"]}
  }
}`

var (
	structuralSchemaOnce sync.Once
	structuralSchema     *jsonschema.Schema
	structuralSchemaErr  error
)

func compiledStructuralSchema() (*jsonschema.Schema, error) {
	structuralSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("manifest-schema.json", bytes.NewReader([]byte(structuralSchemaJSON))); err != nil {
			structuralSchemaErr = err
			return
		}
		structuralSchema, structuralSchemaErr = c.Compile("manifest-schema.json")
	})
	return structuralSchema, structuralSchemaErr
}

// ValidateStructure runs the embedded JSON Schema against the raw decoded
// document (map[string]any, not the typed Manifest) so schema errors point
// at the original YAML shape rather than a lossily-normalized Go struct.
func ValidateStructure(doc map[string]any) error {
	schema, err := compiledStructuralSchema()
	if err != nil {
		return store.NewError(store.KindInternal, "compiling manifest schema: %v", err)
	}

	// jsonschema validates against json.Number-decoded data; round-trip
	// through encoding/json so YAML-native types (e.g. yaml.v3's int/float
	// representations) match what the schema compiler expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return store.NewError(store.KindSchema, "re-encoding manifest for schema validation: %v", err)
	}
	var normalized any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&normalized); err != nil {
		return store.NewError(store.KindSchema, "re-decoding manifest for schema validation: %v", err)
	}

	if err := schema.Validate(normalized); err != nil {
		return store.NewError(store.KindSchema, "manifest failed schema validation: %v", err)
	}
	return nil
}

// ValidateSchemaVersion enforces the exact supported schema_version.
func ValidateSchemaVersion(version string) error {
	if version != SupportedSchemaVersion {
		return store.NewError(store.KindSchemaVersion, "unsupported schema_version %q (want %q)", version, SupportedSchemaVersion)
	}
	return nil
}
