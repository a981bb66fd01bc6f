package manifest

import (
	"bytes"

	"github.com/contentpacks/cpack/internal/store"
	"gopkg.in/yaml.v3"
)

// MaxManifestBytes rejects pathologically large manifests before they ever
// reach the YAML decoder.
const MaxManifestBytes = 10 * 1024 * 1024 // 10 MiB

// MaxManifestDepth rejects pathologically deep documents (a cheap defense
// against adversarially nested YAML, which the decoder itself won't bound).
const MaxManifestDepth = 32

// rawManifest is the shape yaml.v3 decodes into before pack normalization;
// `packs` accepts either the map form or a list form (each list element
// carrying its own `id` field), per spec.md §6.
type rawManifest struct {
	SchemaVersion string    `yaml:"schema_version"`
	Packs         yaml.Node `yaml:"packs"`
}

type rawPack struct {
	ID          string          `yaml:"id"`
	Version     string          `yaml:"version"`
	Description string          `yaml:"description"`
	DependsOn   []string        `yaml:"depends_on"`
	Contains    []string        `yaml:"contains"`
	Pages       map[string]Page `yaml:"pages"`
}

// Parse decodes raw YAML bytes into a Manifest, normalizing the `packs`
// map-or-list shape. Fails with KindParse on malformed YAML, oversized
// input, or excessive nesting.
func Parse(raw []byte) (Manifest, error) {
	if len(raw) > MaxManifestBytes {
		return Manifest{}, store.NewError(store.KindParse, "manifest exceeds %d bytes (got %d)", MaxManifestBytes, len(raw))
	}

	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&root); err != nil {
		return Manifest{}, store.NewError(store.KindParse, "decoding manifest yaml: %v", err)
	}
	if depth := nodeDepth(&root, 0); depth > MaxManifestDepth {
		return Manifest{}, store.NewError(store.KindParse, "manifest nesting depth %d exceeds limit %d", depth, MaxManifestDepth)
	}

	var rm rawManifest
	if err := root.Decode(&rm); err != nil {
		return Manifest{}, store.NewError(store.KindParse, "decoding manifest structure: %v", err)
	}

	packs, err := normalizePacks(&rm.Packs)
	if err != nil {
		return Manifest{}, err
	}

	return Manifest{SchemaVersion: rm.SchemaVersion, Packs: packs}, nil
}

// normalizePacks accepts either a mapping (pack id -> fields) or a sequence
// (each element carrying its own `id`) and returns a map keyed by id, with
// each Pack's page names filled in from its Pages map key.
func normalizePacks(node *yaml.Node) (map[string]Pack, error) {
	packs := map[string]Pack{}
	if node == nil || node.Kind == 0 {
		return packs, nil
	}

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			id := node.Content[i].Value
			var rp rawPack
			if err := node.Content[i+1].Decode(&rp); err != nil {
				return nil, store.NewError(store.KindParse, "decoding pack %q: %v", id, err)
			}
			rp.ID = id
			packs[id] = toPack(rp)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var rp rawPack
			if err := item.Decode(&rp); err != nil {
				return nil, store.NewError(store.KindParse, "decoding pack list entry: %v", err)
			}
			if rp.ID == "" {
				return nil, store.NewError(store.KindParse, "pack list entry missing id")
			}
			packs[rp.ID] = toPack(rp)
		}
	default:
		return nil, store.NewError(store.KindParse, "manifest 'packs' must be a mapping or sequence")
	}
	return packs, nil
}

func toPack(rp rawPack) Pack {
	pages := make(map[string]Page, len(rp.Pages))
	for name, p := range rp.Pages {
		p.Name = name
		pages[name] = p
	}
	return Pack{
		ID:          rp.ID,
		Version:     rp.Version,
		Description: rp.Description,
		DependsOn:   rp.DependsOn,
		Contains:    rp.Contains,
		Pages:       pages,
	}
}

// nodeDepth walks a decoded yaml.Node tree and returns its maximum nesting
// depth, stopping early once it exceeds MaxManifestDepth (no point walking
// an adversarially deep tree to completion just to reject it).
func nodeDepth(n *yaml.Node, depth int) int {
	if n == nil || depth > MaxManifestDepth {
		return depth
	}
	max := depth
	for _, c := range n.Content {
		if d := nodeDepth(c, depth+1); d > max {
			max = d
			if max > MaxManifestDepth {
				return max
			}
		}
	}
	return max
}
