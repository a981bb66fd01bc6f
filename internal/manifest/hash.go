package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalPack is a stable-field-order projection of Pack used only for
// hashing: map iteration order is randomized in Go, so hashing a Pack's
// Pages map directly would make Hash non-deterministic across runs.
type canonicalPack struct {
	ID          string         `json:"id"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	DependsOn   []string       `json:"depends_on"`
	Contains    []string       `json:"contains"`
	Pages       []canonicalPage `json:"pages"`
}

type canonicalPage struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// Hash computes a stable SHA-256 (hex-encoded) over the manifest's
// canonicalized content, per spec.md §4.3 ("meta.hash: stable SHA over
// canonicalized manifest content"). Two manifests with identical pack/page
// content hash identically regardless of source map iteration order.
func Hash(m Manifest) string {
	packs := make([]canonicalPack, 0, len(m.Packs))
	for _, id := range m.SortedPackIDs() {
		p := m.Packs[id]
		cp := canonicalPack{
			ID:          p.ID,
			Version:     p.Version,
			Description: p.Description,
			DependsOn:   append([]string{}, p.DependsOn...),
			Contains:    append([]string{}, p.Contains...),
		}
		for _, name := range p.SortedPageNames() {
			cp.Pages = append(cp.Pages, canonicalPage{Name: name, File: p.Pages[name].File})
		}
		packs = append(packs, cp)
	}

	canon := struct {
		SchemaVersion string          `json:"schema_version"`
		Packs         []canonicalPack `json:"packs"`
	}{SchemaVersion: m.SchemaVersion, Packs: packs}

	b, err := json.Marshal(canon)
	if err != nil {
		// Manifest fields are all plain strings/slices; Marshal cannot fail.
		panic("manifest: canonical hash marshal: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
