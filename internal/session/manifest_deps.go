package session

import "github.com/contentpacks/cpack/internal/manifest"

// ManifestDeps adapts a manifest.Manifest to DependencyLookup.
type ManifestDeps struct {
	Manifest manifest.Manifest
}

func (d ManifestDeps) DependsOnOf(pack string) ([]string, bool) {
	p, ok := d.Manifest.Packs[pack]
	if !ok {
		return nil, false
	}
	return p.DependsOn, true
}
