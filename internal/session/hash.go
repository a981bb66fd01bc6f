package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// canonicalPackState is a stable-field-order projection used only for
// hashing, same rationale as manifest.Hash: map iteration order is
// randomized, so hashing State.Packs directly would make state_hash
// non-deterministic across otherwise-identical states.
type canonicalPackState struct {
	Name               string                `json:"name"`
	Action             PackAction            `json:"action"`
	CurrentVersion     *string               `json:"current_version"`
	TargetVersion      *string               `json:"target_version"`
	Installed          bool                  `json:"installed"`
	Prefix             string                `json:"prefix"`
	AutoSelectedReason *string               `json:"auto_selected_reason"`
	Pages              []canonicalPageState  `json:"pages"`
}

type canonicalPageState struct {
	Name          string `json:"name"`
	Installed     bool   `json:"installed"`
	FinalTitle    string `json:"final_title"`
	OriginalTitle string `json:"original_title"`
}

// StateHash computes a stable SHA-256 (hex) over the canonicalized pack map,
// independent of Go map iteration order.
func StateHash(packs map[string]*PackState) string {
	names := make([]string, 0, len(packs))
	for name := range packs {
		names = append(names, name)
	}
	sort.Strings(names)

	canon := make([]canonicalPackState, 0, len(names))
	for _, name := range names {
		p := packs[name]
		pageNames := make([]string, 0, len(p.Pages))
		for pn := range p.Pages {
			pageNames = append(pageNames, pn)
		}
		sort.Strings(pageNames)

		cp := canonicalPackState{
			Name:               name,
			Action:             p.Action,
			CurrentVersion:     p.CurrentVersion,
			TargetVersion:      p.TargetVersion,
			Installed:          p.Installed,
			Prefix:             p.Prefix,
			AutoSelectedReason: p.AutoSelectedReason,
		}
		for _, pn := range pageNames {
			pg := p.Pages[pn]
			cp.Pages = append(cp.Pages, canonicalPageState{
				Name:          pn,
				Installed:     pg.Installed,
				FinalTitle:    pg.FinalTitle,
				OriginalTitle: pg.OriginalTitle,
			})
		}
		canon = append(canon, cp)
	}

	b, err := json.Marshal(canon)
	if err != nil {
		panic("session: state hash marshal: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
