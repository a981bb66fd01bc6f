// Package session implements the Pack Session Engine: one in-memory
// PackSessionState per (user, ref) (this package takes no lock; callers
// serialize access, see Session), a closed command set that
// mutates it, and the diff/merge/hash machinery clients use to stay in
// sync. Shaped directly on the teacher's runtime.Context (Set/Get/Clone/
// SnapshotValues/ApplyUpdates over a guarded map[string]any), generalized
// from an untyped key-value bag to the typed nested state spec.md §3
// describes.
package session

// PageState is one page entry within a PackState.
type PageState struct {
	Installed     bool   `json:"installed"`
	FinalTitle    string `json:"final_title"`
	OriginalTitle string `json:"original_title"`

	// renamedBase tracks the page's rename_page-supplied base title (the
	// "rename" half of spec.md §3's `rename||original_title`), independent
	// of the namespace/prefix wrapping baked into FinalTitle, so a later
	// set_pack_prefix can recompute FinalTitle without losing an earlier
	// rename. Unexported: it's bookkeeping, not part of the public state
	// shape, so it never appears in a diff or the state hash.
	renamedBase *string
}

// PackAction is the closed set of per-pack actions a session can hold.
type PackAction string

const (
	ActionUnchanged PackAction = "unchanged"
	ActionInstall   PackAction = "install"
	ActionUpdate    PackAction = "update"
	ActionRemove    PackAction = "remove"
)

// PackState is one pack entry within a PackSessionState.
type PackState struct {
	Action             PackAction            `json:"action"`
	CurrentVersion      *string               `json:"current_version"`
	TargetVersion       *string               `json:"target_version"`
	Installed           bool                  `json:"installed"`
	Prefix              string                `json:"prefix"`
	AutoSelectedReason   *string              `json:"auto_selected_reason"`
	Pages                map[string]*PageState `json:"pages"`
}

// Clone deep-copies a PackState.
func (p *PackState) Clone() *PackState {
	if p == nil {
		return nil
	}
	cp := *p
	if p.CurrentVersion != nil {
		v := *p.CurrentVersion
		cp.CurrentVersion = &v
	}
	if p.TargetVersion != nil {
		v := *p.TargetVersion
		cp.TargetVersion = &v
	}
	if p.AutoSelectedReason != nil {
		v := *p.AutoSelectedReason
		cp.AutoSelectedReason = &v
	}
	cp.Pages = make(map[string]*PageState, len(p.Pages))
	for name, pg := range p.Pages {
		pgCopy := *pg
		cp.Pages[name] = &pgCopy
	}
	return &cp
}

// State is the authoritative client-visible PackSessionState (spec.md §3).
type State struct {
	Packs     map[string]*PackState `json:"packs"`
	StateHash string                `json:"state_hash"`
	Warnings  []string              `json:"warnings"`
}

// NewEmptyState returns a zero-value State with an initialized Packs map.
func NewEmptyState() *State {
	return &State{Packs: map[string]*PackState{}}
}

// Clone deep-copies a State, excluding StateHash/Warnings recomputation
// (callers recompute those after mutating the clone).
func (s *State) Clone() *State {
	out := &State{Packs: make(map[string]*PackState, len(s.Packs))}
	for name, p := range s.Packs {
		out.Packs[name] = p.Clone()
	}
	out.Warnings = append([]string{}, s.Warnings...)
	out.StateHash = s.StateHash
	return out
}
