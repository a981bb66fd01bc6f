package session

import (
	"encoding/json"
	"strings"

	"github.com/contentpacks/cpack/internal/manifest"
	"github.com/contentpacks/cpack/internal/store"
)

// CommandTag is the session engine's closed command set (spec.md §4.4).
type CommandTag string

const (
	CmdInit          CommandTag = "init"
	CmdSetPackAction CommandTag = "set_pack_action"
	CmdSetPackPrefix CommandTag = "set_pack_prefix"
	CmdRenamePage    CommandTag = "rename_page"
	CmdApply         CommandTag = "apply"
	CmdRefresh       CommandTag = "refresh"
	CmdClear         CommandTag = "clear"
)

// SetPackActionData is the payload for set_pack_action.
type SetPackActionData struct {
	PackName string     `json:"pack_name"`
	Action   PackAction `json:"action"`
}

// SetPackPrefixData is the payload for set_pack_prefix.
type SetPackPrefixData struct {
	PackName string `json:"pack_name"`
	Prefix   string `json:"prefix"`
}

// RenamePageData is the payload for rename_page.
type RenamePageData struct {
	PackName string `json:"pack_name"`
	PageName string `json:"page_name"`
	NewTitle string `json:"new_title"`
}

// Result is what every Dispatch call returns: spec.md §4.4's
// {diff, state_hash, warnings} envelope, plus the state-mismatch payload
// when the caller's client_state_hash was stale.
type Result struct {
	Diff        Diff
	StateHash   string
	Warnings    []string
	Differences Diff
	Reconcile   []CommandTag
}

// Applier hands a resolved apply off to the orchestrator and reports the
// outcome back into session state (action -> unchanged for packs that
// applied cleanly). Implemented by internal/apply.Orchestrator in
// production.
type Applier interface {
	Apply(state map[string]*PackState) (appliedPacks []string, err error)
}

// Session holds one user's live PackSessionState for one (repo, ref) and
// dispatches the command set against it. One Session instance per
// (user, ref) — callers are expected to serialize access to a given
// instance themselves via a single goroutine or an external lock
// (internal/server holds one mutex per session in its sessionEntry).
type Session struct {
	RefID    string
	Manifest manifest.Manifest
	Packs    *store.PackRegistry
	Pages    *store.PageRegistry
	Ownership TitleOwnership
	Applier   Applier

	state      *State
	history    []historyEntry
	commandLog []CommandTag
}

// Dispatch routes cmd to its handler, enforcing the state-sync contract
// (spec.md §4.4) for every command except init/clear, then recomputes
// warnings and state_hash before returning the envelope. The state-sync
// check is skipped when clientStateHash is empty.
func (s *Session) Dispatch(cmd CommandTag, data json.RawMessage, clientStateHash string) (*Result, error) {
	if s.state == nil {
		if cmd != CmdInit {
			return nil, store.NewError(store.KindValidation, "session not initialized; call init first")
		}
	}

	if cmd != CmdInit && cmd != CmdClear && clientStateHash != "" && s.state != nil && clientStateHash != s.state.StateHash {
		return s.reconcile(clientStateHash), store.NewError(store.KindStateMismatch, "client_state_hash %q does not match server state %q", clientStateHash, s.state.StateHash)
	}

	var prev *State
	if s.state != nil {
		prev = s.state.Clone()
	}

	var err error
	switch cmd {
	case CmdInit:
		err = s.doInit()
	case CmdSetPackAction:
		err = s.doSetPackAction(data)
	case CmdSetPackPrefix:
		err = s.doSetPackPrefix(data)
	case CmdRenamePage:
		err = s.doRenamePage(data)
	case CmdApply:
		err = s.doApply()
	case CmdRefresh:
		err = s.doInit() // refresh re-reads registries and rebuilds state, same as init
	case CmdClear:
		err = s.doInit()
	default:
		err = store.NewError(store.KindValidation, "unknown command %q", cmd)
	}
	if err != nil {
		return nil, err
	}

	s.state.Warnings = ComputeWarnings(ManifestDeps{s.Manifest}, s.state.Packs, s.Ownership)
	s.state.StateHash = StateHash(s.state.Packs)

	if cmd == CmdInit || cmd == CmdClear || cmd == CmdRefresh {
		s.resetHistory()
		return &Result{
			Diff:      Diff(toGenericMap(s.state.Packs)),
			StateHash: s.state.StateHash,
			Warnings:  s.state.Warnings,
		}, nil
	}

	diff := DiffStates(prev.Packs, s.state.Packs)
	s.recordHistory(cmd)
	return &Result{Diff: diff, StateHash: s.state.StateHash, Warnings: s.state.Warnings}, nil
}

// State returns the session's current state (read-only snapshot).
func (s *Session) State() *State {
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

// doInit cross-references the manifest's declared packs with the Pack
// registry for this ref (spec.md §4.4 "Initialization").
func (s *Session) doInit() error {
	packs := map[string]*PackState{}
	for _, id := range s.Manifest.SortedPackIDs() {
		mp := s.Manifest.Packs[id]

		var currentVersion *string
		installed := false
		existing := s.Packs.GetByKey(s.RefID, id)
		if existing != nil && existing.Status == store.PackInstalled {
			v := existing.Version
			currentVersion = &v
			installed = true
		}

		targetVersion := mp.Version
		pages := map[string]*PageState{}
		for _, pageName := range mp.SortedPageNames() {
			pageInstalled := false
			finalTitle := pageName
			if existing != nil {
				if pg := s.Pages.GetByKey(existing.ID, pageName); pg != nil {
					pageInstalled = true
					finalTitle = pg.FinalTitle
				}
			}
			pages[pageName] = &PageState{Installed: pageInstalled, FinalTitle: finalTitle, OriginalTitle: pageName}
		}

		packs[id] = &PackState{
			Action:         ActionUnchanged,
			CurrentVersion: currentVersion,
			TargetVersion:  &targetVersion,
			Installed:      installed,
			Prefix:         "",
			Pages:          pages,
		}
	}
	s.state = &State{Packs: packs}
	return nil
}

func (s *Session) doSetPackAction(data json.RawMessage) error {
	var d SetPackActionData
	if err := json.Unmarshal(data, &d); err != nil {
		return store.NewError(store.KindValidation, "decoding set_pack_action: %v", err)
	}
	ps, ok := s.state.Packs[d.PackName]
	if !ok {
		return store.NewError(store.KindValidation, "unknown pack %q", d.PackName)
	}
	switch d.Action {
	case ActionInstall, ActionUpdate, ActionRemove, ActionUnchanged:
	default:
		return store.NewError(store.KindValidation, "invalid action %q", d.Action)
	}
	if d.Action == ActionInstall && ps.Installed {
		return store.NewError(store.KindValidation, "pack %q is already installed", d.PackName)
	}
	if (d.Action == ActionUpdate || d.Action == ActionRemove) && !ps.Installed {
		return store.NewError(store.KindValidation, "pack %q is not installed", d.PackName)
	}

	ps.Action = d.Action
	ps.AutoSelectedReason = nil

	switch d.Action {
	case ActionInstall:
		ApplyInstallClosure(s.Manifest, s.state.Packs, d.PackName)
	case ActionRemove:
		ApplyRemovalClosure(s.Manifest, s.state.Packs, d.PackName)
	}
	return nil
}

func (s *Session) doSetPackPrefix(data json.RawMessage) error {
	var d SetPackPrefixData
	if err := json.Unmarshal(data, &d); err != nil {
		return store.NewError(store.KindValidation, "decoding set_pack_prefix: %v", err)
	}
	ps, ok := s.state.Packs[d.PackName]
	if !ok {
		return store.NewError(store.KindValidation, "unknown pack %q", d.PackName)
	}
	if ps.Action != ActionInstall && ps.Action != ActionUpdate {
		return store.NewError(store.KindValidation, "pack %q must be in install or update action to set a prefix", d.PackName)
	}
	ps.Prefix = d.Prefix
	for _, pg := range ps.Pages {
		_, base := splitNamespace(pg.OriginalTitle)
		if pg.renamedBase != nil {
			base = *pg.renamedBase
		}
		pg.FinalTitle = ComputeFinalTitle(d.Prefix, pg.OriginalTitle, base)
	}
	return nil
}

func (s *Session) doRenamePage(data json.RawMessage) error {
	var d RenamePageData
	if err := json.Unmarshal(data, &d); err != nil {
		return store.NewError(store.KindValidation, "decoding rename_page: %v", err)
	}
	ps, ok := s.state.Packs[d.PackName]
	if !ok {
		return store.NewError(store.KindValidation, "unknown pack %q", d.PackName)
	}
	if ps.Action != ActionInstall && ps.Action != ActionUpdate {
		return store.NewError(store.KindValidation, "pack %q must be in install or update action to rename a page", d.PackName)
	}
	pg, ok := ps.Pages[d.PageName]
	if !ok {
		return store.NewError(store.KindValidation, "unknown page %q in pack %q", d.PageName, d.PackName)
	}
	if pg.Installed {
		return store.NewError(store.KindValidation, "page %q is already installed and cannot be renamed", d.PageName)
	}
	newTitle := d.NewTitle
	pg.renamedBase = &newTitle
	pg.FinalTitle = ComputeFinalTitle(ps.Prefix, pg.OriginalTitle, newTitle)
	return nil
}

func (s *Session) doApply() error {
	if s.Applier == nil {
		return store.NewError(store.KindInternal, "session has no Applier configured")
	}
	applied, err := s.Applier.Apply(s.state.Packs)
	if err != nil {
		return err
	}
	for _, name := range applied {
		if ps, ok := s.state.Packs[name]; ok {
			ps.Action = ActionUnchanged
			ps.AutoSelectedReason = nil
		}
	}
	return nil
}

// ComputeFinalTitle recomputes final_title from a prefix, a namespace
// source (the title whose leading `Namespace:` segment, if any, is
// preserved), and a base (the `rename||original_title` half), per
// spec.md §3's invariant: `final_title == prefix + '/' + (rename||original_title)`
// preserving any leading Namespace: segment.
func ComputeFinalTitle(prefix, namespaceSource, base string) string {
	namespace, _ := splitNamespace(namespaceSource)
	rest := base
	if prefix == "" {
		if namespace == "" {
			return rest
		}
		return namespace + ":" + rest
	}
	joined := prefix + "/" + rest
	if namespace == "" {
		return joined
	}
	return namespace + ":" + joined
}

func splitNamespace(title string) (namespace, rest string) {
	idx := strings.Index(title, ":")
	if idx < 0 {
		return "", title
	}
	return title[:idx], title[idx+1:]
}
