package apply

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/contentpacks/cpack/internal/manifest"
	"github.com/contentpacks/cpack/internal/session"
	"github.com/contentpacks/cpack/internal/store"
)

// Orchestrator runs the five apply phases spec.md §4.6 names against one
// (repo, ref)'s resolved session selection. It implements session.Applier,
// so a Session can hand its resolved state straight to one.
type Orchestrator struct {
	Manifest     manifest.Manifest
	Packs        *store.PackRegistry
	Pages        *store.PageRegistry
	Files        FileReader
	Wiki         WikiClient
	WorktreePath string
	RefID        string
	SourceCommit string
	InstalledBy  string

	// DeletePages controls whether the remove phase also deletes the wiki
	// pages themselves (spec.md §4.6 "optionally delete wiki pages,
	// flag-controlled") or only the registry rows.
	DeletePages bool
}

// Apply satisfies session.Applier. The session command set carries no
// context, so this runs the whole orchestration under a background
// context; callers needing cancellation should use ApplyContext directly.
func (o *Orchestrator) Apply(state map[string]*session.PackState) ([]string, error) {
	result, err := o.ApplyContext(context.Background(), state)
	if err != nil {
		return nil, err
	}
	return result.Installed, nil
}

// ApplyContext runs the full five-phase apply and returns the detailed
// Result spec.md §4.6 describes. Phases 1 and 2 (validation) abort the
// whole run with no side effects; phases 3-5 run best-effort per pack,
// collecting per-page failures without aborting the rest of the batch.
func (o *Orchestrator) ApplyContext(ctx context.Context, state map[string]*session.PackState) (*Result, error) {
	var installs, updates, removes []string
	for _, name := range sortedStateKeys(state) {
		switch state[name].Action {
		case session.ActionInstall:
			installs = append(installs, name)
		case session.ActionUpdate:
			updates = append(updates, name)
		case session.ActionRemove:
			removes = append(removes, name)
		}
	}

	if err := o.validateInstallDeps(installs, state); err != nil {
		return nil, err
	}
	if err := o.validateRemovalSafety(removes); err != nil {
		return nil, err
	}

	result := &Result{Success: true}

	for _, packID := range topoSort(installs, o.dependsOnForInstall) {
		o.installPack(ctx, packID, state[packID], result)
	}
	for _, packID := range updates {
		o.updatePack(ctx, packID, state[packID], result)
	}
	for _, packID := range reversed(topoSort(removes, o.dependsOnForInstall)) {
		o.removePack(ctx, packID, result)
	}

	result.Success = len(result.Failed) == 0
	return result, nil
}

// validateInstallDeps is phase 1: for every install, every depends_on must
// either be part of this install set or already installed in this ref.
func (o *Orchestrator) validateInstallDeps(installs []string, state map[string]*session.PackState) error {
	installSet := map[string]bool{}
	for _, id := range installs {
		installSet[id] = true
	}
	var missing []string
	for _, id := range installs {
		for _, dep := range o.Manifest.Packs[id].DependsOn {
			if installSet[dep] {
				continue
			}
			if ps, ok := state[dep]; ok && ps.Installed {
				continue
			}
			missing = append(missing, fmt.Sprintf("%s requires %s", id, dep))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return store.NewError(store.KindDependencyViolation, "missing dependencies: %s", strings.Join(missing, "; "))
	}
	return nil
}

// validateRemovalSafety is phase 2: no installed pack outside the remove
// set may depend on a pack being removed.
func (o *Orchestrator) validateRemovalSafety(removes []string) error {
	removeSet := map[string]bool{}
	for _, id := range removes {
		removeSet[id] = true
	}
	var blockers []string
	blockedBy := map[string][]string{}
	for _, id := range o.Manifest.SortedPackIDs() {
		if removeSet[id] {
			continue
		}
		installed := o.Packs.GetByKey(o.RefID, id)
		if installed == nil || installed.Status != store.PackInstalled {
			continue
		}
		for _, dep := range o.Manifest.Packs[id].DependsOn {
			if removeSet[dep] {
				blockers = append(blockers, fmt.Sprintf("%s depends on %s", id, dep))
				blockedBy[dep] = append(blockedBy[dep], id)
			}
		}
	}
	if len(blockers) > 0 {
		sort.Strings(blockers)
		return store.NewError(store.KindDependencyViolation, "packs block removal: %s", strings.Join(blockers, "; ")).
			WithContext(map[string]any{"blockers": blockedBy})
	}
	return nil
}

func (o *Orchestrator) dependsOnForInstall(packID string) []string {
	return o.Manifest.Packs[packID].DependsOn
}

func (o *Orchestrator) installPack(ctx context.Context, packID string, ps *session.PackState, result *Result) {
	mp := o.Manifest.Packs[packID]
	pack, err := o.Packs.Ensure(o.RefID, packID, mp.Version, o.SourceCommit, o.InstalledBy)
	if err != nil {
		o.fail(result, packID, "", store.KindInternal, err.Error())
		return
	}

	failures := o.writePages(ctx, packID, pack.ID, mp, ps, result)
	if failures == 0 {
		result.Installed = append(result.Installed, packID)
	} else {
		result.Failed = append(result.Failed, packID)
	}
}

func (o *Orchestrator) updatePack(ctx context.Context, packID string, ps *session.PackState, result *Result) {
	mp := o.Manifest.Packs[packID]
	pack := o.Packs.GetByKey(o.RefID, packID)
	if pack == nil {
		o.fail(result, packID, "", store.KindNotFound, fmt.Sprintf("pack %q is not installed", packID))
		return
	}

	failureCount := 0
	for _, pageName := range mp.SortedPageNames() {
		page := mp.Pages[pageName]
		finalTitle := pageName
		if ps != nil {
			if pgState := ps.Pages[pageName]; pgState != nil {
				finalTitle = pgState.FinalTitle
			}
		}

		content, err := o.Files.ReadFile(o.WorktreePath, page.File)
		if err != nil {
			o.pageFailure(result, packID, pageName, store.KindMissingFile, err.Error())
			failureCount++
			continue
		}

		existing := o.Pages.GetByKey(pack.ID, pageName)
		if existing == nil {
			o.pageFailure(result, packID, pageName, store.KindNotFound, fmt.Sprintf("page %q has no existing row to update", pageName))
			failureCount++
			continue
		}

		wikiPage, err := o.Wiki.UpdatePage(ctx, existing.WikiPageID, content)
		if err != nil {
			o.pageFailure(result, packID, pageName, store.KindWriteFailed, err.Error())
			failureCount++
			continue
		}

		hash := contentHash(content)
		namespace, _ := splitNamespace(finalTitle)
		if _, err := o.Pages.Ensure(o.RefID, pack.ID, pageName, finalTitle, namespace); err != nil {
			o.pageFailure(result, packID, pageName, store.KindWriteFailed, err.Error())
			failureCount++
			continue
		}
		revID := wikiPage.RevID
		if _, err := o.Pages.Update(o.RefID, existing.ID, store.PageUpdate{FinalTitle: &finalTitle, ContentHash: &hash, LastRevID: &revID}); err != nil {
			o.pageFailure(result, packID, pageName, store.KindWriteFailed, err.Error())
			failureCount++
		}
	}

	if failureCount == 0 {
		newVersion := mp.Version
		sourceCommit := o.SourceCommit
		installedBy := o.InstalledBy
		if _, err := o.Packs.Update(pack.ID, store.PackUpdate{Version: &newVersion, SourceCommit: &sourceCommit, InstalledBy: &installedBy}); err != nil {
			o.fail(result, packID, "", store.KindInternal, err.Error())
			return
		}
		result.Installed = append(result.Installed, packID)
	} else {
		result.Failed = append(result.Failed, packID)
	}
}

func (o *Orchestrator) removePack(ctx context.Context, packID string, result *Result) {
	pack := o.Packs.GetByKey(o.RefID, packID)
	if pack == nil {
		o.fail(result, packID, "", store.KindNotFound, fmt.Sprintf("pack %q is not installed", packID))
		return
	}

	pages := o.Pages.ListByPack(pack.ID)
	if o.DeletePages {
		for _, p := range pages {
			if p.WikiPageID == "" {
				continue
			}
			if err := o.Wiki.DeletePage(ctx, p.WikiPageID); err != nil {
				o.pageFailure(result, packID, p.Name, store.KindWriteFailed, err.Error())
			}
		}
	}

	o.Pages.DeleteByPack(o.RefID, pack.ID)
	if err := o.Packs.Remove(pack.ID); err != nil {
		o.fail(result, packID, "", store.KindInternal, err.Error())
		return
	}
	result.Installed = append(result.Installed, packID)
}

// writePages drives the shared install-page-write loop, returning the
// number of page-level failures.
func (o *Orchestrator) writePages(ctx context.Context, packID, packRowID string, mp manifest.Pack, ps *session.PackState, result *Result) int {
	failures := 0
	for _, pageName := range mp.SortedPageNames() {
		page := mp.Pages[pageName]
		finalTitle := pageName
		if ps != nil {
			if pg := ps.Pages[pageName]; pg != nil {
				finalTitle = pg.FinalTitle
			}
		}

		content, err := o.Files.ReadFile(o.WorktreePath, page.File)
		if err != nil {
			o.pageFailure(result, packID, pageName, store.KindMissingFile, err.Error())
			failures++
			continue
		}

		wikiPage, err := o.Wiki.CreatePage(ctx, finalTitle, content, packID)
		if err != nil {
			o.pageFailure(result, packID, pageName, store.KindWriteFailed, err.Error())
			failures++
			continue
		}

		namespace, _ := splitNamespace(finalTitle)
		pageRow, err := o.Pages.Ensure(o.RefID, packRowID, pageName, finalTitle, namespace)
		if err != nil {
			o.pageFailure(result, packID, pageName, store.KindWriteFailed, err.Error())
			failures++
			continue
		}
		hash := contentHash(content)
		wikiPageID := wikiPage.PageID
		revID := wikiPage.RevID
		if _, err := o.Pages.Update(o.RefID, pageRow.ID, store.PageUpdate{WikiPageID: &wikiPageID, ContentHash: &hash, LastRevID: &revID}); err != nil {
			o.pageFailure(result, packID, pageName, store.KindWriteFailed, err.Error())
			failures++
		}
	}
	return failures
}

func (o *Orchestrator) fail(result *Result, packID, pageName string, kind store.ErrorKind, message string) {
	result.Failed = append(result.Failed, packID)
	result.Errors = append(result.Errors, PageFailure{Pack: packID, Page: pageName, Kind: string(kind), Message: message})
}

func (o *Orchestrator) pageFailure(result *Result, packID, pageName string, kind store.ErrorKind, message string) {
	result.Errors = append(result.Errors, PageFailure{Pack: packID, Page: pageName, Kind: string(kind), Message: message})
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func splitNamespace(title string) (namespace, rest string) {
	idx := strings.Index(title, ":")
	if idx < 0 {
		return "", title
	}
	return title[:idx], title[idx+1:]
}

func sortedStateKeys(state map[string]*session.PackState) []string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
