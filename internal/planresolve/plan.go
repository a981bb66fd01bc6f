package planresolve

import (
	"sort"
	"strings"

	"github.com/contentpacks/cpack/internal/session"
)

// PlanAction is the closed set of per-page actions a resolved plan can emit.
type PlanAction string

const (
	PlanCreate PlanAction = "create"
	PlanUpdate PlanAction = "update"
	PlanRename PlanAction = "rename"
	PlanSkip   PlanAction = "skip"
)

// PageOverride is a caller-supplied per-page action override. Zero value
// means "no override" — the resolver infers create/update from Installed
// and applies the collision-driven rename rule on its own.
type PageOverride struct {
	Action PlanAction
	Rename string
}

// PlanEntry is one flattened row of the resolved apply plan.
type PlanEntry struct {
	Page       string
	Pack       string
	FinalTitle string
	Action     PlanAction
}

// ResolvePlan flattens a Closure into the ordered plan the orchestrator
// consumes. installed reports, per page name, whether a Page row already
// exists (selecting the create/update default). externalCollisions reports,
// per page name, whether its default final title already belongs to a wiki
// page outside this closure. overrides lets a caller force an action or
// supply a rename base per page; a skip override always wins, per
// spec.md §4.5.
func ResolvePlan(closure Closure, installed map[string]bool, externalCollisions map[string]bool, overrides map[string]PageOverride, globalPrefix string) []PlanEntry {
	entries := make([]PlanEntry, 0, len(closure.Pages))
	for _, page := range closure.Pages {
		override, hasOverride := overrides[page]
		pack := ""
		if owners := closure.PageOwners[page]; len(owners) > 0 {
			pack = owners[0]
		}

		if hasOverride && override.Action == PlanSkip {
			entries = append(entries, PlanEntry{Page: page, Pack: pack, FinalTitle: page, Action: PlanSkip})
			continue
		}

		base := page
		if hasOverride && override.Rename != "" {
			base = override.Rename
		}

		finalTitle := base
		action := PlanCreate
		if installed[page] {
			action = PlanUpdate
		}
		if externalCollisions[page] && globalPrefix != "" {
			rest := base
			if idx := strings.Index(rest, ":"); idx >= 0 {
				rest = rest[idx+1:]
			}
			finalTitle = session.ComputeFinalTitle(globalPrefix, page, rest)
			action = PlanRename
		}
		if hasOverride && override.Action != "" {
			action = override.Action
		}

		entries = append(entries, PlanEntry{Page: page, Pack: pack, FinalTitle: finalTitle, Action: action})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })
	return entries
}
