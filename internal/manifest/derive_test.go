package manifest

import "testing"

func TestDerive_HierarchyRootsAreUncontainedPacks(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hierarchy, _, _ := Derive(m)

	var rootIDs []string
	for _, n := range hierarchy {
		rootIDs = append(rootIDs, n.ID)
	}
	// Core and UI are both contained by Bundle, so only Bundle is a root.
	if len(rootIDs) != 1 || rootIDs[0] != "Bundle" {
		t.Fatalf("expected roots [Bundle], got %v", rootIDs)
	}

	bundle := hierarchy[0]
	if len(bundle.Children) != 2 {
		t.Fatalf("expected Bundle to have 2 children, got %d", len(bundle.Children))
	}
	if bundle.Children[0].ID != "Core" || bundle.Children[1].ID != "UI" {
		t.Fatalf("expected deterministic child order [Core, UI], got %v", bundle.Children)
	}
}

func TestDerive_GraphEdgesDeterministic(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, graph, _ := Derive(m)

	if len(graph.Depends) != 1 || graph.Depends[0] != (Edge{From: "UI", To: "Core"}) {
		t.Fatalf("expected depends edge UI->Core, got %v", graph.Depends)
	}
	if len(graph.Contains) != 2 {
		t.Fatalf("expected 2 contains edges, got %v", graph.Contains)
	}
}

func TestDerive_Stats(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, _, stats := Derive(m)
	if stats.PackCount != 3 {
		t.Fatalf("expected pack_count 3, got %d", stats.PackCount)
	}
	if stats.PageCount != 3 {
		t.Fatalf("expected page_count 3, got %d", stats.PageCount)
	}
}
