package session

import "encoding/json"

// Diff is the partial, JSON-shaped patch every command response carries:
// keys present have changed (pack-level or nested `pages.<name>`), keys
// absent are unchanged, per spec.md §4.4.
type Diff map[string]any

// deleteMarkerType is a distinguished sentinel type so a diff can express
// "this key was removed" distinctly from "this key's new value happens to
// be nil" (which JSON can't tell apart once round-tripped through `any`).
type deleteMarkerType struct{}

// DeleteMarker is the sentinel Merge treats as "delete this key" and diffing
// emits for keys present in the base but absent from the next state.
var DeleteMarker = deleteMarkerType{}

// toGenericMap round-trips a JSON-taggable value through encoding/json to
// get a map[string]any — the generic shape diffing and merging operate on,
// mirroring the untyped map[string]any the teacher's runtime.Context
// already used for its snapshot/patch cycle.
func toGenericMap(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		panic("session: marshal for diff: " + err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic("session: unmarshal for diff: " + err.Error())
	}
	return m
}

// DiffStates computes the partial diff between prev and next pack states.
// Full-state commands (init, clear) should hand the caller next's entire
// Packs map directly rather than calling this.
func DiffStates(prev, next map[string]*PackState) Diff {
	prevMap := toGenericMap(prev)
	nextMap := toGenericMap(next)
	return Diff(diffMaps(prevMap, nextMap))
}

// diffMaps returns the minimal patch turning prev into next: changed or
// added keys take next's value (recursing one level when both sides hold a
// nested map, which is what makes a single pack-level diff also carry
// nested `pages.<name>` entries); keys present in prev but absent from next
// become DeleteMarker.
func diffMaps(prev, next map[string]any) map[string]any {
	out := map[string]any{}
	for k, nv := range next {
		pv, existed := prev[k]
		if !existed {
			out[k] = nv
			continue
		}
		if deepEqual(pv, nv) {
			continue
		}
		pvMap, pvIsMap := pv.(map[string]any)
		nvMap, nvIsMap := nv.(map[string]any)
		if pvIsMap && nvIsMap {
			nested := diffMaps(pvMap, nvMap)
			if len(nested) > 0 {
				out[k] = nested
			}
			continue
		}
		out[k] = nv
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out[k] = DeleteMarker
		}
	}
	return out
}

// Merge applies diff onto base following the client-side deep-merge law:
// scalars replace, nested maps merge recursively, DeleteMarker removes a
// key. Used both to let a client reconstruct next state from prev+diff, and
// (by this package's own tests) to verify
// merge(merge(s,d1),d2) == merge(s, compose(d1,d2)).
func Merge(base, diff map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, dv := range diff {
		if _, isDelete := dv.(deleteMarkerType); isDelete {
			delete(out, k)
			continue
		}
		dvMap, dvIsMap := dv.(map[string]any)
		baseMap, baseIsMap := out[k].(map[string]any)
		if dvIsMap && baseIsMap {
			out[k] = Merge(baseMap, dvMap)
			continue
		}
		out[k] = dv
	}
	return out
}

// Compose combines two sequential diffs into one equivalent diff: applying
// compose(d1, d2) to a base state must equal applying d1 then d2. Compose
// reuses Merge's exact key-wise rule because a diff is structurally a
// partial map — "apply d2 on top of d1" is the same operation as "apply a
// patch on top of a state."
func Compose(d1, d2 map[string]any) map[string]any {
	return Merge(d1, d2)
}

func deepEqual(a, b any) bool {
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if aIsMap != bIsMap {
		return false
	}
	if aIsMap {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !deepEqual(av, bv) {
				return false
			}
		}
		return true
	}
	aSlice, aIsSlice := a.([]any)
	bSlice, bIsSlice := b.([]any)
	if aIsSlice != bIsSlice {
		return false
	}
	if aIsSlice {
		if len(aSlice) != len(bSlice) {
			return false
		}
		for i := range aSlice {
			if !deepEqual(aSlice[i], bSlice[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}
