// Package store implements the five persistence registries named in
// spec.md §3/§4.1 (ContentRepo, ContentRef, Pack, Page, Operation). Each
// registry is the sole writer of its table and exposes add/ensure/get/
// getByKey/update/delete/list with deterministic ordering, matching the
// contract spec.md describes. There is no SQL backing store in this
// codebase — see DESIGN.md "Stdlib-only justifications" for why.
package store

// Store aggregates the five registries and the shared clock, mirroring how
// a real deployment would wire one connection pool to five DAOs.
type Store struct {
	Clock      Clock
	Repos      *ContentRepoRegistry
	Refs       *ContentRefRegistry
	Packs      *PackRegistry
	Pages      *PageRegistry
	Operations *OperationRegistry
}

// New wires a Store backed by clock. Pass store.RealClock{} in production;
// tests inject a *FixedClock.
func New(clock Clock) *Store {
	return &Store{
		Clock:      clock,
		Repos:      NewContentRepoRegistry(clock),
		Refs:       NewContentRefRegistry(clock),
		Packs:      NewPackRegistry(clock),
		Pages:      NewPageRegistry(clock),
		Operations: NewOperationRegistry(clock),
	}
}
