package state

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// LayerRegistry tracks the set of contributing owners and their shared
// paint order. The order is a permutation of exactly the known owners; a
// new contributor is always appended, so they paint on top until someone
// reorders. Visibility is local-only and never leaves this client.
type LayerRegistry struct {
	order  []string
	known  mapset.Set[string]
	hidden map[string]bool
	mu     sync.RWMutex
}

// NewLayerRegistry creates an empty registry.
func NewLayerRegistry() *LayerRegistry {
	return &LayerRegistry{
		known:  mapset.NewThreadUnsafeSet[string](),
		hidden: make(map[string]bool),
	}
}

// EnsureLayer registers an owner if not already known and reports whether
// it was new. New owners go to the end of the paint order.
func (r *LayerRegistry) EnsureLayer(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(ownerID)
}

func (r *LayerRegistry) ensureLocked(ownerID string) bool {
	if !r.known.Add(ownerID) {
		return false
	}
	r.order = append(r.order, ownerID)
	return true
}

// Order returns a copy of the current paint order, bottom-most first.
func (r *LayerRegistry) Order() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether the owner is registered.
func (r *LayerRegistry) Has(ownerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.known.Contains(ownerID)
}

// SetOrder replaces the shared paint order with an externally proposed one
// and returns the order actually applied. Owners in the proposal that we
// have never seen are registered (the proposal may know about a joiner
// before we do); known owners missing from the proposal are appended rather
// than dropped (the proposal may predate a joiner we already know). Repeats
// in the proposal are ignored past the first occurrence.
func (r *LayerRegistry) SetOrder(newOrder []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := make([]string, 0, r.known.Cardinality())
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, id := range newOrder {
		if !seen.Add(id) {
			continue
		}
		r.known.Add(id)
		applied = append(applied, id)
	}
	// Anyone the proposal missed keeps painting, on top.
	for _, id := range r.order {
		if seen.Add(id) {
			applied = append(applied, id)
		}
	}
	r.order = applied
	return append([]string(nil), applied...)
}

// Reorder moves an owner to the given index in the paint order and returns
// the resulting full order for broadcast as a proposal. Unknown owners are
// registered first; out-of-range indexes clamp.
func (r *LayerRegistry) Reorder(ownerID string, toIndex int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureLocked(ownerID)
	next := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if id != ownerID {
			next = append(next, id)
		}
	}
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(next) {
		toIndex = len(next)
	}
	next = append(next[:toIndex], append([]string{ownerID}, next[toIndex:]...)...)
	r.order = next
	return append([]string(nil), next...)
}

// ResetOwners rebuilds membership from an authoritative owner list, as
// after a snapshot. Survivors keep their relative order, new owners are
// appended, owners absent from the list are dropped along with their local
// visibility state.
func (r *LayerRegistry) ResetOwners(owners []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := mapset.NewThreadUnsafeSet(owners...)
	next := make([]string, 0, len(owners))
	for _, id := range r.order {
		if keep.Contains(id) {
			next = append(next, id)
		} else {
			delete(r.hidden, id)
		}
	}
	have := mapset.NewThreadUnsafeSet(next...)
	for _, id := range owners {
		if !have.Contains(id) {
			next = append(next, id)
			have.Add(id)
		}
	}
	r.order = next
	r.known = have
}

// ToggleVisibility flips the local-only hidden flag for an owner and
// returns the new visibility. Hiding a layer never touches the log; it only
// changes what this client paints.
func (r *LayerRegistry) ToggleVisibility(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hidden[ownerID] = !r.hidden[ownerID]
	return !r.hidden[ownerID]
}

// Visible reports whether the owner's layer is currently painted locally.
// Unknown owners are visible by default.
func (r *LayerRegistry) Visible(ownerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.hidden[ownerID]
}
