package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureLayerAppends(t *testing.T) {
	r := NewLayerRegistry()
	assert.True(t, r.EnsureLayer("alice"))
	assert.True(t, r.EnsureLayer("bob"))
	assert.False(t, r.EnsureLayer("alice"), "re-registration is a no-op")

	// New contributors paint on top.
	assert.Equal(t, []string{"alice", "bob"}, r.Order())
}

func TestSetOrderAppendsMissingOwners(t *testing.T) {
	r := NewLayerRegistry()
	r.EnsureLayer("alice")
	r.EnsureLayer("bob")
	r.EnsureLayer("carol")

	// A proposal that predates carol's join must not drop her.
	applied := r.SetOrder([]string{"bob", "alice"})
	assert.Equal(t, []string{"bob", "alice", "carol"}, applied)
	assert.Equal(t, applied, r.Order())
}

func TestSetOrderRegistersUnknownOwners(t *testing.T) {
	r := NewLayerRegistry()
	r.EnsureLayer("alice")

	// The proposal knows about a joiner before we do.
	applied := r.SetOrder([]string{"dave", "alice"})
	assert.Equal(t, []string{"dave", "alice"}, applied)
	assert.True(t, r.Has("dave"))
}

func TestSetOrderIgnoresRepeats(t *testing.T) {
	r := NewLayerRegistry()
	r.EnsureLayer("alice")
	r.EnsureLayer("bob")

	applied := r.SetOrder([]string{"bob", "bob", "alice", "bob"})
	assert.Equal(t, []string{"bob", "alice"}, applied)
}

func TestReorder(t *testing.T) {
	r := NewLayerRegistry()
	r.EnsureLayer("a")
	r.EnsureLayer("b")
	r.EnsureLayer("c")

	assert.Equal(t, []string{"b", "a", "c"}, r.Reorder("b", 0))
	assert.Equal(t, []string{"a", "c", "b"}, r.Reorder("b", 99), "index clamps")
	assert.Equal(t, []string{"b", "a", "c"}, r.Reorder("b", -1), "index clamps")
}

func TestResetOwners(t *testing.T) {
	r := NewLayerRegistry()
	r.EnsureLayer("a")
	r.EnsureLayer("b")
	r.EnsureLayer("c")
	r.ToggleVisibility("b")
	r.Reorder("c", 0) // order: c a b

	r.ResetOwners([]string{"a", "c", "d"})

	// Survivors keep their relative order, new owners append, b is gone.
	assert.Equal(t, []string{"c", "a", "d"}, r.Order())
	assert.False(t, r.Has("b"))
	// b's local visibility state went with it; re-adding starts visible.
	r.EnsureLayer("b")
	assert.True(t, r.Visible("b"))
}

func TestToggleVisibilityIsLocalOnly(t *testing.T) {
	r := NewLayerRegistry()
	r.EnsureLayer("alice")

	assert.True(t, r.Visible("alice"))
	assert.False(t, r.ToggleVisibility("alice"))
	assert.False(t, r.Visible("alice"))
	assert.True(t, r.ToggleVisibility("alice"))

	// Hiding never touches the order.
	assert.Equal(t, []string{"alice"}, r.Order())
}
