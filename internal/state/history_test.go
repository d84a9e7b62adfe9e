package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndoRedoStackDiscipline(t *testing.T) {
	h := NewHistory()
	h.RecordDraw([]string{"a", "b"})

	a, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, ActionDraw, a.Type)
	assert.Equal(t, []string{"a", "b"}, a.StrokeIDs)
	u, r := h.Depths()
	assert.Equal(t, 0, u)
	assert.Equal(t, 1, r)

	// Immediate redo restores the pre-undo stack shapes.
	a, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, ActionDraw, a.Type)
	u, r = h.Depths()
	assert.Equal(t, 1, u)
	assert.Equal(t, 0, r)
}

func TestUndoEmptyStackIsNoop(t *testing.T) {
	h := NewHistory()
	_, ok := h.Undo()
	assert.False(t, ok)
	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestNewDrawInvalidatesRedo(t *testing.T) {
	h := NewHistory()
	h.RecordDraw([]string{"a"})
	h.Undo()
	_, r := h.Depths()
	require.Equal(t, 1, r)

	// Linear history, not a tree: a fresh action clears the redo branch.
	h.RecordDraw([]string{"b"})
	_, ok := h.Redo()
	assert.False(t, ok)
}

func TestRecordEraseBehavesLikeDraw(t *testing.T) {
	h := NewHistory()
	h.RecordErase([]string{"a"})
	a, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, ActionErase, a.Type)
}

func TestRecordEmptyActionIgnored(t *testing.T) {
	h := NewHistory()
	h.RecordDraw(nil)
	u, _ := h.Depths()
	assert.Equal(t, 0, u)
}

func TestRecordCopiesIDs(t *testing.T) {
	h := NewHistory()
	ids := []string{"a"}
	h.RecordDraw(ids)
	ids[0] = "mutated"
	a, _ := h.Undo()
	assert.Equal(t, []string{"a"}, a.StrokeIDs)
}
