package state

import "sync"

// ActionType distinguishes what a history entry undoes.
type ActionType string

const (
	ActionDraw  ActionType = "draw"
	ActionErase ActionType = "erase"
)

// HistoryAction records one action this client itself performed. Remote
// actions never enter a local history; every client's stacks are disjoint.
type HistoryAction struct {
	Type      ActionType
	StrokeIDs []string
}

// History is the per-client undo/redo state machine: a back stack and a
// forward stack of HistoryAction, strict LIFO. It only manages the stacks;
// applying the inverse mutations to the log and broadcasting them is the
// session's job.
type History struct {
	undo []HistoryAction
	redo []HistoryAction
	mu   sync.Mutex
}

// NewHistory creates empty stacks.
func NewHistory() *History {
	return &History{}
}

// RecordDraw pushes a draw action for the given stroke ids and clears the
// redo stack: a new action invalidates the redo branch.
func (h *History) RecordDraw(strokeIDs []string) {
	h.record(ActionDraw, strokeIDs)
}

// RecordErase pushes an erase action for the given stroke ids and clears
// the redo stack.
func (h *History) RecordErase(strokeIDs []string) {
	h.record(ActionErase, strokeIDs)
}

func (h *History) record(t ActionType, strokeIDs []string) {
	if len(strokeIDs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, HistoryAction{Type: t, StrokeIDs: append([]string(nil), strokeIDs...)})
	h.redo = h.redo[:0]
}

// Undo pops the most recent action onto the redo stack and returns it. The
// second return is false on an empty stack (a no-op, not an error).
func (h *History) Undo() (HistoryAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undo) == 0 {
		return HistoryAction{}, false
	}
	a := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, a)
	return a, true
}

// Redo pops the most recent undone action back onto the undo stack and
// returns it. False on an empty redo stack.
func (h *History) Redo() (HistoryAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redo) == 0 {
		return HistoryAction{}, false
	}
	a := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, a)
	return a, true
}

// Depths returns the undo and redo stack sizes.
func (h *History) Depths() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}
