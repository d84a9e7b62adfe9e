package state

import (
	"encoding/json"
	"log"
	"sync"

	"boardsync/internal/geom"
)

// Applied reports what a log mutation actually did, so callers can skip
// redundant side effects (re-painting a duplicate stroke, re-broadcasting a
// no-op flag flip) and tests can feed event orderings deterministically.
type Applied int

const (
	// AppliedNew means the event changed the log: a stroke was inserted or
	// an erased flag actually flipped.
	AppliedNew Applied = iota
	// AppliedDuplicate means the stroke id was already present, or the flag
	// was already in the requested state. Idempotent no-op.
	AppliedDuplicate
	// AppliedUnknown means an erase/restore referenced a stroke id the log
	// has never seen. The event is dropped; if the stroke arrives later it
	// is inserted unerased. Accepted race, not an error.
	AppliedUnknown
)

// StrokeLog is the authoritative ordered collection of every stroke in the
// session. Order is arrival order, not a global timestamp order. Strokes are
// never removed, only soft-deleted, so erase/restore pairs converge no
// matter how they interleave across peers.
type StrokeLog struct {
	order   []string
	strokes map[string]*Stroke
	mu      sync.RWMutex
}

// NewStrokeLog creates an empty log.
func NewStrokeLog() *StrokeLog {
	return &StrokeLog{
		strokes: make(map[string]*Stroke),
	}
}

// Append inserts the stroke unless its id is already present.
func (l *StrokeLog) Append(s Stroke) Applied {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.strokes[s.ID]; exists {
		log.Printf("[log] stroke %s already exists, ignoring", s.ID)
		return AppliedDuplicate
	}
	c := s
	if c.Points != nil {
		c.Points = append([]geom.Point(nil), c.Points...)
	}
	l.strokes[s.ID] = &c
	l.order = append(l.order, s.ID)
	return AppliedNew
}

// MarkErased soft-deletes the stroke with the given id.
func (l *StrokeLog) MarkErased(id string) Applied {
	return l.setErased(id, true)
}

// MarkRestored clears the soft-delete flag on the stroke with the given id.
func (l *StrokeLog) MarkRestored(id string) Applied {
	return l.setErased(id, false)
}

func (l *StrokeLog) setErased(id string, erased bool) Applied {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.strokes[id]
	if !ok {
		log.Printf("[log] flag flip for unknown stroke %s, dropping", id)
		return AppliedUnknown
	}
	if s.IsErased == erased {
		return AppliedDuplicate
	}
	s.IsErased = erased
	return AppliedNew
}

// Get returns a copy of the stroke with the given id.
func (l *StrokeLog) Get(id string) (Stroke, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.strokes[id]
	if !ok {
		return Stroke{}, false
	}
	return *s, true
}

// Len returns the number of strokes in the log, erased included.
func (l *StrokeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Strokes returns copies of all strokes in append order.
func (l *StrokeLog) Strokes() []Stroke {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Stroke, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.strokes[id])
	}
	return out
}

// StrokesByOwner returns copies of one contributor's strokes in append
// order, for per-layer painting.
func (l *StrokeLog) StrokesByOwner(ownerID string) []Stroke {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Stroke
	for _, id := range l.order {
		if s := l.strokes[id]; s.OwnerID == ownerID {
			out = append(out, *s)
		}
	}
	return out
}

// Owners returns the distinct owner ids present in the log, in order of
// first contribution.
func (l *StrokeLog) Owners() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, id := range l.order {
		o := l.strokes[id].OwnerID
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}

// snapshotDoc is the serialized snapshot layout.
type snapshotDoc struct {
	Strokes []Stroke `json:"strokes"`
}

// SerializeAll dumps the full log, in append order, as a snapshot payload.
func (l *StrokeLog) SerializeAll() ([]byte, error) {
	l.mu.RLock()
	doc := snapshotDoc{Strokes: make([]Stroke, 0, len(l.order))}
	for _, id := range l.order {
		doc.Strokes = append(doc.Strokes, *l.strokes[id])
	}
	l.mu.RUnlock()
	return json.Marshal(doc)
}

// ReplaceAll discards the current contents and loads the snapshot payload
// wholesale. Local-only strokes absent from the payload are lost; snapshots
// are the authority's view and the receiver defers to it entirely. On a
// malformed payload the prior state is kept untouched and the error is
// returned for the caller to log.
func (l *StrokeLog) ReplaceAll(data []byte) error {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = l.order[:0]
	l.strokes = make(map[string]*Stroke, len(doc.Strokes))
	for i := range doc.Strokes {
		s := doc.Strokes[i]
		if _, exists := l.strokes[s.ID]; exists {
			continue
		}
		l.strokes[s.ID] = &s
		l.order = append(l.order, s.ID)
	}
	return nil
}
