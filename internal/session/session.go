// Package session owns the per-room engine state: one transport, one stroke
// log, one layer registry and one undo/redo history, constructed together on
// room join and torn down together on exit. Local mutations apply
// synchronously first, then broadcast fire-and-forget; remote mutations come
// in through the transport's subscriber slots and converge by idempotence.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"boardsync/internal/state"
	"boardsync/internal/wire"
)

// SnapshotInterval is the authority's default export cadence.
const SnapshotInterval = 30 * time.Second

// Transport is what the session needs from the network layer. *net.Transport
// satisfies it; tests substitute a loopback.
type Transport interface {
	Connect(ctx context.Context, userID, roomID string) error
	Publish(env wire.Envelope) error
	Close()

	OnStroke(fn func(state.Stroke)) func()
	OnErase(fn func(string)) func()
	OnRestore(fn func(string)) func()
	OnSnapshot(fn func([]byte)) func()
	OnLayerOrder(fn func([]string)) func()
	OnRoomDeleted(fn func(string)) func()
}

// Config describes one room membership.
type Config struct {
	UserID   string // session identity; empty means the local placeholder
	UserName string
	RoomID   string

	// Authority marks the one client (room creator) that runs the
	// periodic snapshot export.
	Authority bool

	// SnapshotInterval overrides the default export cadence.
	SnapshotInterval time.Duration

	// OnRefresh is called whenever remote input changed what should be
	// painted. The rendering surface is an external collaborator; this is
	// its only hook.
	OnRefresh func()

	// OnRoomDeleted is called after an authoritative room deletion has
	// torn the session down.
	OnRoomDeleted func()
}

// Session is the injected context shared by everything in one room.
type Session struct {
	cfg Config

	transport Transport
	strokes   *state.StrokeLog
	layers    *state.LayerRegistry
	history   *state.History

	unsubs []func()

	snapMu   sync.Mutex
	snapDone chan struct{}
}

// New builds a detached session. Attach and Connect wire it to a room.
func New(cfg Config) *Session {
	if cfg.UserID == "" {
		cfg.UserID = state.LocalOwner
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = SnapshotInterval
	}
	s := &Session{
		cfg:     cfg,
		strokes: state.NewStrokeLog(),
		layers:  state.NewLayerRegistry(),
		history: state.NewHistory(),
	}
	s.layers.EnsureLayer(cfg.UserID)
	return s
}

// NewUserID generates a session identity when no identity provider supplies
// one.
func NewUserID() string {
	return uuid.NewString()
}

// Log exposes the stroke log, e.g. for painting or export.
func (s *Session) Log() *state.StrokeLog { return s.strokes }

// Layers exposes the layer registry.
func (s *Session) Layers() *state.LayerRegistry { return s.layers }

// UserID returns the session identity strokes are committed under.
func (s *Session) UserID() string { return s.cfg.UserID }

// Attach subscribes the session to a transport's event slots and makes it
// the publish target.
func (s *Session) Attach(t Transport) {
	s.transport = t
	s.unsubs = append(s.unsubs,
		t.OnStroke(func(st state.Stroke) { s.ApplyRemoteStroke(st) }),
		t.OnErase(func(id string) { s.ApplyRemoteErase(id) }),
		t.OnRestore(func(id string) { s.ApplyRemoteRestore(id) }),
		t.OnSnapshot(func(data []byte) { s.ApplySnapshot(data) }),
		t.OnLayerOrder(func(order []string) { s.ApplyLayerOrder(order) }),
		t.OnRoomDeleted(func(string) { s.handleRoomDeleted() }),
	)
}

// Connect joins the room. The attached transport must be set. When this
// client is the authority the snapshot ticker starts on success.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.transport.Connect(ctx, s.cfg.UserID, s.cfg.RoomID); err != nil {
		return err
	}
	if s.cfg.Authority {
		s.startSnapshotter()
	}
	return nil
}

// Close tears the session down: snapshot ticker stopped, subscriptions
// dropped, transport closed. Safe on every exit path.
func (s *Session) Close() {
	s.stopSnapshotter()
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
	if s.transport != nil {
		s.transport.Close()
	}
}

// --- local actions: apply locally, then publish ---

// CommitStroke appends a confirmed stroke, records it on the undo history
// and broadcasts it. Missing id/owner/creation time are filled in. The
// committed stroke is returned.
func (s *Session) CommitStroke(st state.Stroke) state.Stroke {
	if st.ID == "" {
		st.ID = state.NewStrokeID()
	}
	st.OwnerID = s.cfg.UserID
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	if s.strokes.Append(st) != state.AppliedNew {
		log.Printf("[session] commit of duplicate stroke %s ignored", st.ID)
		return st
	}
	s.layers.EnsureLayer(st.OwnerID)
	s.history.RecordDraw([]string{st.ID})
	s.publish(wire.Envelope{Type: wire.TypeStroke, Stroke: &st})
	return st
}

// CommitStrokes appends a batch of strokes confirmed together (e.g. the
// segments of one compound shape) as a single undoable action.
func (s *Session) CommitStrokes(sts []state.Stroke) []state.Stroke {
	committed := make([]state.Stroke, 0, len(sts))
	var ids []string
	for _, st := range sts {
		if st.ID == "" {
			st.ID = state.NewStrokeID()
		}
		st.OwnerID = s.cfg.UserID
		if st.CreatedAt.IsZero() {
			st.CreatedAt = time.Now()
		}
		if s.strokes.Append(st) != state.AppliedNew {
			continue
		}
		s.layers.EnsureLayer(st.OwnerID)
		s.publish(wire.Envelope{Type: wire.TypeStroke, Stroke: &st})
		ids = append(ids, st.ID)
		committed = append(committed, st)
	}
	if len(ids) > 0 {
		s.history.RecordDraw(ids)
	}
	return committed
}

// EraseStrokes soft-deletes the given strokes as one undoable action and
// broadcasts an erase per id. Ids that were unknown or already erased are
// skipped.
func (s *Session) EraseStrokes(ids ...string) {
	var erased []string
	for _, id := range ids {
		if s.strokes.MarkErased(id) == state.AppliedNew {
			erased = append(erased, id)
			s.publish(wire.Envelope{Type: wire.TypeErase, ID: id})
		}
	}
	if len(erased) > 0 {
		s.history.RecordErase(erased)
	}
}

// Undo unwinds this client's most recent action: a draw is erased, an erase
// is restored, and the inverse is broadcast per stroke id. No-op on an
// empty stack.
func (s *Session) Undo() bool {
	a, ok := s.history.Undo()
	if !ok {
		return false
	}
	switch a.Type {
	case state.ActionDraw:
		for _, id := range a.StrokeIDs {
			s.strokes.MarkErased(id)
			s.publish(wire.Envelope{Type: wire.TypeErase, ID: id})
		}
	case state.ActionErase:
		for _, id := range a.StrokeIDs {
			s.strokes.MarkRestored(id)
			s.publish(wire.Envelope{Type: wire.TypeRestore, ID: id})
		}
	}
	s.refresh()
	return true
}

// Redo re-applies the most recently undone action, mirroring Undo with
// draw and erase swapped.
func (s *Session) Redo() bool {
	a, ok := s.history.Redo()
	if !ok {
		return false
	}
	switch a.Type {
	case state.ActionDraw:
		for _, id := range a.StrokeIDs {
			s.strokes.MarkRestored(id)
			s.publish(wire.Envelope{Type: wire.TypeRestore, ID: id})
		}
	case state.ActionErase:
		for _, id := range a.StrokeIDs {
			s.strokes.MarkErased(id)
			s.publish(wire.Envelope{Type: wire.TypeErase, ID: id})
		}
	}
	s.refresh()
	return true
}

// ProposeOrder applies a full z-order locally and broadcasts it to the room
// as a proposal. Peers apply it the same way, so last broadcast wins.
func (s *Session) ProposeOrder(order []string) []string {
	applied := s.layers.SetOrder(order)
	s.publish(wire.Envelope{Type: wire.TypeLayerOrder, Order: applied})
	return applied
}

// MoveLayer moves one owner in the z-order and broadcasts the result.
func (s *Session) MoveLayer(ownerID string, toIndex int) []string {
	applied := s.layers.Reorder(ownerID, toIndex)
	s.publish(wire.Envelope{Type: wire.TypeLayerOrder, Order: applied})
	return applied
}

// PublishLocation broadcasts a presence ping for "jump to peer"
// affordances. Pure pass-through; the core never interprets it.
func (s *Session) PublishLocation(x, y float64) {
	s.publish(wire.Envelope{
		Type:     wire.TypeLocation,
		UserID:   s.cfg.UserID,
		UserName: s.cfg.UserName,
		X:        x,
		Y:        y,
	})
}

// --- remote events: idempotent application ---

// ApplyRemoteStroke inserts a peer's stroke unless already present.
func (s *Session) ApplyRemoteStroke(st state.Stroke) state.Applied {
	res := s.strokes.Append(st)
	if res == state.AppliedNew {
		s.layers.EnsureLayer(st.OwnerID)
		s.refresh()
	}
	return res
}

// ApplyRemoteErase flips a stroke to erased. Unknown ids are dropped; if
// the stroke arrives later it is inserted unerased (accepted race).
func (s *Session) ApplyRemoteErase(id string) state.Applied {
	res := s.strokes.MarkErased(id)
	if res == state.AppliedNew {
		s.refresh()
	}
	return res
}

// ApplyRemoteRestore flips a stroke back to visible.
func (s *Session) ApplyRemoteRestore(id string) state.Applied {
	res := s.strokes.MarkRestored(id)
	if res == state.AppliedNew {
		s.refresh()
	}
	return res
}

// ApplyLayerOrder applies a peer's z-order proposal.
func (s *Session) ApplyLayerOrder(order []string) []string {
	applied := s.layers.SetOrder(order)
	s.refresh()
	return applied
}

// ApplySnapshot replaces the whole log with the authority's view and
// recomputes layer membership as the snapshot's owners plus our own. A
// malformed payload is logged and discarded; prior state stays intact.
func (s *Session) ApplySnapshot(data []byte) error {
	if err := s.strokes.ReplaceAll(data); err != nil {
		log.Printf("[session] malformed snapshot discarded: %v", err)
		return err
	}
	owners := s.strokes.Owners()
	found := false
	for _, o := range owners {
		if o == s.cfg.UserID {
			found = true
			break
		}
	}
	if !found {
		owners = append(owners, s.cfg.UserID)
	}
	s.layers.ResetOwners(owners)
	s.refresh()
	return nil
}

func (s *Session) handleRoomDeleted() {
	s.stopSnapshotter()
	log.Printf("[session] room %s deleted, session over", s.cfg.RoomID)
	if s.cfg.OnRoomDeleted != nil {
		s.cfg.OnRoomDeleted()
	}
}

// --- snapshot export (authority only) ---

func (s *Session) startSnapshotter() {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snapDone != nil {
		return
	}
	done := make(chan struct{})
	s.snapDone = done
	go func() {
		ticker := time.NewTicker(s.cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.ExportSnapshot()
			}
		}
	}()
}

func (s *Session) stopSnapshotter() {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snapDone != nil {
		close(s.snapDone)
		s.snapDone = nil
	}
}

// ExportSnapshot serializes the full log and pushes it to the room. The
// ticker calls this on the authority; it is also useful before a deliberate
// exit.
func (s *Session) ExportSnapshot() {
	data, err := s.strokes.SerializeAll()
	if err != nil {
		log.Printf("[session] snapshot export: %v", err)
		return
	}
	s.publish(wire.Envelope{Type: wire.TypeSnapshot, RoomID: s.cfg.RoomID, Data: data})
}

func (s *Session) publish(env wire.Envelope) {
	if s.transport == nil {
		return
	}
	if err := s.transport.Publish(env); err != nil {
		// Fire and forget; reconnect masks steady-state failures.
		log.Printf("[session] publish %s: %v", env.Type, err)
	}
}

func (s *Session) refresh() {
	if s.cfg.OnRefresh != nil {
		s.cfg.OnRefresh()
	}
}
