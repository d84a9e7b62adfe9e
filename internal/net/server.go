package net

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server is the session coordinator: a room-membership HTTP API plus the
// websocket endpoint every room hub hangs off.
type Server struct {
	mu    sync.Mutex
	rooms map[string]*Hub

	archive  SnapshotArchive
	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer creates a coordinator backed by the given snapshot archive.
func NewServer(archive SnapshotArchive) *Server {
	s := &Server{
		rooms:   make(map[string]*Hub),
		archive: archive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	r := mux.NewRouter()
	r.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", s.handleDeleteRoom).Methods(http.MethodDelete)
	r.HandleFunc("/ws", s.handleWS)
	s.router = r
	return s
}

// Handler returns the HTTP handler to serve.
func (s *Server) Handler() http.Handler {
	return s.router
}

type roomInfo struct {
	ID      string `json:"id"`
	Clients int    `json:"clients"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	s.mu.Lock()
	s.rooms[id] = NewHub(id, s.archive)
	s.mu.Unlock()
	log.Printf("[server] room %s created", id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(roomInfo{ID: id})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	infos := make([]roomInfo, 0, len(s.rooms))
	for id, h := range s.rooms {
		infos = append(infos, roomInfo{ID: id, Clients: h.ClientCount()})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleDeleteRoom is the authoritative deletion path: every member gets a
// room_deleted push, the hub stops, and the archived snapshot is dropped.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	h, ok := s.rooms[id]
	if ok {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	h.Shutdown()
	if err := s.archive.DeleteRoom(id); err != nil {
		log.Printf("[server] drop snapshot for %s: %v", id, err)
	}
	log.Printf("[server] room %s deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	h, ok := s.rooms[roomID]
	if !ok {
		// Joining an unlisted room creates it; the first joiner is the
		// room's authority.
		h = NewHub(roomID, s.archive)
		s.rooms[roomID] = h
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] upgrade: %v", err)
		return
	}
	c := newRemote(h, conn)
	c.userID = r.URL.Query().Get("user")
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Shutdown stops every hub, pushing room_deleted to all members.
func (s *Server) Shutdown() {
	s.mu.Lock()
	hubs := make([]*Hub, 0, len(s.rooms))
	for _, h := range s.rooms {
		hubs = append(hubs, h)
	}
	s.rooms = make(map[string]*Hub)
	s.mu.Unlock()
	for _, h := range hubs {
		h.Shutdown()
	}
}
