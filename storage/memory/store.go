package memory

import (
	"sync"

	"github.com/adwski/chat-relay/model"
)

// Store is the room membership index. It maps each connection to at
// most one room and each room to its member wires. All mutation goes
// through a single mutex so concurrent joins, leaves and broadcast
// snapshots never interleave unsafely.
type Store struct {
	mx     *sync.Mutex
	rooms  map[string]map[string]model.Wire
	byConn map[string]string
}

func NewStore() *Store {
	return &Store{
		mx:     &sync.Mutex{},
		rooms:  make(map[string]map[string]model.Wire),
		byConn: make(map[string]string),
	}
}

// Join moves a connection into roomID, removing it from its previous
// room first. The previous room is dropped from the index once empty.
// Returns true if the target room was created by this call.
func (s *Store) Join(connID string, wire model.Wire, roomID string) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.removeLocked(connID)

	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]model.Wire)
		s.rooms[roomID] = members
	}
	members[connID] = wire
	s.byConn[connID] = roomID
	return !ok
}

// Leave removes a connection from its current room, if any. Safe to
// call for connections that never joined, and safe to call twice.
func (s *Store) Leave(connID string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.removeLocked(connID)
}

func (s *Store) removeLocked(connID string) {
	roomID, ok := s.byConn[connID]
	if !ok {
		return
	}
	delete(s.byConn, connID)

	members, ok := s.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(s.rooms, roomID)
	}
}

// MembersOf returns a snapshot of a room's member wires keyed by
// connection ID, or nil if the room does not exist. Callers may range
// over the result without holding any lock.
func (s *Store) MembersOf(roomID string) map[string]model.Wire {
	s.mx.Lock()
	defer s.mx.Unlock()

	members, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	snapshot := make(map[string]model.Wire, len(members))
	for id, wire := range members {
		snapshot[id] = wire
	}
	return snapshot
}

// Rooms returns a snapshot of room names and member counts.
func (s *Store) Rooms() map[string]int {
	s.mx.Lock()
	defer s.mx.Unlock()

	snapshot := make(map[string]int, len(s.rooms))
	for roomID, members := range s.rooms {
		snapshot[roomID] = len(members)
	}
	return snapshot
}
