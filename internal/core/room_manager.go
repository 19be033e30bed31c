package core

import (
	"sync"

	"github.com/telecare/consult/internal/domain"
)

type roomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.SessionID]RoomService
}

func NewRoomManager() RoomManager {
	return &roomManagerImpl{rooms: make(map[domain.SessionID]RoomService)}
}

func (m *roomManagerImpl) GetOrCreate(key domain.SessionID) RoomService {
	m.mu.RLock()
	room, ok := m.rooms[key]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[key]; ok {
		return room
	}
	room = NewRoomService(key)
	m.rooms[key] = room
	return room
}

func (m *roomManagerImpl) Get(key domain.SessionID) (RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[key]
	return room, ok
}

func (m *roomManagerImpl) RemoveConn(id ConnID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		room.Remove(id)
	}
}
