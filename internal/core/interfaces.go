package core

import "github.com/telecare/consult/internal/domain"

// Frame is a marshaled outbound message.
type Frame []byte

// ConnID identifies one transport connection (one browser tab).
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// RoomService is the broadcast group for one consultation session.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Key() domain.SessionID
	MemberCount() int

	Add(id ConnID, conn SignalConnection)
	Remove(id ConnID)
	// Broadcast sends to every member except skip. Pass an empty
	// ConnID to reach the whole group.
	Broadcast(skip ConnID, data Frame) PublishResult
}

// RoomManager owns the session-id -> room mapping.
type RoomManager interface {
	GetOrCreate(key domain.SessionID) RoomService
	Get(key domain.SessionID) (RoomService, bool)
	// RemoveConn drops the connection from every room it is in.
	RemoveConn(id ConnID)
}
