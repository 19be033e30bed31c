package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/domain"
)

// roomImpl is a threadsafe in-memory broadcast group.
// It never closes adapter-owned resources.
type roomImpl struct {
	key     domain.SessionID
	mu      sync.RWMutex
	members map[ConnID]SignalConnection
}

func NewRoomService(key domain.SessionID) RoomService {
	return &roomImpl{
		key:     key,
		members: make(map[ConnID]SignalConnection),
	}
}

func (r *roomImpl) Key() domain.SessionID { return r.key }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Add(id ConnID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[id] = conn
	log.Info().Str("module", "core.room").Str("session", string(r.key)).Str("sid", string(id)).Msg("member added")
}

func (r *roomImpl) Remove(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	log.Info().Str("module", "core.room").Str("session", string(r.key)).Str("sid", string(id)).Msg("member removed")
}

func (r *roomImpl) Broadcast(skip ConnID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, conn := range r.members {
		if id == skip {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("session", string(r.key)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
