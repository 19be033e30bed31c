package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/domain"
)

// Registry owns every consultation session for the lifetime of the
// process. Sessions are created lazily on first join and never evicted;
// "end session" only notifies the room.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SessionID]*domain.Session)}
}

// GetOrCreate inserts an empty session on first sight of the id.
// It reports whether the entry was created by this call.
func (r *Registry) GetOrCreate(id domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return false
	}
	r.sessions[id] = &domain.Session{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		Transcripts: []domain.TranscriptEntry{},
		CVAnalysis:  []domain.Annotation{},
	}
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("created session")
	return true
}

// Attach records the connection currently occupying the role's slot,
// overwriting any previous value. The replaced connection is not
// disconnected; its transport simply stops being addressed.
func (r *Registry) Attach(id domain.SessionID, role domain.Role, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	if role == domain.RoleDoctor {
		s.DoctorSID = connID
	} else {
		s.PatientSID = connID
	}
	log.Info().Str("module", "app.registry").Str("session", string(id)).Str("role", string(role)).Str("sid", connID).Msg("attached connection")
}

// AppendTranscript is a no-op for unknown session ids; events for
// sessions nobody joined are dropped, not errored.
func (r *Registry) AppendTranscript(id domain.SessionID, e domain.TranscriptEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Transcripts = append(s.Transcripts, e)
	}
}

// AppendAnnotation is a no-op for unknown session ids.
func (r *Registry) AppendAnnotation(id domain.SessionID, a domain.Annotation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.CVAnalysis = append(s.CVAnalysis, a)
	}
}

// Get returns a deep snapshot so callers can serialize it without
// holding the lock and cannot mutate registry state through it.
func (r *Registry) Get(id domain.SessionID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	snap := *s
	snap.Transcripts = make([]domain.TranscriptEntry, len(s.Transcripts))
	copy(snap.Transcripts, s.Transcripts)
	snap.CVAnalysis = make([]domain.Annotation, len(s.CVAnalysis))
	copy(snap.CVAnalysis, s.CVAnalysis)
	return snap, true
}

// SessionsWithConn lists every session whose doctor or patient slot
// holds the given connection id. Used by the disconnect scan.
func (r *Registry) SessionsWithConn(connID string) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.SessionID
	for id, s := range r.sessions {
		if s.DoctorSID == connID || s.PatientSID == connID {
			out = append(out, id)
		}
	}
	return out
}
