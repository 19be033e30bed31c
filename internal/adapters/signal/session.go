package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/analysis/vision"
	"github.com/telecare/consult/internal/core"
	"github.com/telecare/consult/internal/domain"
)

// broadcastRoom marshals once and fans out to the session's room,
// skipping skip. Pass an empty skip to reach the whole group. Unknown
// sessions have no room, so the broadcast silently targets nothing.
func (ctl *Controller) broadcastRoom(id domain.SessionID, skip core.ConnID, v any) {
	room, ok := ctl.Rooms.Get(id)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	res := room.Broadcast(skip, b)
	if len(res.Dropped) > 0 {
		log.Warn().Str("module", "signal").Str("session", string(id)).Int("dropped", len(res.Dropped)).Msg("slow members dropped frame")
	}
}

func (ctl *Controller) handleJoinSession(sid core.ConnID, conn core.SignalConnection, data []byte) {
	var p struct {
		SessionID string `json:"session_id"`
		Role      string `json:"role"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad join_session payload")
		return
	}
	id := domain.SessionID(p.SessionID)
	role := domain.ParseRole(p.Role)

	ctl.Registry.GetOrCreate(id)
	ctl.Registry.Attach(id, role, string(sid))
	ctl.Rooms.GetOrCreate(id).Add(sid, conn)
	log.Info().Str("module", "signal").Str("session", p.SessionID).Str("role", string(role)).Str("sid", string(sid)).Msg("joined session")

	ctl.sendJSON(conn, struct {
		Type       string             `json:"type"`
		SessionID  string             `json:"session_id"`
		Role       string             `json:"role"`
		Message    string             `json:"message"`
		ICEServers []webrtc.ICEServer `json:"ice_servers,omitempty"`
	}{
		Type:       "joined_session",
		SessionID:  p.SessionID,
		Role:       string(role),
		Message:    fmt.Sprintf("Successfully joined session as %s", role),
		ICEServers: ctl.ICEServers,
	})

	ctl.broadcastRoom(id, sid, struct {
		Type      string `json:"type"`
		Role      string `json:"role"`
		SessionID string `json:"session_id"`
	}{
		Type:      "peer_joined",
		Role:      string(role),
		SessionID: p.SessionID,
	})
}

func (ctl *Controller) handleOffer(sid core.ConnID, data []byte) {
	var p struct {
		SessionID string          `json:"session_id"`
		Offer     json.RawMessage `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "signal").Msg("bad webrtc_offer payload")
		return
	}
	ctl.broadcastRoom(domain.SessionID(p.SessionID), sid, struct {
		Type    string          `json:"type"`
		Offer   json.RawMessage `json:"offer"`
		FromSID string          `json:"from_sid"`
	}{Type: "webrtc_offer", Offer: p.Offer, FromSID: string(sid)})
}

func (ctl *Controller) handleAnswer(sid core.ConnID, data []byte) {
	var p struct {
		SessionID string          `json:"session_id"`
		Answer    json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "signal").Msg("bad webrtc_answer payload")
		return
	}
	ctl.broadcastRoom(domain.SessionID(p.SessionID), sid, struct {
		Type    string          `json:"type"`
		Answer  json.RawMessage `json:"answer"`
		FromSID string          `json:"from_sid"`
	}{Type: "webrtc_answer", Answer: p.Answer, FromSID: string(sid)})
}

func (ctl *Controller) handleICECandidate(sid core.ConnID, data []byte) {
	var p struct {
		SessionID string          `json:"session_id"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "signal").Msg("bad webrtc_ice_candidate payload")
		return
	}
	ctl.broadcastRoom(domain.SessionID(p.SessionID), sid, struct {
		Type      string          `json:"type"`
		Candidate json.RawMessage `json:"candidate"`
		FromSID   string          `json:"from_sid"`
	}{Type: "webrtc_ice_candidate", Candidate: p.Candidate, FromSID: string(sid)})
}

func (ctl *Controller) handleVideoFrame(sid core.ConnID, data []byte) {
	var p struct {
		SessionID string `json:"session_id"`
		Frame     string `json:"frame"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Frame == "" {
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("frame rate limit, dropped")
		return
	}
	id := domain.SessionID(p.SessionID)
	frame := p.Frame
	ctl.Jobs.Submit(id, func(ctx context.Context) {
		analysis := ctl.Vision.AnalyzeFrame(ctx, frame)
		if analysis == nil {
			return
		}
		ts := time.Now().UTC().Format(time.RFC3339)
		ctl.Registry.AppendAnnotation(id, domain.Annotation{Timestamp: ts, Analysis: analysis})
		ctl.broadcastRoom(id, "", struct {
			Type      string           `json:"type"`
			SessionID string           `json:"session_id"`
			Analysis  *vision.Analysis `json:"analysis"`
			Timestamp string           `json:"timestamp"`
		}{Type: "cv_analysis", SessionID: p.SessionID, Analysis: analysis, Timestamp: ts})
	})
}

func (ctl *Controller) handleAudioChunk(sid core.ConnID, data []byte) {
	var p struct {
		SessionID string `json:"session_id"`
		Audio     string `json:"audio"`
		Speaker   string `json:"speaker"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Audio == "" {
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("audio rate limit, dropped")
		return
	}
	speaker := p.Speaker
	if speaker == "" {
		speaker = "unknown"
	}
	id := domain.SessionID(p.SessionID)
	audio := p.Audio
	ctl.Jobs.Submit(id, func(ctx context.Context) {
		text, err := ctl.Speech.Transcribe(ctx, audio)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("session", p.SessionID).Msg("transcription failed, chunk dropped")
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		entry := domain.TranscriptEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Speaker:   speaker,
			Text:      text,
		}
		ctl.Registry.AppendTranscript(id, entry)
		ctl.broadcastRoom(id, "", struct {
			Type       string                 `json:"type"`
			SessionID  string                 `json:"session_id"`
			Transcript domain.TranscriptEntry `json:"transcript"`
		}{Type: "transcription", SessionID: p.SessionID, Transcript: entry})
	})
}

func (ctl *Controller) handleGetSessionData(sid core.ConnID, conn core.SignalConnection, data []byte) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "signal").Msg("bad get_session_data payload")
		return
	}
	snap, ok := ctl.Registry.Get(domain.SessionID(p.SessionID))
	if !ok {
		ctl.sendJSON(conn, struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Data      any    `json:"data"`
			Error     string `json:"error"`
		}{Type: "session_data", SessionID: p.SessionID, Data: nil, Error: "Session not found"})
		return
	}
	ctl.sendJSON(conn, struct {
		Type      string         `json:"type"`
		SessionID string         `json:"session_id"`
		Data      domain.Session `json:"data"`
	}{Type: "session_data", SessionID: p.SessionID, Data: snap})
}

func (ctl *Controller) handleEndSession(sid core.ConnID, data []byte) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "signal").Msg("bad end_session payload")
		return
	}
	// The session stays in the registry; ending only notifies the room.
	ctl.broadcastRoom(domain.SessionID(p.SessionID), "", struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}{Type: "session_ended", SessionID: p.SessionID, Message: "Session has been ended"})
	log.Info().Str("module", "signal").Str("session", p.SessionID).Msg("session ended")
}

// onDisconnect notifies every room whose doctor or patient slot holds
// this connection, then drops the connection from the rooms. The
// registry keeps the slot value; a re-join overwrites it.
func (ctl *Controller) onDisconnect(sid core.ConnID) {
	for _, id := range ctl.Registry.SessionsWithConn(string(sid)) {
		ctl.broadcastRoom(id, sid, struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
		}{Type: "peer_disconnected", SessionID: string(id)})
	}
	ctl.Rooms.RemoveConn(sid)
}
