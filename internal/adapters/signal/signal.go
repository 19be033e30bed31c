// Package signal is the WebSocket event layer: it upgrades the
// connection, dispatches inbound consultation events and fans the
// outbound ones back to the room.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/telecare/consult/internal/analysis/speech"
	"github.com/telecare/consult/internal/analysis/vision"
	"github.com/telecare/consult/internal/app"
	"github.com/telecare/consult/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// Controller routes inbound events to registry mutations, analyzer
// jobs and room broadcasts. All dependencies are injected so tests can
// run it against fakes.
type Controller struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Jobs       app.JobRunner
	Vision     *vision.Analyzer
	Speech     *speech.Transcriber
	Limiter    *MediaRateLimiter
	ICEServers []webrtc.ICEServer

	ReadLimit  int64
	PingPeriod time.Duration
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
	// Frames arrive as base64 data URLs, so buffers stay generous.
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleSignal upgrades the request, assigns the connection id and
// starts the pumps. The id plays the part of the transport sid the
// clients tag relayed payloads with.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	sid := core.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
		SID  string `json:"sid"`
	}{Type: "connected", SID: string(sid)})

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
