package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/app"
	"github.com/okdoc/teleconsult/internal/config"
	"github.com/okdoc/teleconsult/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type WSController struct {
	Orch *app.Orchestrator
	Cfg  *config.Config
}

func NewWSController(orch *app.Orchestrator, cfg *config.Config) *WSController {
	return &WSController{Orch: orch, Cfg: cfg}
}

// WsConn wraps a websocket with a buffered outbound channel. TrySend never
// blocks: a full buffer drops the frame, which keeps backpressure bounded at
// the cost of at-most-once delivery.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
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

func (c *WsConn) Close() {
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
}

// HandleWS upgrades the HTTP request and starts the pumps. The participant
// itself is created later, by the first patient-join or doctor-join event.
func (ctl *WSController) HandleWS(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ctl.writePump(ctx, conn)
		// Closing the socket unblocks a readPump stuck in ReadMessage.
		conn.Close()
		cancel()
	}()
	go func() {
		ctl.readPump(ctx, sid, conn)
		cancel()
	}()
}
