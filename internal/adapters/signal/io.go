package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *WSController) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, sid core.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(sid, c, data)
		}
	}
}

// handleEvent is the dispatch table of the event surface. A failing handler
// logs and returns; it never tears the connection down.
func (ctl *WSController) handleEvent(sid core.SessionID, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "patient-join":
		ctl.handlePatientJoin(sid, c, data)
	case "doctor-join":
		ctl.handleDoctorJoin(sid, c, data)
	case "get-waiting-patients":
		ctl.Orch.SendWaitingList(c)
	case "accept-patient":
		ctl.handleAcceptPatient(sid, data)
	case "send-message":
		ctl.handleSendMessage(sid, data)
	case "webrtc-offer", "webrtc-answer", "webrtc-ice-candidate":
		ctl.handleSignalRelay(sid, env.Type, data)
	case "start-video-call":
		ctl.handleVideoToggle(sid, data, true)
	case "end-video-call":
		ctl.handleVideoToggle(sid, data, false)
	case "end-consultation":
		ctl.handleEndConsultation(sid, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *WSController) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *WSController) sendError(c *WsConn, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":    "error",
		"message": msg,
	})
}
