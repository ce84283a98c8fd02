package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
)

// SendMessage appends a chat message and broadcasts it to the whole room,
// sender included, so both sides observe the same log order.
func (o *Orchestrator) SendMessage(sid core.SessionID, cid domain.ConsultationID, text string, senderType domain.Role) (domain.Message, error) {
	sender, ok := o.Presence.Find(sid)
	if !ok {
		return domain.Message{}, fmt.Errorf("send-message: sender %s: %w", sid, domain.ErrNotFound)
	}

	// Broadcast inside the append so no two participants can observe the
	// log in different orders under concurrent senders.
	msg, err := o.Sessions.AppendMessage(cid, text, senderType, sender.ID, func(m domain.Message, room core.RoomService) {
		if f, ok := encode(newMessageEvent{Type: evNewMessage, Message: m}); ok && room != nil {
			room.Broadcast(f)
		}
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("send-message: %s: %w", cid, err)
	}
	o.persist("append message", func(ctx context.Context) error {
		return o.Store.AppendMessage(ctx, cid, msg)
	})
	return msg, nil
}

// RelaySignal forwards an opaque negotiation payload to the other room
// member, tagged with the sender. The payload is never inspected and never
// buffered: an unreachable peer just misses the frame, retry belongs to the
// negotiation protocol above this layer.
func (o *Orchestrator) RelaySignal(sid core.SessionID, cid domain.ConsultationID, eventType string, payload json.RawMessage, senderType domain.Role) error {
	sender, ok := o.Presence.Find(sid)
	if !ok {
		return fmt.Errorf("relay %s: sender %s: %w", eventType, sid, domain.ErrNotFound)
	}
	room, err := o.Sessions.Room(cid)
	if err != nil {
		return fmt.Errorf("relay %s: %s: %w", eventType, cid, err)
	}

	f, ok := encode(relayedSignalEvent{
		Type:       eventType,
		Payload:    payload,
		SenderType: senderType,
		SenderID:   sender.ID,
	})
	if !ok {
		return nil
	}
	res := room.BroadcastExcept(sid, f)
	log.Debug().Str("module", "app.relay").Str("consultation", string(cid)).Str("event", eventType).Int("sent_to", res.SentTo).Msg("signal relayed")
	return nil
}

// SetVideo flips the call flag and notifies the peer. Idempotent: repeating
// the current state emits nothing.
func (o *Orchestrator) SetVideo(sid core.SessionID, cid domain.ConsultationID, active bool, senderType domain.Role) error {
	sender, ok := o.Presence.Find(sid)
	if !ok {
		return fmt.Errorf("video toggle: sender %s: %w", sid, domain.ErrNotFound)
	}
	changed, room, err := o.Sessions.SetVideo(cid, active)
	if err != nil {
		return fmt.Errorf("video toggle: %s: %w", cid, err)
	}
	if !changed {
		return nil
	}
	o.persist("set video state", func(ctx context.Context) error {
		var startedAt *time.Time
		if active {
			now := time.Now()
			startedAt = &now
		}
		return o.Store.SetVideoState(ctx, cid, active, startedAt)
	})

	ev := evVideoCallStarted
	if !active {
		ev = evVideoCallEnded
	}
	if f, ok := encode(videoCallEvent{Type: ev, SenderType: senderType, SenderID: sender.ID}); ok && room != nil {
		room.BroadcastExcept(sid, f)
	}
	return nil
}

// EndConsultation is the idempotent transition to completed: one status flip,
// one end notice to the room, then the room is released.
func (o *Orchestrator) EndConsultation(cid domain.ConsultationID) error {
	ended, room, c, err := o.Sessions.End(cid)
	if err != nil {
		return fmt.Errorf("end-consultation: %s: %w", cid, err)
	}
	if !ended {
		return nil
	}
	o.persist("complete consultation", func(ctx context.Context) error {
		return o.Store.UpdateConsultationStatus(ctx, cid, domain.StatusCompleted, c.EndedAt)
	})

	if f, ok := encode(consultationEndedEvent{Type: evConsultationEnded, Message: endNotice}); ok && room != nil {
		room.Broadcast(f)
	}
	o.Sessions.Release(cid)
	return nil
}

// cancelConsultation is the disconnect reconciliation path; only reachable
// when CancelOnDisconnect is set.
func (o *Orchestrator) cancelConsultation(cid domain.ConsultationID) {
	ended, room, c, err := o.Sessions.Cancel(cid)
	if err != nil || !ended {
		return
	}
	o.persist("cancel consultation", func(ctx context.Context) error {
		return o.Store.UpdateConsultationStatus(ctx, cid, domain.StatusCancelled, c.EndedAt)
	})
	if f, ok := encode(consultationEndedEvent{Type: evConsultationEnded, Message: endNotice}); ok && room != nil {
		room.Broadcast(f)
	}
	o.Sessions.Release(cid)
}
