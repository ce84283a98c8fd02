package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/domain"
)

// roomImpl is a threadsafe in-memory room scoped to one consultation.
// It never closes adapter-owned resources.
type roomImpl struct {
	consultationID domain.ConsultationID
	mu             sync.RWMutex
	bySID          map[SessionID]ParticipantSession
}

func NewRoomService(id domain.ConsultationID) RoomService {
	return &roomImpl{
		consultationID: id,
		bySID:          make(map[SessionID]ParticipantSession),
	}
}

func (r *roomImpl) ConsultationID() domain.ConsultationID { return r.consultationID }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomImpl) AddMember(sid SessionID, ps ParticipantSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ps
	log.Info().Str("module", "core.room").Str("consultation", string(r.consultationID)).Str("sid", string(sid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("consultation", string(r.consultationID)).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Broadcast(data Frame) PublishResult {
	return r.publish("", data)
}

func (r *roomImpl) BroadcastExcept(from SessionID, data Frame) PublishResult {
	return r.publish(from, data)
}

func (r *roomImpl) publish(skip SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, ps := range r.bySID {
		if sid == skip {
			continue
		}
		sig := ps.Signal()
		if sig == nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		if err := sig.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("consultation", string(r.consultationID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("publish result")
	return res
}
