package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
)

type presenceEntry struct {
	Participant *domain.Participant
	Conn        core.SignalConnection
}

// Presence tracks every live connection and its participant. It is the
// authority for all real-time decisions; the durable store only trails it.
type Presence struct {
	mu     sync.RWMutex
	byConn map[core.SessionID]*presenceEntry
	byID   map[domain.ParticipantID]core.SessionID
}

func NewPresence() *Presence {
	return &Presence{
		byConn: make(map[core.SessionID]*presenceEntry),
		byID:   make(map[domain.ParticipantID]core.SessionID),
	}
}

// Register binds a participant to its connection.
func (p *Presence) Register(sid core.SessionID, conn core.SignalConnection, participant *domain.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byConn[sid] = &presenceEntry{Participant: participant, Conn: conn}
	p.byID[participant.ID] = sid
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Str("id", string(participant.ID)).Str("role", string(participant.Role)).Msg("registered")
}

// Find returns the participant bound to a connection.
func (p *Presence) Find(sid core.SessionID) (*domain.Participant, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byConn[sid]
	if !ok {
		return nil, false
	}
	return e.Participant, true
}

// FindByID resolves a participant id to its entity and connection.
func (p *Presence) FindByID(id domain.ParticipantID) (*domain.Participant, core.SessionID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sid, ok := p.byID[id]
	if !ok {
		return nil, "", false
	}
	e, ok := p.byConn[sid]
	if !ok || e.Participant.ID != id {
		// The connection was rebound to a newer participant.
		return nil, "", false
	}
	return e.Participant, sid, true
}

// Conn returns the signal connection of a live participant, nil when offline.
func (p *Presence) Conn(sid core.SessionID) core.SignalConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.byConn[sid]; ok {
		return e.Conn
	}
	return nil
}

// MarkOffline flips the participant offline and detaches its connection.
// The entry itself stays: consultations may still reference the participant.
// Returns a value copy taken under the lock, so callers can hand it to the
// store goroutine without racing the registry, and the state the participant
// held before going offline.
func (p *Presence) MarkOffline(sid core.SessionID) (domain.Participant, domain.State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byConn[sid]
	if !ok {
		return domain.Participant{}, "", false
	}
	prev := e.Participant.State
	if prev == domain.StateOffline {
		return *e.Participant, prev, false
	}
	e.Participant.State = domain.StateOffline
	e.Participant.Touch()
	e.Conn = nil
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Str("id", string(e.Participant.ID)).Str("was", string(prev)).Msg("marked offline")
	return *e.Participant, prev, true
}

// TryAssign is the accept-patient race guard: a compare-and-set from waiting
// to active under the registry lock. Exactly one of any number of concurrent
// callers wins; the rest observe false and do nothing.
func (p *Presence) TryAssign(id domain.ParticipantID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sid, ok := p.byID[id]
	if !ok {
		return false
	}
	e, ok := p.byConn[sid]
	if !ok || e.Participant.ID != id || e.Participant.State != domain.StateWaiting {
		return false
	}
	e.Participant.State = domain.StateActive
	e.Participant.Touch()
	return true
}

// Unassign reverts a TryAssign that could not be committed.
func (p *Presence) Unassign(id domain.ParticipantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sid, ok := p.byID[id]
	if !ok {
		return
	}
	if e, ok := p.byConn[sid]; ok && e.Participant.ID == id && e.Participant.State == domain.StateActive {
		e.Participant.State = domain.StateWaiting
	}
}

// PatientSummaries resolves queue ids to wire summaries, keeping only
// patients still in the waiting state. Order of ids is preserved.
func (p *Presence) PatientSummaries(ids []domain.ParticipantID) []patientSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]patientSummary, 0, len(ids))
	for _, id := range ids {
		sid, ok := p.byID[id]
		if !ok {
			continue
		}
		e, ok := p.byConn[sid]
		if !ok || e.Participant.ID != id || e.Participant.State != domain.StateWaiting {
			continue
		}
		out = append(out, patientSummary{
			ID:       e.Participant.ID,
			Name:     e.Participant.Name,
			Age:      e.Participant.Age,
			Symptoms: e.Participant.Symptoms,
			JoinedAt: e.Participant.JoinedAt,
		})
	}
	return out
}

// CountOnlineDoctors answers the status query.
func (p *Presence) CountOnlineDoctors() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.byConn {
		if e.Participant.Role == domain.RoleDoctor && e.Participant.State == domain.StateOnline {
			n++
		}
	}
	return n
}
