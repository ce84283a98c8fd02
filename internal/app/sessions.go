package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
)

type consultEntry struct {
	mu           sync.Mutex
	consultation *domain.Consultation
	room         core.RoomService
}

// Sessions is the session registry: it owns consultation records, their room
// membership and the append-only message log, keyed by consultation id.
// Per-entry locks serialize mutation, which makes message sequence numbers a
// total order regardless of sender concurrency.
type Sessions struct {
	mu   sync.RWMutex
	byID map[domain.ConsultationID]*consultEntry
	// byMember holds a set per participant: a patient belongs to at most one
	// consultation, but a doctor may run several concurrently.
	byMember map[domain.ParticipantID]map[domain.ConsultationID]struct{}
}

func NewSessions() *Sessions {
	return &Sessions{
		byID:     make(map[domain.ConsultationID]*consultEntry),
		byMember: make(map[domain.ParticipantID]map[domain.ConsultationID]struct{}),
	}
}

// Create registers a freshly matched consultation and its room. Only the
// matching coordinator calls this.
func (s *Sessions) Create(c *domain.Consultation) core.RoomService {
	room := core.NewRoomService(c.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[c.ID] = &consultEntry{consultation: c, room: room}
	for _, pid := range []domain.ParticipantID{c.DoctorID, c.PatientID} {
		set, ok := s.byMember[pid]
		if !ok {
			set = make(map[domain.ConsultationID]struct{})
			s.byMember[pid] = set
		}
		set[c.ID] = struct{}{}
	}
	log.Info().Str("module", "app.sessions").Str("consultation", string(c.ID)).Str("doctor", string(c.DoctorID)).Str("patient", string(c.PatientID)).Msg("consultation created")
	return room
}

func (s *Sessions) entry(id domain.ConsultationID) (*consultEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

// Room returns the routing scope of a consultation, nil once it ended.
func (s *Sessions) Room(id domain.ConsultationID) (core.RoomService, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.room == nil {
		return nil, domain.ErrInvalidState
	}
	return e.room, nil
}

// AppendMessage appends with a server-assigned strictly increasing sequence.
// Terminal consultations reject the append with ErrInvalidState.
//
// deliver runs while the entry lock is still held, so broadcasts of
// consecutive messages cannot interleave and every connection observes the
// log in sequence order. It must not block; room sends never do.
func (s *Sessions) AppendMessage(id domain.ConsultationID, text string, senderType domain.Role, senderID domain.ParticipantID, deliver func(domain.Message, core.RoomService)) (domain.Message, error) {
	e, ok := s.entry(id)
	if !ok {
		return domain.Message{}, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, err := e.consultation.Append(text, senderType, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	if deliver != nil {
		deliver(msg, e.room)
	}
	return msg, nil
}

// SetVideo toggles the video-call flag idempotently. changed reports whether
// this call performed the transition, so notices go out once.
func (s *Sessions) SetVideo(id domain.ConsultationID, active bool) (changed bool, room core.RoomService, err error) {
	e, ok := s.entry(id)
	if !ok {
		return false, nil, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	changed, err = e.consultation.SetVideo(active)
	if err != nil {
		return false, nil, err
	}
	return changed, e.room, nil
}

// End transitions to completed. Idempotent: the second call reports
// ended=false and the caller emits nothing. The returned room is valid for
// one final notice; the caller must Release afterwards.
func (s *Sessions) End(id domain.ConsultationID) (ended bool, room core.RoomService, c *domain.Consultation, err error) {
	return s.finish(id, (*domain.Consultation).Complete)
}

// Cancel is the administrative/reconciliation terminal transition.
func (s *Sessions) Cancel(id domain.ConsultationID) (ended bool, room core.RoomService, c *domain.Consultation, err error) {
	return s.finish(id, (*domain.Consultation).Cancel)
}

func (s *Sessions) finish(id domain.ConsultationID, transition func(*domain.Consultation) bool) (bool, core.RoomService, *domain.Consultation, error) {
	e, ok := s.entry(id)
	if !ok {
		return false, nil, nil, domain.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !transition(e.consultation) {
		return false, nil, e.consultation, nil
	}
	log.Info().Str("module", "app.sessions").Str("consultation", string(id)).Str("status", string(e.consultation.Status)).Msg("consultation finished")
	return true, e.room, e.consultation, nil
}

// Release drops room membership after the end notice went out. The record
// itself is kept; terminal status already blocks further mutation. Only this
// consultation leaves each member's set, so a doctor's other consultations
// stay tracked.
func (s *Sessions) Release(id domain.ConsultationID) {
	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		for _, pid := range []domain.ParticipantID{e.consultation.DoctorID, e.consultation.PatientID} {
			if set, found := s.byMember[pid]; found {
				delete(set, id)
				if len(set) == 0 {
					delete(s.byMember, pid)
				}
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.room = nil
	e.mu.Unlock()
}

// MemberConsultations lists every unreleased consultation a participant
// belongs to. Empty for participants not in any room.
func (s *Sessions) MemberConsultations(id domain.ParticipantID) []domain.ConsultationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.byMember[id]
	if !ok {
		return nil
	}
	out := make([]domain.ConsultationID, 0, len(set))
	for cid := range set {
		out = append(out, cid)
	}
	return out
}

// ActiveCount answers the status query.
func (s *Sessions) ActiveCount() int {
	s.mu.RLock()
	entries := make([]*consultEntry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.consultation.Status == domain.StatusActive {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
