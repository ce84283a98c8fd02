package store

import (
	"context"
	"sync"
	"time"

	"github.com/okdoc/teleconsult/internal/domain"
)

// Memory is the store used when no Mongo URI is configured (dev and tests).
// It keeps deep-enough copies so callers can't mutate records behind it.
type Memory struct {
	mu            sync.Mutex
	participants  map[domain.ParticipantID]domain.Participant
	consultations map[domain.ConsultationID]*domain.Consultation
}

func NewMemory() *Memory {
	return &Memory{
		participants:  make(map[domain.ParticipantID]domain.Participant),
		consultations: make(map[domain.ConsultationID]*domain.Consultation),
	}
}

func (m *Memory) SaveParticipant(_ context.Context, p domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = p
	return nil
}

func (m *Memory) UpdateParticipantState(_ context.Context, id domain.ParticipantID, state domain.State, lastActive time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.State = state
	p.LastActive = lastActive
	m.participants[id] = p
	return nil
}

func (m *Memory) CreateConsultation(_ context.Context, c *domain.Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Messages = append([]domain.Message(nil), c.Messages...)
	m.consultations[c.ID] = &cp
	return nil
}

func (m *Memory) AppendMessage(_ context.Context, id domain.ConsultationID, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Messages = append(c.Messages, msg)
	return nil
}

func (m *Memory) SetVideoState(_ context.Context, id domain.ConsultationID, active bool, startedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.VideoCallActive = active
	if startedAt != nil {
		c.VideoCallStartedAt = startedAt
	}
	return nil
}

func (m *Memory) UpdateConsultationStatus(_ context.Context, id domain.ConsultationID, status domain.Status, endedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	c.EndedAt = endedAt
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

// Consultation exposes a stored record for tests.
func (m *Memory) Consultation(id domain.ConsultationID) (domain.Consultation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return domain.Consultation{}, false
	}
	cp := *c
	cp.Messages = append([]domain.Message(nil), c.Messages...)
	return cp, true
}
