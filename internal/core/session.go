package core

import "github.com/okdoc/teleconsult/internal/domain"

// participantSession implements ParticipantSession by pairing entity + transport.
type participantSession struct {
	participant *domain.Participant
	conn        SignalConnection
}

func NewParticipantSession(p *domain.Participant, conn SignalConnection) ParticipantSession {
	return &participantSession{participant: p, conn: conn}
}

func (s *participantSession) Participant() *domain.Participant { return s.participant }
func (s *participantSession) Signal() SignalConnection         { return s.conn }
