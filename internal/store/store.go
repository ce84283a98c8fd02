// Package store holds the durable record of participants and consultations.
// The in-memory registries stay authoritative for real-time decisions; the
// store trails them, except for consultation creation which must be durable
// before the match is treated as committed.
package store

import (
	"context"
	"time"

	"github.com/okdoc/teleconsult/internal/domain"
)

type Store interface {
	// SaveParticipant takes its argument by value: saves run on background
	// goroutines while the presence registry keeps mutating the live entity,
	// so callers hand over a snapshot, never the shared pointer.
	SaveParticipant(ctx context.Context, p domain.Participant) error
	UpdateParticipantState(ctx context.Context, id domain.ParticipantID, state domain.State, lastActive time.Time) error

	CreateConsultation(ctx context.Context, c *domain.Consultation) error
	AppendMessage(ctx context.Context, id domain.ConsultationID, msg domain.Message) error
	SetVideoState(ctx context.Context, id domain.ConsultationID, active bool, startedAt *time.Time) error
	UpdateConsultationStatus(ctx context.Context, id domain.ConsultationID, status domain.Status, endedAt *time.Time) error

	Close(ctx context.Context) error
}
