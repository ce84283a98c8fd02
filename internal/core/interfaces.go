package core

import "github.com/okdoc/teleconsult/internal/domain"

// Frame is a marshaled wire payload.
type Frame []byte

// SessionID identifies one live client connection.
type SessionID string

// SignalConnection abstracts the messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues a frame without blocking. Delivery is at-most-once:
	// a full buffer or closed connection returns an error and the frame is
	// dropped, never queued for retry.
	TrySend(Frame) error
	Close()
}

// ParticipantSession binds a participant and its transport endpoint.
// This is what rooms and the broadcast group store and fan out to.
type ParticipantSession interface {
	Participant() *domain.Participant
	Signal() SignalConnection
}

// PublishResult reports delivery stats back to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// RoomService is the routing scope of one consultation: exactly the doctor
// and patient connections. It owns the membership set but never closes
// adapter-owned resources.
type RoomService interface {
	ConsultationID() domain.ConsultationID
	MemberCount() int
	Has(sid SessionID) bool

	AddMember(sid SessionID, ps ParticipantSession)
	RemoveMember(sid SessionID)
	// Broadcast delivers to every member, the sender included.
	Broadcast(data Frame) PublishResult
	// BroadcastExcept delivers to every member but from.
	BroadcastExcept(from SessionID, data Frame) PublishResult
}
