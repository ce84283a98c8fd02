package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	ConsultationID string
	Status         string
)

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Message is one chat line inside a consultation. Seq is server-assigned and
// strictly increasing within the consultation; a message is immutable once
// appended.
type Message struct {
	Seq        int64         `json:"id" bson:"seq"`
	Text       string        `json:"text" bson:"text"`
	SenderType Role          `json:"senderType" bson:"senderType"`
	SenderID   ParticipantID `json:"senderId" bson:"senderId"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
}

// Consultation pairs one doctor with one patient. Only the matching
// coordinator creates one; completed and cancelled are absorbing states after
// which no mutation is legal.
type Consultation struct {
	ID                 ConsultationID `json:"id" bson:"_id"`
	DoctorID           ParticipantID  `json:"doctorId" bson:"doctorId"`
	PatientID          ParticipantID  `json:"patientId" bson:"patientId"`
	Status             Status         `json:"status" bson:"status"`
	StartedAt          time.Time      `json:"startedAt" bson:"startedAt"`
	EndedAt            *time.Time     `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	Messages           []Message      `json:"messages" bson:"messages"`
	VideoCallActive    bool           `json:"videoCallActive" bson:"videoCallActive"`
	VideoCallStartedAt *time.Time     `json:"videoCallStartedAt,omitempty" bson:"videoCallStartedAt,omitempty"`
}

func NewConsultation(doctorID, patientID ParticipantID) *Consultation {
	return &Consultation{
		ID:        ConsultationID(uuid.NewString()),
		DoctorID:  doctorID,
		PatientID: patientID,
		Status:    StatusActive,
		StartedAt: time.Now(),
		Messages:  []Message{},
	}
}

// Terminal reports whether the consultation reached an absorbing status.
func (c *Consultation) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

// Append records a message with the next sequence number. The caller must
// hold whatever lock guards this consultation.
func (c *Consultation) Append(text string, senderType Role, senderID ParticipantID) (Message, error) {
	if c.Terminal() {
		return Message{}, ErrInvalidState
	}
	msg := Message{
		Seq:        int64(len(c.Messages) + 1),
		Text:       text,
		SenderType: senderType,
		SenderID:   senderID,
		Timestamp:  time.Now(),
	}
	c.Messages = append(c.Messages, msg)
	return msg, nil
}

// SetVideo flips the video-call flag. The start timestamp is recorded only on
// a false→true transition and intentionally survives end-video-call, matching
// the stored record shape. Returns whether anything changed.
func (c *Consultation) SetVideo(active bool) (bool, error) {
	if c.Terminal() {
		return false, ErrInvalidState
	}
	if c.VideoCallActive == active {
		return false, nil
	}
	c.VideoCallActive = active
	if active && c.VideoCallStartedAt == nil {
		now := time.Now()
		c.VideoCallStartedAt = &now
	}
	return true, nil
}

// Complete transitions to completed. Returns false when the consultation was
// already terminal, so callers can keep end notices to exactly one.
func (c *Consultation) Complete() bool {
	if c.Terminal() {
		return false
	}
	c.Status = StatusCompleted
	now := time.Now()
	c.EndedAt = &now
	return true
}

// Cancel transitions to cancelled, the administrative terminal state.
func (c *Consultation) Cancel() bool {
	if c.Terminal() {
		return false
	}
	c.Status = StatusCancelled
	now := time.Now()
	c.EndedAt = &now
	return true
}
