// Package domain contains the entities of the consultation service.
// No transport or persistence logic lives here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	ParticipantID string
	Role          string
	State         string
)

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

const (
	// StateOnline is the resting state of a connected doctor.
	StateOnline State = "online"
	// StateWaiting marks a patient sitting in the waiting queue.
	StateWaiting State = "waiting"
	// StateActive marks a patient assigned to a consultation.
	StateActive State = "active"
	// StateOffline marks a disconnected participant of either role.
	StateOffline State = "offline"
)

// Participant is one connected doctor or patient. Doctors carry a
// specialization; patients carry age and symptoms. A participant is created
// on join and flipped offline on disconnect, never deleted while a
// consultation still references it.
type Participant struct {
	ID             ParticipantID `json:"id" bson:"_id"`
	Role           Role          `json:"role" bson:"role"`
	Name           string        `json:"name" bson:"name"`
	Specialization string        `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Age            int           `json:"age,omitempty" bson:"age,omitempty"`
	Symptoms       string        `json:"symptoms,omitempty" bson:"symptoms,omitempty"`
	State          State         `json:"state" bson:"state"`
	JoinedAt       time.Time     `json:"joinedAt" bson:"joinedAt"`
	LastActive     time.Time     `json:"lastActive" bson:"lastActive"`
}

func NewDoctor(name, specialization string) *Participant {
	now := time.Now()
	return &Participant{
		ID:             ParticipantID(uuid.NewString()),
		Role:           RoleDoctor,
		Name:           name,
		Specialization: specialization,
		State:          StateOnline,
		JoinedAt:       now,
		LastActive:     now,
	}
}

func NewPatient(name string, age int, symptoms string) *Participant {
	now := time.Now()
	return &Participant{
		ID:         ParticipantID(uuid.NewString()),
		Role:       RolePatient,
		Name:       name,
		Age:        age,
		Symptoms:   symptoms,
		State:      StateWaiting,
		JoinedAt:   now,
		LastActive: now,
	}
}

// Offline reports whether the participant left the live system.
func (p *Participant) Offline() bool { return p.State == StateOffline }

// Touch refreshes the activity timestamp.
func (p *Participant) Touch() { p.LastActive = time.Now() }
