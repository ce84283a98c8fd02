package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
)

// Server-side event types. Client-side event types are matched in the signal
// adapter's dispatch switch.
const (
	evPatientConfirmed    = "patient-confirmed"
	evDoctorConfirmed     = "doctor-confirmed"
	evNewPatient          = "new-patient"
	evWaitingPatients     = "waiting-patients"
	evConsultationStarted = "consultation-started"
	evPatientAccepted     = "patient-accepted"
	evPatientDisconnected = "patient-disconnected"
	evNewMessage          = "new-message"
	evVideoCallStarted    = "video-call-started"
	evVideoCallEnded      = "video-call-ended"
	evConsultationEnded   = "consultation-ended"
)

type patientSummary struct {
	ID       domain.ParticipantID `json:"id"`
	Name     string               `json:"name"`
	Age      int                  `json:"age"`
	Symptoms string               `json:"symptoms"`
	JoinedAt time.Time            `json:"joinedAt"`
}

type doctorSummary struct {
	ID             domain.ParticipantID `json:"id"`
	Name           string               `json:"name"`
	Specialization string               `json:"specialization"`
}

type patientConfirmedEvent struct {
	Type      string               `json:"type"`
	Message   string               `json:"message"`
	PatientID domain.ParticipantID `json:"patientId"`
}

type doctorConfirmedEvent struct {
	Type     string               `json:"type"`
	Message  string               `json:"message"`
	DoctorID domain.ParticipantID `json:"doctorId"`
}

type newPatientEvent struct {
	Type string `json:"type"`
	patientSummary
}

type waitingPatientsEvent struct {
	Type     string           `json:"type"`
	Patients []patientSummary `json:"patients"`
}

// consultationStartedEvent carries the peer profile: the patient one for the
// doctor, the doctor one for the patient.
type consultationStartedEvent struct {
	Type           string                `json:"type"`
	ConsultationID domain.ConsultationID `json:"consultationId"`
	Patient        *patientSummary       `json:"patient,omitempty"`
	Doctor         *doctorSummary        `json:"doctor,omitempty"`
	Message        string                `json:"message"`
}

type patientRefEvent struct {
	Type      string               `json:"type"`
	PatientID domain.ParticipantID `json:"patientId"`
}

type newMessageEvent struct {
	Type string `json:"type"`
	domain.Message
}

type videoCallEvent struct {
	Type       string               `json:"type"`
	SenderType domain.Role          `json:"senderType"`
	SenderID   domain.ParticipantID `json:"senderId"`
}

type consultationEndedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// relayedSignalEvent re-emits a negotiation message under its original type.
// Payload stays opaque end to end.
type relayedSignalEvent struct {
	Type       string               `json:"type"`
	Payload    json.RawMessage      `json:"payload"`
	SenderType domain.Role          `json:"senderType"`
	SenderID   domain.ParticipantID `json:"senderId"`
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.events").Msg("encode event")
		return nil, false
	}
	return b, true
}

// emit sends a frame to one connection, dropping on backpressure.
func emit(conn core.SignalConnection, v any) {
	if conn == nil {
		return
	}
	if f, ok := encode(v); ok {
		_ = conn.TrySend(f)
	}
}
