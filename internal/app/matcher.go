package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
)

// AcceptPatient matches a doctor with a waiting patient.
//
// The race guard is Presence.TryAssign: a compare-and-set on the patient's
// waiting state, so concurrent accepts for the same patient resolve to
// exactly one winner and the losers return (nil, nil) — observably nothing.
// The consultation record must be durably created before the match commits;
// a store failure reverts the assignment and aborts.
func (o *Orchestrator) AcceptPatient(doctorSid core.SessionID, patientID domain.ParticipantID) (*domain.Consultation, error) {
	doctor, ok := o.Presence.Find(doctorSid)
	if !ok || doctor.Role != domain.RoleDoctor {
		return nil, fmt.Errorf("accept-patient: doctor %s: %w", doctorSid, domain.ErrNotFound)
	}
	patient, patientSid, ok := o.Presence.FindByID(patientID)
	if !ok || patient.Role != domain.RolePatient {
		return nil, fmt.Errorf("accept-patient: patient %s: %w", patientID, domain.ErrNotFound)
	}

	if !o.Presence.TryAssign(patientID) {
		// Someone else won the race or the patient left. Not an error.
		log.Debug().Str("module", "app.matcher").Str("patient", string(patientID)).Msg("accept lost race, no-op")
		return nil, nil
	}

	c := domain.NewConsultation(doctor.ID, patient.ID)
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := o.Store.CreateConsultation(ctx, c); err != nil {
		o.Presence.Unassign(patientID)
		log.Error().Err(err).Str("module", "app.matcher").Str("patient", string(patientID)).Msg("durable create failed, match aborted")
		return nil, fmt.Errorf("accept-patient: %w", err)
	}

	o.Queue.remove(patientID)
	room := o.Sessions.Create(c)
	doctorConn := o.Presence.Conn(doctorSid)
	patientConn := o.Presence.Conn(patientSid)
	room.AddMember(doctorSid, core.NewParticipantSession(doctor, doctorConn))
	if patientConn != nil {
		room.AddMember(patientSid, core.NewParticipantSession(patient, patientConn))
	}

	emit(doctorConn, consultationStartedEvent{
		Type:           evConsultationStarted,
		ConsultationID: c.ID,
		Patient: &patientSummary{
			ID: patient.ID, Name: patient.Name, Age: patient.Age, Symptoms: patient.Symptoms, JoinedAt: patient.JoinedAt,
		},
		Message: fmt.Sprintf("Consultation started with %s", patient.Name),
	})
	emit(patientConn, consultationStartedEvent{
		Type:           evConsultationStarted,
		ConsultationID: c.ID,
		Doctor: &doctorSummary{
			ID: doctor.ID, Name: doctor.Name, Specialization: doctor.Specialization,
		},
		Message: fmt.Sprintf("Dr. %s is now consulting with you", doctor.Name),
	})
	if f, ok := encode(patientRefEvent{Type: evPatientAccepted, PatientID: patient.ID}); ok {
		o.Doctors.FanOutExcept(doctorSid, f)
	}

	log.Info().Str("module", "app.matcher").Str("consultation", string(c.ID)).Str("doctor", string(doctor.ID)).Str("patient", string(patient.ID)).Msg("consultation started")
	return c, nil
}
