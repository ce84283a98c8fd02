package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
	"github.com/okdoc/teleconsult/internal/store"
)

const storeTimeout = 5 * time.Second

const (
	patientWelcome = "You are now in the waiting room. A doctor will be with you shortly."
	doctorWelcome  = "You are now online and can see waiting patients."
	endNotice      = "Consultation has ended. Thank you!"
)

// Orchestrator wires the presence registry, waiting queue, session registry
// and doctor group behind the event surface. All state is injected, so the
// whole engine runs without a live transport in tests.
type Orchestrator struct {
	Presence *Presence
	Queue    *WaitingQueue
	Sessions *Sessions
	Doctors  *DoctorGroup
	Store    store.Store

	// CancelOnDisconnect is a reconciliation policy extension: when set, a
	// room member's disconnect cancels the consultation. Off by default —
	// the shipped behavior keeps the consultation active until an explicit
	// end-consultation, matching the product decision on dropped peers.
	CancelOnDisconnect bool
}

func NewOrchestrator(st store.Store) *Orchestrator {
	return &Orchestrator{
		Presence: NewPresence(),
		Queue:    NewWaitingQueue(),
		Sessions: NewSessions(),
		Doctors:  NewDoctorGroup(),
		Store:    st,
	}
}

// JoinPatient registers a patient, enqueues it and fans the new-patient
// notice out to the doctor group.
func (o *Orchestrator) JoinPatient(sid core.SessionID, conn core.SignalConnection, name string, age int, symptoms string) *domain.Participant {
	p := domain.NewPatient(name, age, symptoms)
	// Snapshot before the registry shares the entity with other goroutines;
	// the store write must not read live mutable state.
	snap := *p
	o.Presence.Register(sid, conn, p)
	o.Queue.Enqueue(p.ID)
	o.persist("save patient", func(ctx context.Context) error {
		return o.Store.SaveParticipant(ctx, snap)
	})

	if f, ok := encode(newPatientEvent{
		Type: evNewPatient,
		patientSummary: patientSummary{
			ID: p.ID, Name: p.Name, Age: p.Age, Symptoms: p.Symptoms, JoinedAt: p.JoinedAt,
		},
	}); ok {
		o.Doctors.FanOut(f)
	}

	emit(conn, patientConfirmedEvent{Type: evPatientConfirmed, Message: patientWelcome, PatientID: p.ID})
	log.Info().Str("module", "app").Str("patient", string(p.ID)).Str("name", name).Msg("patient joined waiting room")
	return p
}

// JoinDoctor registers a doctor, adds it to the broadcast group and seeds it
// with the current waiting list.
func (o *Orchestrator) JoinDoctor(sid core.SessionID, conn core.SignalConnection, name, specialization string) *domain.Participant {
	d := domain.NewDoctor(name, specialization)
	snap := *d
	o.Presence.Register(sid, conn, d)
	o.Doctors.Add(sid, conn)
	o.persist("save doctor", func(ctx context.Context) error {
		return o.Store.SaveParticipant(ctx, snap)
	})

	emit(conn, doctorConfirmedEvent{Type: evDoctorConfirmed, Message: doctorWelcome, DoctorID: d.ID})
	o.SendWaitingList(conn)
	log.Info().Str("module", "app").Str("doctor", string(d.ID)).Str("name", name).Msg("doctor joined")
	return d
}

// WaitingList snapshots the queue in join order.
func (o *Orchestrator) WaitingList() []patientSummary {
	return o.Presence.PatientSummaries(o.Queue.Snapshot())
}

// SendWaitingList answers an explicit waiting-patients query.
func (o *Orchestrator) SendWaitingList(conn core.SignalConnection) {
	emit(conn, waitingPatientsEvent{Type: evWaitingPatients, Patients: o.WaitingList()})
}

// OnDisconnect flips the participant offline and notifies doctors when a
// waiting or active patient drops. Doctor presence flips silently. The peer
// of an active consultation is not informed unless the cancel policy is on.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	p, prev, ok := o.Presence.MarkOffline(sid)
	if !ok {
		return
	}
	o.persist("participant offline", func(ctx context.Context) error {
		return o.Store.UpdateParticipantState(ctx, p.ID, domain.StateOffline, p.LastActive)
	})

	switch p.Role {
	case domain.RoleDoctor:
		o.Doctors.Remove(sid)
	case domain.RolePatient:
		if prev == domain.StateWaiting {
			o.Queue.remove(p.ID)
		}
		if prev == domain.StateWaiting || prev == domain.StateActive {
			if f, ok := encode(patientRefEvent{Type: evPatientDisconnected, PatientID: p.ID}); ok {
				o.Doctors.FanOut(f)
			}
		}
	}

	// A doctor may sit in several rooms at once; clean up each of them.
	for _, cid := range o.Sessions.MemberConsultations(p.ID) {
		if room, err := o.Sessions.Room(cid); err == nil {
			room.RemoveMember(sid)
		}
		if o.CancelOnDisconnect {
			o.cancelConsultation(cid)
		}
		log.Info().Str("module", "app").Str("sid", string(sid)).Str("consultation", string(cid)).Bool("cancelled", o.CancelOnDisconnect).Msg("room member disconnected")
	}
}

// Counts serves the read-only status query.
func (o *Orchestrator) Counts() (doctors, waiting, active int) {
	return o.Presence.CountOnlineDoctors(), len(o.WaitingList()), o.Sessions.ActiveCount()
}

// persist runs a store write off the real-time path. Failures are logged and
// never propagated; the in-memory registries stay authoritative.
func (o *Orchestrator) persist(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("module", "app").Str("op", op).Msg("store write failed")
		}
	}()
}
