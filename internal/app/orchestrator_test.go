package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
	"github.com/okdoc/teleconsult/internal/store"
)

// TestConsultationLifecycle walks the full flow: patient waits, doctor joins
// and accepts, chat, end, and the post-end append no-op.
func TestConsultationLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator()
	patientConn := &fakeConn{}
	doctorConn := &fakeConn{}

	ana := o.JoinPatient("sid-ana", patientConn, "Ana", 30, "fever")
	confirmed := patientConn.eventsOfType(t, "patient-confirmed")
	require.Len(t, confirmed, 1)
	assert.Equal(t, string(ana.ID), confirmed[0]["patientId"])

	list := o.WaitingList()
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].Name)

	o.JoinDoctor("sid-lee", doctorConn, "Dr. Lee", "general")
	waiting := doctorConn.eventsOfType(t, "waiting-patients")
	require.Len(t, waiting, 1)
	patients, ok := waiting[0]["patients"].([]any)
	require.True(t, ok)
	require.Len(t, patients, 1)

	c, err := o.AcceptPatient("sid-lee", ana.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.StatusActive, c.Status)
	assert.Empty(t, o.WaitingList())

	msg, err := o.SendMessage("sid-ana", c.ID, "hello", domain.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)

	// The room broadcast reached both sides, sender included.
	for _, conn := range []*fakeConn{doctorConn, patientConn} {
		got := conn.eventsOfType(t, "new-message")
		require.Len(t, got, 1)
		assert.Equal(t, "hello", got[0]["text"])
		assert.Equal(t, string(ana.ID), got[0]["senderId"])
	}

	require.NoError(t, o.EndConsultation(c.ID))
	assert.Equal(t, domain.StatusCompleted, c.Status)
	require.Len(t, doctorConn.eventsOfType(t, "consultation-ended"), 1)
	require.Len(t, patientConn.eventsOfType(t, "consultation-ended"), 1)

	// Sending after the end is an invalid-state no-op, nothing appended.
	_, err = o.SendMessage("sid-ana", c.ID, "too late", domain.RolePatient)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Len(t, c.Messages, 1)
}

func TestEndConsultationIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator()
	doctorConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", &fakeConn{}, "Ana", 30, "fever")

	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)

	require.NoError(t, o.EndConsultation(c.ID))
	require.NoError(t, o.EndConsultation(c.ID))

	// Exactly one completed transition and one end notice.
	assert.Equal(t, domain.StatusCompleted, c.Status)
	assert.Len(t, doctorConn.eventsOfType(t, "consultation-ended"), 1)
}

func TestRelaySignalReachesOnlyThePeer(t *testing.T) {
	o, _ := newTestOrchestrator()
	doctorConn := &fakeConn{}
	patientConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", patientConn, "Ana", 30, "fever")
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)

	payload := json.RawMessage(`{"sdp":"v=0...","kind":"offer"}`)
	require.NoError(t, o.RelaySignal("sid-d", c.ID, "webrtc-offer", payload, domain.RoleDoctor))

	offers := patientConn.eventsOfType(t, "webrtc-offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "doctor", offers[0]["senderType"])
	// The payload comes through untouched.
	inner, ok := offers[0]["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v=0...", inner["sdp"])

	// The sender never sees its own signaling back.
	assert.Empty(t, doctorConn.eventsOfType(t, "webrtc-offer"))

	assert.ErrorIs(t, o.RelaySignal("sid-d", "nope", "webrtc-answer", payload, domain.RoleDoctor), domain.ErrNotFound)
}

func TestVideoToggleEmitsOncePerTransition(t *testing.T) {
	o, _ := newTestOrchestrator()
	doctorConn := &fakeConn{}
	patientConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", patientConn, "Ana", 30, "fever")
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)

	require.NoError(t, o.SetVideo("sid-d", c.ID, true, domain.RoleDoctor))
	require.NoError(t, o.SetVideo("sid-d", c.ID, true, domain.RoleDoctor))
	assert.Len(t, patientConn.eventsOfType(t, "video-call-started"), 1)
	assert.Empty(t, doctorConn.eventsOfType(t, "video-call-started"))

	require.NoError(t, o.SetVideo("sid-p", c.ID, false, domain.RolePatient))
	assert.Len(t, doctorConn.eventsOfType(t, "video-call-ended"), 1)
}

func TestWaitingPatientDisconnect(t *testing.T) {
	o, _ := newTestOrchestrator()
	doctorConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", &fakeConn{}, "Ana", 30, "fever")

	o.OnDisconnect("sid-p")
	o.OnDisconnect("sid-p") // repeated disconnect must not duplicate the notice

	gone := doctorConn.eventsOfType(t, "patient-disconnected")
	require.Len(t, gone, 1)
	assert.Equal(t, string(p.ID), gone[0]["patientId"])
	assert.Empty(t, o.WaitingList())

	// The lost patient is no longer matchable.
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDoctorDisconnectIsSilent(t *testing.T) {
	o, _ := newTestOrchestrator()
	otherConn := &fakeConn{}
	o.JoinDoctor("sid-d", &fakeConn{}, "Dr. Lee", "general")
	o.JoinDoctor("sid-d2", otherConn, "Dr. Wu", "cardiology")

	o.OnDisconnect("sid-d")

	assert.Empty(t, otherConn.eventsOfType(t, "patient-disconnected"))
	doctors, _, _ := o.Counts()
	assert.Equal(t, 1, doctors)
}

func TestDisconnectMidConsultationKeepsItActive(t *testing.T) {
	o, _ := newTestOrchestrator()
	doctorConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", &fakeConn{}, "Ana", 30, "fever")
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)

	o.OnDisconnect("sid-p")

	// Default policy: the consultation stays active until an explicit end.
	assert.Equal(t, domain.StatusActive, c.Status)
	assert.Len(t, doctorConn.eventsOfType(t, "patient-disconnected"), 1)
	assert.Empty(t, doctorConn.eventsOfType(t, "consultation-ended"))
}

func TestCancelOnDisconnectPolicy(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.CancelOnDisconnect = true
	doctorConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", &fakeConn{}, "Ana", 30, "fever")
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)

	o.OnDisconnect("sid-p")

	assert.Equal(t, domain.StatusCancelled, c.Status)
	assert.Len(t, doctorConn.eventsOfType(t, "consultation-ended"), 1)
	_, _, active := o.Counts()
	assert.Equal(t, 0, active)
}

// snapshotStore holds patient saves at a gate so a test can order the
// background write after a state transition on the live entity.
type snapshotStore struct {
	*store.Memory
	gate  chan struct{}
	saved chan domain.Participant
}

func (s *snapshotStore) SaveParticipant(ctx context.Context, p domain.Participant) error {
	if p.Role == domain.RolePatient {
		<-s.gate
		s.saved <- p
	}
	return s.Memory.SaveParticipant(ctx, p)
}

func TestJoinPersistsJoinTimeSnapshot(t *testing.T) {
	st := &snapshotStore{
		Memory: store.NewMemory(),
		gate:   make(chan struct{}),
		saved:  make(chan domain.Participant, 1),
	}
	o := NewOrchestrator(st)
	o.JoinDoctor("sid-d", &fakeConn{}, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", &fakeConn{}, "Ana", 30, "fever")

	// Flip the live entity to active before the save goroutine gets to run.
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	close(st.gate)

	// The write carries the join-time copy, not the mutated live state.
	got := <-st.saved
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, domain.StateWaiting, got.State)
}

func TestDoctorDisconnectCancelsEachRemainingConsultation(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.CancelOnDisconnect = true
	o.JoinDoctor("sid-d", &fakeConn{}, "Dr. Lee", "general")
	boConn := &fakeConn{}
	ana := o.JoinPatient("sid-a", &fakeConn{}, "Ana", 30, "fever")
	bo := o.JoinPatient("sid-b", boConn, "Bo", 41, "cough")

	first, err := o.AcceptPatient("sid-d", ana.ID)
	require.NoError(t, err)
	second, err := o.AcceptPatient("sid-d", bo.ID)
	require.NoError(t, err)

	// Ending the first consultation must not untrack the second one.
	require.NoError(t, o.EndConsultation(first.ID))
	o.OnDisconnect("sid-d")

	assert.Equal(t, domain.StatusCompleted, first.Status)
	assert.Equal(t, domain.StatusCancelled, second.Status)
	assert.Len(t, boConn.eventsOfType(t, "consultation-ended"), 1)
	_, _, active := o.Counts()
	assert.Equal(t, 0, active)
}

func TestConcurrentSendersObserveOneMessageOrder(t *testing.T) {
	o, _ := newTestOrchestrator()
	doctorConn := &fakeConn{}
	patientConn := &fakeConn{}
	o.JoinDoctor("sid-d", doctorConn, "Dr. Lee", "general")
	p := o.JoinPatient("sid-p", patientConn, "Ana", 30, "fever")
	c, err := o.AcceptPatient("sid-d", p.ID)
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid, role := core.SessionID("sid-d"), domain.RoleDoctor
			if i%2 == 0 {
				sid, role = core.SessionID("sid-p"), domain.RolePatient
			}
			_, err := o.SendMessage(sid, c.ID, "x", role)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seqs := func(conn *fakeConn) []int64 {
		var out []int64
		for _, m := range conn.eventsOfType(t, "new-message") {
			seq, ok := m["id"].(float64)
			require.True(t, ok)
			out = append(out, int64(seq))
		}
		return out
	}
	doctorSeqs := seqs(doctorConn)
	require.Len(t, doctorSeqs, n)
	for i, seq := range doctorSeqs {
		assert.Equal(t, int64(i+1), seq, "frame %d delivered out of sequence", i)
	}
	// Both room members observed the exact same delivery order.
	assert.Equal(t, doctorSeqs, seqs(patientConn))
}

func TestCounts(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.JoinDoctor("sid-d", &fakeConn{}, "Dr. Lee", "general")
	o.JoinPatient("sid-p1", &fakeConn{}, "Ana", 30, "fever")
	p2 := o.JoinPatient("sid-p2", &fakeConn{}, "Bo", 40, "cough")

	doctors, waiting, active := o.Counts()
	assert.Equal(t, 1, doctors)
	assert.Equal(t, 2, waiting)
	assert.Equal(t, 0, active)

	_, err := o.AcceptPatient("sid-d", p2.ID)
	require.NoError(t, err)

	doctors, waiting, active = o.Counts()
	assert.Equal(t, 1, doctors)
	assert.Equal(t, 1, waiting)
	assert.Equal(t, 1, active)
}

func TestWaitingListOrderedByJoinTime(t *testing.T) {
	o, _ := newTestOrchestrator()
	o.JoinPatient("sid-p1", &fakeConn{}, "A", 20, "aa")
	o.JoinPatient("sid-p2", &fakeConn{}, "B", 30, "bb")
	o.JoinPatient("sid-p3", &fakeConn{}, "C", 40, "cc")

	list := o.WaitingList()
	require.Len(t, list, 3)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)
	assert.Equal(t, "C", list[2].Name)
	assert.True(t, !list[1].JoinedAt.Before(list[0].JoinedAt))
	assert.True(t, !list[2].JoinedAt.Before(list[1].JoinedAt))
}
