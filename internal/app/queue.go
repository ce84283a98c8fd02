package app

import (
	"sync"

	"github.com/okdoc/teleconsult/internal/domain"
)

// WaitingQueue is the FIFO of patients awaiting assignment, ordered by join
// time. There is no public dequeue: removal happens only as a side effect of
// a successful match or a disconnect, which avoids split read-then-write
// races on the queue head. Membership never expires.
type WaitingQueue struct {
	mu     sync.Mutex
	order  []domain.ParticipantID
	member map[domain.ParticipantID]struct{}
}

func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{member: make(map[domain.ParticipantID]struct{})}
}

// Enqueue appends a patient. Joins arrive serialized per connection, so
// append order equals join order.
func (q *WaitingQueue) Enqueue(id domain.ParticipantID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.member[id]; ok {
		return
	}
	q.order = append(q.order, id)
	q.member[id] = struct{}{}
}

func (q *WaitingQueue) remove(id domain.ParticipantID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.member[id]; !ok {
		return
	}
	delete(q.member, id)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the current order.
func (q *WaitingQueue) Snapshot() []domain.ParticipantID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.ParticipantID, len(q.order))
	copy(out, q.order)
	return out
}

func (q *WaitingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
