package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
)

// DoctorGroup is the logical "all doctors" broadcast channel used for
// queue-change fan-out. Delivery is best-effort and unordered; there is no
// acknowledgment tracking, a slow doctor simply misses the notice.
type DoctorGroup struct {
	mu    sync.RWMutex
	conns map[core.SessionID]core.SignalConnection
}

func NewDoctorGroup() *DoctorGroup {
	return &DoctorGroup{conns: make(map[core.SessionID]core.SignalConnection)}
}

func (g *DoctorGroup) Add(sid core.SessionID, conn core.SignalConnection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[sid] = conn
	log.Info().Str("module", "app.doctors").Str("sid", string(sid)).Int("size", len(g.conns)).Msg("doctor joined group")
}

func (g *DoctorGroup) Remove(sid core.SessionID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, sid)
}

// FanOut delivers a frame to every doctor connection.
func (g *DoctorGroup) FanOut(data core.Frame) {
	g.fanOut("", data)
}

// FanOutExcept delivers to every doctor but the given one, typically the
// doctor who triggered the change.
func (g *DoctorGroup) FanOutExcept(skip core.SessionID, data core.Frame) {
	g.fanOut(skip, data)
}

func (g *DoctorGroup) fanOut(skip core.SessionID, data core.Frame) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	dropped := 0
	for sid, conn := range g.conns {
		if sid == skip {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			dropped++
		}
	}
	if dropped > 0 {
		log.Debug().Str("module", "app.doctors").Int("dropped", dropped).Msg("group fan-out dropped frames")
	}
}
