package escalation

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler keeps one debounced timer per session. Re-arming replaces the
// previous timer so the window restarts instead of stacking. Cancellation
// is derived: the condition is re-checked at fire time rather than trusting
// an explicit cancel signal, which sidesteps the race between "operator
// just replied" and "timer about to fire".
//
// State is in-memory only; pending arms are lost on process restart. A
// durable deployment would persist them and re-arm on startup.
type Scheduler struct {
	delay     time.Duration
	condition Condition
	notify    NotifyFunc

	mu      sync.Mutex
	pending map[string]*pendingEscalation
}

type pendingEscalation struct {
	tenantID  string
	sessionID string
	armedAt   time.Time
	timer     *time.Timer
	fired     bool
}

func NewScheduler(delay time.Duration, condition Condition, notify NotifyFunc) *Scheduler {
	return &Scheduler{
		delay:     delay,
		condition: condition,
		notify:    notify,
		pending:   make(map[string]*pendingEscalation),
	}
}

// Arm sets (or resets) the session's timer. At most one active timer per
// session exists at a time.
func (s *Scheduler) Arm(tenantID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[sessionID]; ok {
		prev.timer.Stop()
	}

	p := &pendingEscalation{
		tenantID:  tenantID,
		sessionID: sessionID,
		armedAt:   time.Now(),
	}
	p.timer = time.AfterFunc(s.delay, func() { s.fire(p) })
	s.pending[sessionID] = p

	log.Printf("[escalation] armed session=%s fire_in=%s", sessionID, s.delay)
}

func (s *Scheduler) fire(p *pendingEscalation) {
	s.mu.Lock()
	if p.fired || s.pending[p.sessionID] != p {
		// superseded by a re-arm
		s.mu.Unlock()
		return
	}
	p.fired = true
	delete(s.pending, p.sessionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	handled, err := s.condition(ctx, p.tenantID, p.sessionID, p.armedAt)
	if err != nil {
		log.Printf("[escalation] condition check error session=%s: %v", p.sessionID, err)
		return
	}
	if handled {
		log.Printf("[escalation] suppressed session=%s, operator already replied", p.sessionID)
		return
	}

	log.Printf("[escalation] firing session=%s", p.sessionID)
	if err := s.notify(ctx, p.tenantID, p.sessionID); err != nil {
		log.Printf("[escalation] notify error session=%s: %v", p.sessionID, err)
	}
}
