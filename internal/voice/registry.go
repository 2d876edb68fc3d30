package voice

import (
	"errors"
	"sync"
)

// ErrAdmissionRejected is returned when a capture slot cannot be acquired.
// Callers drop the capture silently; the speaker is never queued.
var ErrAdmissionRejected = errors.New("capture admission rejected")

// ErrNotEnabled is returned when a capture is requested for a speaker that
// was never enabled via the registry.
var ErrNotEnabled = errors.New("speaker not enabled")

// Registry tracks which speakers are eligible for capture. Speakers are
// enabled explicitly and cleared in bulk when the voice session ends; there
// is no automatic expiry.
type Registry struct {
	mu       sync.Mutex
	eligible map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{eligible: make(map[string]struct{})}
}

// Enable marks the speaker as eligible for capture. Enabling an already
// enabled speaker is a no-op.
func (r *Registry) Enable(speakerID string) {
	r.mu.Lock()
	r.eligible[speakerID] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) IsEnabled(speakerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.eligible[speakerID]
	return ok
}

// ClearAll removes every eligible speaker. In-flight captures are not
// cancelled; they run to completion on their own.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.eligible = make(map[string]struct{})
	r.mu.Unlock()
}

// Gate limits how many captures may be in the Capturing stage at once.
// Admission is per speaker: a speaker never holds two slots, and the total
// number of held slots is bounded by max. A slot is released when the
// capture finishes, not when the downstream turn finishes, so the next
// capture can start while a turn is still being transcribed.
type Gate struct {
	mu     sync.Mutex
	active map[string]struct{}
	max    int
}

// NewGate creates a gate admitting at most max concurrent captures.
// max < 1 is treated as 1.
func NewGate(max int) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{active: make(map[string]struct{}), max: max}
}

// TryAcquire claims a capture slot for the speaker. It returns false without
// queueing when the speaker already has a capture in flight or the gate is
// full.
func (g *Gate) TryAcquire(speakerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.active[speakerID]; held {
		return false
	}
	if len(g.active) >= g.max {
		return false
	}
	g.active[speakerID] = struct{}{}
	return true
}

// Release frees the speaker's slot. Releasing a slot that is not held is a
// no-op.
func (g *Gate) Release(speakerID string) {
	g.mu.Lock()
	delete(g.active, speakerID)
	g.mu.Unlock()
}

// Active returns the number of held capture slots.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// Admit verifies the speaker is eligible and claims a capture slot. No
// session may ever be created for a speaker that is not enabled.
func Admit(reg *Registry, g *Gate, speakerID string) error {
	if !reg.IsEnabled(speakerID) {
		return ErrNotEnabled
	}
	if !g.TryAcquire(speakerID) {
		return ErrAdmissionRejected
	}
	return nil
}
