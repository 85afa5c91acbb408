package device

import (
	"sync"
	"sync/atomic"
)

// Arbiter owns the State and the shared ADC and hands them out under a lock.
//
// The command path is the high-priority context: Foreground always gets the lock, and
// while one or more foreground callers are waiting the background context is shut out.
// The background context only ever tries; it never queues behind the command path.
type Arbiter struct {
	mu      sync.Mutex
	pending atomic.Int32
	state   State
	res     Resources
}

// NewArbiter returns an arbiter holding the default state and adc.
func NewArbiter(adc ADC) *Arbiter {
	a := &Arbiter{state: DefaultState()}
	a.res = Resources{State: &a.state, ADC: adc}
	return a
}

// Foreground runs fn with exclusive access to the shared resources. fn must not retain
// the Resources pointer after it returns.
func (a *Arbiter) Foreground(fn func(r *Resources)) {
	a.pending.Add(1)
	a.mu.Lock()
	a.pending.Add(-1)
	defer a.mu.Unlock()
	fn(&a.res)
}

// TryBackground runs fn if the resources are free and no foreground caller is waiting
// for them. It reports whether fn ran.
func (a *Arbiter) TryBackground(fn func(r *Resources)) bool {
	if a.pending.Load() > 0 {
		return false
	}
	if !a.mu.TryLock() {
		return false
	}
	defer a.mu.Unlock()
	if a.pending.Load() > 0 {
		return false
	}
	fn(&a.res)
	return true
}

// Snapshot returns a copy of the state.
func (a *Arbiter) Snapshot() State {
	var s State
	a.Foreground(func(r *Resources) { s = *r.State })
	return s
}
