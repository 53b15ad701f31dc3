package studyauth

import "sync"

// Listener receives authentication state change notifications. Callbacks run
// synchronously on the goroutine performing the transition, in registration
// order, after local state has been updated.
type Listener interface {
	SignedIn(email string)
	SignedOut(email string)
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil fields
// are skipped.
type ListenerFuncs struct {
	OnSignedIn  func(email string)
	OnSignedOut func(email string)
}

func (l *ListenerFuncs) SignedIn(email string) {
	if l.OnSignedIn != nil {
		l.OnSignedIn(email)
	}
}

func (l *ListenerFuncs) SignedOut(email string) {
	if l.OnSignedOut != nil {
		l.OnSignedOut(email)
	}
}

// listenerRegistry holds registered listeners. Notification iterates over a
// snapshot so listeners may register or remove listeners from within a
// callback without corrupting the iteration.
type listenerRegistry struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (r *listenerRegistry) add(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *listenerRegistry) remove(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, registered := range r.listeners {
		if registered == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *listenerRegistry) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]Listener, len(r.listeners))
	copy(snapshot, r.listeners)
	return snapshot
}

func (r *listenerRegistry) notifySignedIn(email string) {
	for _, l := range r.snapshot() {
		l.SignedIn(email)
	}
}

func (r *listenerRegistry) notifySignedOut(email string) {
	for _, l := range r.snapshot() {
		l.SignedOut(email)
	}
}
