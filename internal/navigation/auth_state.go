package navigation

import (
	"sync"

	"storefront/internal/domain"
)

// AuthState holds the identity-resolution status for one session and notifies
// observers on every change. Each auth event calls Begin, then Resolve with the
// ticket Begin returned; a Resolve for an older ticket is dropped.
type AuthState struct {
	mu      sync.Mutex
	state   State
	ticket  uint64
	subs    map[int]func(State)
	nextSub int
}

// NewAuthState starts in the pending status: nothing is known until the first
// session check resolves.
func NewAuthState() *AuthState {
	return &AuthState{
		state: State{Status: Pending},
		subs:  make(map[int]func(State)),
	}
}

// Current returns the state as of now.
func (a *AuthState) Current() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyState(a.state)
}

// Begin marks resolution pending for a new auth event and returns its ticket.
func (a *AuthState) Begin() uint64 {
	a.mu.Lock()
	a.ticket++
	t := a.ticket
	a.state = State{Status: Pending, Identity: a.state.Identity}
	a.unlockAndNotify()
	return t
}

// Resolve completes the auth event identified by ticket. It returns false when a
// newer event has started since, in which case the state is left untouched.
func (a *AuthState) Resolve(ticket uint64, id *domain.Identity) bool {
	a.mu.Lock()
	if ticket != a.ticket || a.state.Status == Resolved {
		a.mu.Unlock()
		return false
	}
	a.state = State{Status: Resolved}
	if id != nil {
		cp := *id
		a.state.Identity = &cp
	}
	a.unlockAndNotify()
	return true
}

// Set runs a full Begin/Resolve cycle for an identity already known.
func (a *AuthState) Set(id *domain.Identity) {
	a.Resolve(a.Begin(), id)
}

// Subscribe registers fn for every state change.
func (a *AuthState) Subscribe(fn func(State)) (cancel func()) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *AuthState) unlockAndNotify() {
	st := copyState(a.state)
	subs := make([]func(State), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func copyState(s State) State {
	if s.Identity == nil {
		return s
	}
	cp := *s.Identity
	return State{Status: s.Status, Identity: &cp}
}
