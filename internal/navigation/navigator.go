package navigation

import "sync"

// maxRedirects bounds redirect chains; the built-in table needs at most one hop.
const maxRedirects = 4

// Navigator tracks the current location of one session and re-evaluates it
// whenever the auth state changes, publishing the new decision.
type Navigator struct {
	guard *Guard
	auth  *AuthState

	// pub serializes publication so subscribers see decisions in evaluation order.
	pub sync.Mutex

	mu      sync.Mutex
	path    string
	last    Decision
	subs    map[int]func(Decision)
	nextSub int
	stop    func()
}

// NewNavigator starts at the public home and follows auth changes until Close.
func NewNavigator(guard *Guard, auth *AuthState) *Navigator {
	n := &Navigator{
		guard: guard,
		auth:  auth,
		path:  guard.Paths().Home,
		subs:  make(map[int]func(Decision)),
	}
	n.last = n.guard.Evaluate(n.path, auth.Current())
	n.stop = auth.Subscribe(n.onAuthChange)
	return n
}

// Navigate records path as the requested location and returns the decision for it.
// Redirects move the current location to the redirect target.
func (n *Navigator) Navigate(path string) Decision {
	n.mu.Lock()
	d := n.settle(path, n.auth.Current())
	n.last = d
	n.mu.Unlock()
	return d
}

// Current returns the last published decision.
func (n *Navigator) Current() Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Location returns the path the session is currently on.
func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// Subscribe registers fn for decisions produced by auth changes.
func (n *Navigator) Subscribe(fn func(Decision)) (cancel func()) {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Close detaches the navigator from the auth state.
func (n *Navigator) Close() {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	n.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// onAuthChange re-reads the auth state instead of using the notified one, since
// notifications from concurrent auth events can arrive out of order.
func (n *Navigator) onAuthChange(State) {
	n.pub.Lock()
	defer n.pub.Unlock()
	n.mu.Lock()
	d := n.settle(n.path, n.auth.Current())
	n.last = d
	subs := make([]func(Decision), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()
	for _, fn := range subs {
		fn(d)
	}
}

// settle evaluates path and follows redirects. Must be called with mu held.
// The returned decision describes the first hop; n.path ends on the final target.
func (n *Navigator) settle(path string, st State) Decision {
	first := n.guard.Evaluate(path, st)
	n.path = path
	d := first
	for i := 0; d.Outcome == Redirect && i < maxRedirects; i++ {
		n.path = d.RedirectTo
		d = n.guard.Evaluate(n.path, st)
	}
	return first
}
