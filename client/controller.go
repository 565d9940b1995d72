package client

import (
	"context"
	"sync"
)

// State is the session lifecycle state.
type State int

const (
	// StateLoading holds until Start has completed the initial
	// authentication check.
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the session state. Notice carries an
// informational message for the next view (e.g. "confirm your email");
// Redirect names the view the application should navigate to, when any.
type Snapshot struct {
	State    State
	User     User
	Notice   string
	Redirect string
}

// sessionAPI is the narrow client surface the controller depends on, so
// tests can substitute a fake without network access.
type sessionAPI interface {
	IsAuthenticated() bool
	CurrentUser(ctx context.Context) (User, error)
	Login(ctx context.Context, email, password string) (User, error)
	Register(ctx context.Context, params RegisterParams) (RegisterResult, error)
	Logout(ctx context.Context) error
	ClearTokens() error
}

// SessionController drives the session lifecycle state machine. Transitions
// happen only through its named event methods; observers read the current
// Snapshot or subscribe to changes.
type SessionController struct {
	api sessionAPI

	mu       sync.Mutex
	snapshot Snapshot
	subs     map[int]func(Snapshot)
	nextSub  int
}

// NewSessionController starts in StateLoading.
func NewSessionController(api sessionAPI) *SessionController {
	return &SessionController{
		api:      api,
		snapshot: Snapshot{State: StateLoading},
		subs:     make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (c *SessionController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Subscribe registers a callback invoked on every state change with the new
// snapshot. The returned function cancels the subscription.
func (c *SessionController) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Start performs the initial authentication check. A stored valid token that
// resolves to a user lands in StateAuthenticated; anything else clears the
// stored tokens and lands in StateUnauthenticated.
func (c *SessionController) Start(ctx context.Context) {
	if !c.api.IsAuthenticated() {
		c.transition(Snapshot{State: StateUnauthenticated})
		return
	}

	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		_ = c.api.ClearTokens()
		c.transition(Snapshot{State: StateUnauthenticated})
		return
	}

	c.transition(Snapshot{State: StateAuthenticated, User: user})
}

// Login authenticates and, on success, moves to StateAuthenticated with a
// redirect to the landing view.
func (c *SessionController) Login(ctx context.Context, email, password string) error {
	user, err := c.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	c.transition(Snapshot{State: StateAuthenticated, User: user, Redirect: "/"})
	return nil
}

// Register creates an account. With an immediate session the controller
// authenticates and redirects home; without one it stays unauthenticated and
// redirects to the login view with a notice.
func (c *SessionController) Register(ctx context.Context, params RegisterParams) error {
	result, err := c.api.Register(ctx, params)
	if err != nil {
		return err
	}

	if result.SessionIssued {
		c.transition(Snapshot{State: StateAuthenticated, User: result.User, Redirect: "/"})
		return nil
	}

	c.transition(Snapshot{
		State:    StateUnauthenticated,
		Notice:   "Check your email to confirm your account, then log in.",
		Redirect: "/login",
	})
	return nil
}

// Logout invalidates the session. Local state moves to StateUnauthenticated
// regardless of whether the remote call succeeded.
func (c *SessionController) Logout(ctx context.Context) {
	_ = c.api.Logout(ctx)
	c.transition(Snapshot{State: StateUnauthenticated})
}

// SessionExpired reports a failed silent refresh surfaced by the API client.
func (c *SessionController) SessionExpired() {
	c.transition(Snapshot{State: StateUnauthenticated, Redirect: "/login"})
}

func (c *SessionController) transition(next Snapshot) {
	c.mu.Lock()
	c.snapshot = next
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// GateDecision tells a protected view what to do for a given snapshot.
type GateDecision int

const (
	// GateWait renders a placeholder while the initial check is running.
	GateWait GateDecision = iota
	// GateRedirect sends the viewer to the login view.
	GateRedirect
	// GateRender shows the protected content.
	GateRender
)

// Gate evaluates a snapshot for a protected view. Callers re-evaluate on
// every snapshot change, typically from a Subscribe callback.
func Gate(snapshot Snapshot) GateDecision {
	switch snapshot.State {
	case StateLoading:
		return GateWait
	case StateAuthenticated:
		return GateRender
	default:
		return GateRedirect
	}
}
