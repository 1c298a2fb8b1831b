// Package gate keeps the live session verdict of each browser and decides
// what a request to the dashboard may render.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusnotes/notes-admin/internal/authbus"
	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/metrics"
	"github.com/campusnotes/notes-admin/internal/pubsub"
	"github.com/campusnotes/notes-admin/internal/resolver"
)

// State is what the gate currently allows
type State int

const (
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

func fromVerdict(v resolver.Verdict) State {
	if v == resolver.Authenticated {
		return Authenticated
	}
	return Unauthenticated
}

// Resolver computes a verdict for a browser
type Resolver interface {
	Resolve(ctx context.Context, browserID string) resolver.Verdict
}

// CredentialWatcher reports changes to a browser's legacy credential
type CredentialWatcher interface {
	Watch(browserID string, fn func()) (unsubscribe func())
}

// AuthNotifier pushes backend auth state changes
type AuthNotifier interface {
	OnAuthStateChange(browserID string, fn func(backend.StateChange)) (unsubscribe func())
}

// Deps are shared by every gate of a registry
type Deps struct {
	Resolver       Resolver
	Credentials    CredentialWatcher
	Bus            authbus.Subscriber
	Auth           AuthNotifier
	ResolveTimeout time.Duration
	Log            zerolog.Logger
	Metrics        *metrics.Metrics
}

// Gate is the verdict state machine of one browser:
// Loading -> {Authenticated, Unauthenticated}, re-entering Loading on every
// trigger. Only the most recently started resolution is applied.
type Gate struct {
	browserID string
	deps      Deps
	log       zerolog.Logger
	watchers  *pubsub.Topic[State]

	// notifyMu orders deliveries to watchers; it is never taken while
	// holding mu
	notifyMu  sync.Mutex
	published State

	mu          sync.Mutex
	state       State
	token       uint64
	settled     chan struct{} // closed when the current Loading period ends
	done        chan struct{}
	mounted     bool
	closed      bool
	unsubscribe []func()
}

// New creates an unmounted gate in the Loading state
func New(browserID string, deps Deps) *Gate {
	if deps.ResolveTimeout <= 0 {
		deps.ResolveTimeout = 5 * time.Second
	}
	return &Gate{
		browserID: browserID,
		deps:      deps,
		log:       deps.Log.With().Str("browser_id", browserID).Logger(),
		watchers:  pubsub.NewTopic[State](),
		state:     Loading,
		published: Loading,
		settled:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Mount registers the credential, auth bus and backend listeners and starts
// the first resolution. Mounting twice is a no-op.
func (g *Gate) Mount() {
	g.mu.Lock()
	if g.mounted || g.closed {
		g.mu.Unlock()
		return
	}
	g.mounted = true
	g.mu.Unlock()

	unsubs := []func(){
		g.deps.Credentials.Watch(g.browserID, func() {
			g.Trigger("credential_changed")
		}),
		g.deps.Bus.Subscribe(g.browserID, func(e authbus.Event) {
			g.Trigger("auth_changed:" + e.Reason)
		}),
		g.deps.Auth.OnAuthStateChange(g.browserID, func(c backend.StateChange) {
			g.Trigger("backend:" + string(c.Event))
		}),
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return
	}
	g.unsubscribe = unsubs
	g.mu.Unlock()

	g.Trigger("mount")
}

// Trigger enters Loading and starts a new resolution that supersedes any
// resolution still in flight.
func (g *Gate) Trigger(reason string) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.token++
	token := g.token
	entered := g.state != Loading
	if entered {
		g.state = Loading
		g.settled = make(chan struct{})
	}
	g.mu.Unlock()

	g.log.Debug().Str("reason", reason).Uint64("token", token).Msg("Resolution started")
	go g.run(token)
	if entered {
		g.notify()
	}
}

func (g *Gate) run(token uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), g.deps.ResolveTimeout)
	defer cancel()

	g.apply(token, g.deps.Resolver.Resolve(ctx, g.browserID))
}

func (g *Gate) apply(token uint64, verdict resolver.Verdict) {
	g.mu.Lock()
	if g.closed || token != g.token {
		latest := g.token
		g.mu.Unlock()
		g.deps.Metrics.StaleResolutions.Inc()
		g.log.Debug().Uint64("token", token).Uint64("latest", latest).Msg("Dropped stale resolution")
		return
	}
	state := fromVerdict(verdict)
	g.state = state
	close(g.settled)
	g.mu.Unlock()

	g.log.Debug().Str("state", state.String()).Uint64("token", token).Msg("Verdict applied")
	g.notify()
}

// notify delivers the state the gate is in now, not the one the caller saw,
// so a slow delivery cannot overtake a newer one. Repeats are skipped.
func (g *Gate) notify() {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	state := g.State()
	if state == g.published {
		return
	}
	g.published = state
	g.watchers.Publish(state)
}

// State returns the current state without waiting
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Await waits until the gate leaves Loading or ctx is done, then returns the
// current state. It can still return Loading.
func (g *Gate) Await(ctx context.Context) State {
	g.mu.Lock()
	state, settled := g.state, g.settled
	g.mu.Unlock()
	if state != Loading {
		return state
	}

	select {
	case <-settled:
	case <-ctx.Done():
	}
	return g.State()
}

// Watch calls fn with the states the gate enters, in order. A state that is
// left again before it could be delivered may be skipped. fn runs on the
// goroutine that changed the state and must not call Trigger.
func (g *Gate) Watch(fn func(State)) (unsubscribe func()) {
	return g.watchers.Subscribe(fn)
}

// Done is closed once the gate is closed
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

func (g *Gate) watched() bool {
	return g.watchers.Len() > 0
}

// Close deregisters every listener. Resolutions finishing afterwards are
// dropped and later triggers are ignored.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	unsubs := g.unsubscribe
	g.unsubscribe = nil
	if g.state == Loading {
		close(g.settled)
	}
	close(g.done)
	g.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	g.log.Debug().Msg("Gate closed")
}
