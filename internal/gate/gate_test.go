package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnotes/notes-admin/internal/authbus"
	"github.com/campusnotes/notes-admin/internal/backend"
	"github.com/campusnotes/notes-admin/internal/credential"
	"github.com/campusnotes/notes-admin/internal/metrics"
	"github.com/campusnotes/notes-admin/internal/pubsub"
	"github.com/campusnotes/notes-admin/internal/resolver"
)

const waitFor = 2 * time.Second

// call is one pending resolution the test answers explicitly
type call struct {
	browserID string
	reply     chan resolver.Verdict
}

type scriptedResolver struct {
	calls chan *call
}

func newScriptedResolver() *scriptedResolver {
	return &scriptedResolver{calls: make(chan *call, 16)}
}

func (s *scriptedResolver) Resolve(ctx context.Context, browserID string) resolver.Verdict {
	c := &call{browserID: browserID, reply: make(chan resolver.Verdict, 1)}
	s.calls <- c
	select {
	case v := <-c.reply:
		return v
	case <-ctx.Done():
		return resolver.Unauthenticated
	}
}

func (s *scriptedResolver) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("expected a resolution to start")
		return nil
	}
}

func (s *scriptedResolver) idle(t *testing.T) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected resolution for %s", c.browserID)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeNotifier struct {
	topic *pubsub.Topic[backend.StateChange]
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{topic: pubsub.NewTopic[backend.StateChange]()}
}

func (f *fakeNotifier) OnAuthStateChange(browserID string, fn func(backend.StateChange)) func() {
	return f.topic.Subscribe(func(c backend.StateChange) {
		if c.BrowserID == browserID {
			fn(c)
		}
	})
}

type countingWatcher struct {
	*credential.MemoryCache
	active atomic.Int32
}

func (w *countingWatcher) Watch(browserID string, fn func()) func() {
	w.active.Add(1)
	unsub := w.MemoryCache.Watch(browserID, fn)
	return func() {
		w.active.Add(-1)
		unsub()
	}
}

type harness struct {
	deps     Deps
	cache    *countingWatcher
	bus      *authbus.Bus
	notifier *fakeNotifier
	metrics  *metrics.Metrics
}

func newHarness(r Resolver) *harness {
	h := &harness{
		cache:    &countingWatcher{MemoryCache: credential.NewMemory()},
		bus:      authbus.New(),
		notifier: newFakeNotifier(),
		metrics:  metrics.NewNop(),
	}
	h.deps = Deps{
		Resolver:       r,
		Credentials:    h.cache,
		Bus:            h.bus,
		Auth:           h.notifier,
		ResolveTimeout: 10 * time.Second,
		Log:            zerolog.Nop(),
		Metrics:        h.metrics,
	}
	return h
}

func await(t *testing.T, g *Gate) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	return g.Await(ctx)
}

func TestGate_MountResolves(t *testing.T) {
	r := newScriptedResolver()
	g := New("b1", newHarness(r).deps)
	defer g.Close()

	assert.Equal(t, Loading, g.State())
	g.Mount()

	c := r.next(t)
	assert.Equal(t, "b1", c.browserID)
	assert.Equal(t, Loading, g.State(), "nothing is rendered before the verdict")

	c.reply <- resolver.Authenticated
	assert.Equal(t, Authenticated, await(t, g))

	g.Mount()
	r.idle(t)
}

func TestGate_AppliesOnlyLatestResolution(t *testing.T) {
	r := newScriptedResolver()
	h := newHarness(r)
	g := New("b1", h.deps)
	defer g.Close()

	g.Mount()
	first := r.next(t)
	g.Trigger("test")
	second := r.next(t)

	second.reply <- resolver.Unauthenticated
	assert.Equal(t, Unauthenticated, await(t, g))

	first.reply <- resolver.Authenticated
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.StaleResolutions) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, Unauthenticated, g.State())
}

func TestGate_StaleResultNeverSettlesLoading(t *testing.T) {
	r := newScriptedResolver()
	h := newHarness(r)
	g := New("b1", h.deps)
	defer g.Close()

	g.Mount()
	first := r.next(t)
	g.Trigger("test")
	second := r.next(t)

	first.reply <- resolver.Authenticated
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.StaleResolutions) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, Loading, g.State())

	second.reply <- resolver.Unauthenticated
	assert.Equal(t, Unauthenticated, await(t, g))
}

func TestGate_TriggerReentersLoading(t *testing.T) {
	r := newScriptedResolver()
	g := New("b1", newHarness(r).deps)
	defer g.Close()

	g.Mount()
	r.next(t).reply <- resolver.Authenticated
	require.Equal(t, Authenticated, await(t, g))

	seen := make(chan State, 4)
	g.Watch(func(s State) { seen <- s })

	g.Trigger("test")
	assert.Equal(t, Loading, g.State())

	r.next(t).reply <- resolver.Unauthenticated
	assert.Equal(t, Unauthenticated, await(t, g))
	assert.Equal(t, Loading, <-seen)
	select {
	case s := <-seen:
		assert.Equal(t, Unauthenticated, s)
	case <-time.After(waitFor):
		t.Fatal("watcher did not see the applied verdict")
	}
}

// A verdict applied while the Loading delivery is still running must reach
// watchers after it, never before.
func TestGate_WatchDeliversInOrder(t *testing.T) {
	r := newScriptedResolver()
	g := New("b1", newHarness(r).deps)
	defer g.Close()

	g.Mount()
	r.next(t).reply <- resolver.Authenticated
	require.Equal(t, Authenticated, await(t, g))

	release := make(chan struct{})
	entered := make(chan State, 1)
	var (
		mu    sync.Mutex
		calls int
		seen  []State
	)
	g.Watch(func(s State) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			entered <- s
			<-release
		}
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	go g.Trigger("test")
	select {
	case s := <-entered:
		require.Equal(t, Loading, s)
	case <-time.After(waitFor):
		t.Fatal("watcher did not see Loading")
	}
	r.next(t).reply <- resolver.Unauthenticated
	require.Eventually(t, func() bool { return g.State() == Unauthenticated }, waitFor, 5*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Loading, Unauthenticated}, seen)
}

func TestGate_ExternalSignalsTriggerResolution(t *testing.T) {
	ctx := context.Background()
	r := newScriptedResolver()
	h := newHarness(r)
	g := New("b1", h.deps)
	defer g.Close()

	g.Mount()
	r.next(t).reply <- resolver.Unauthenticated
	require.Equal(t, Unauthenticated, await(t, g))

	signals := map[string]func(){
		"credential": func() {
			require.NoError(t, h.cache.Store(ctx, "b1", credential.Credential{Authenticated: true, Email: "a@uni.edu"}))
		},
		"bus": func() {
			h.bus.Publish(authbus.Event{BrowserID: "b1", Reason: authbus.ReasonLogin})
		},
		"backend": func() {
			h.notifier.topic.Publish(backend.StateChange{BrowserID: "b1", Event: backend.EventTokenRefreshed})
		},
	}
	for name, fire := range signals {
		t.Run(name, func(t *testing.T) {
			fire()
			r.next(t).reply <- resolver.Authenticated
			assert.Equal(t, Authenticated, await(t, g))

			// signals for other browsers are ignored
			require.NoError(t, h.cache.Store(ctx, "b2", credential.Credential{}))
			h.bus.Publish(authbus.Event{BrowserID: "b2", Reason: authbus.ReasonLogout})
			h.notifier.topic.Publish(backend.StateChange{BrowserID: "b2", Event: backend.EventSignedOut})
			r.idle(t)
		})
	}
}

func TestGate_CloseDeregistersListeners(t *testing.T) {
	ctx := context.Background()
	r := newScriptedResolver()
	h := newHarness(r)
	g := New("b1", h.deps)

	g.Mount()
	assert.Equal(t, int32(1), h.cache.active.Load())
	assert.Equal(t, 1, h.bus.Subscribers())
	assert.Equal(t, 1, h.notifier.topic.Len())

	pending := r.next(t)
	g.Close()
	g.Close()

	select {
	case <-g.Done():
	default:
		t.Fatal("Done not closed")
	}

	assert.Equal(t, int32(0), h.cache.active.Load())
	assert.Equal(t, 0, h.bus.Subscribers())
	assert.Equal(t, 0, h.notifier.topic.Len())

	// a result arriving after close is dropped and nothing new starts
	pending.reply <- resolver.Authenticated
	require.NoError(t, h.cache.Store(ctx, "b1", credential.Credential{}))
	g.Trigger("test")
	r.idle(t)
	assert.NotEqual(t, Authenticated, g.State())
}

func TestGate_AwaitHonoursContext(t *testing.T) {
	r := newScriptedResolver()
	g := New("b1", newHarness(r).deps)
	defer g.Close()

	g.Mount()
	r.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, Loading, g.Await(ctx))
}

type fakeBackend struct{ principal *backend.Principal }

func (f *fakeBackend) CurrentUser(context.Context, string) (*backend.Principal, error) {
	return f.principal, nil
}

type staticProfiles map[string]string

func (p staticProfiles) Role(_ context.Context, id string) (string, error) {
	return p[id], nil
}

// Another tab clears the legacy flag: the gate flips to whatever the
// resolver now yields.
func TestGate_CrossTabLogoutFlipsVerdict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	res := resolver.New(h.cache, &fakeBackend{}, staticProfiles{}, "admin", zerolog.Nop(), h.metrics)
	h.deps.Resolver = res

	require.NoError(t, h.cache.Store(ctx, "b1", credential.Credential{Authenticated: true, Email: "a@uni.edu"}))

	g := New("b1", h.deps)
	defer g.Close()
	g.Mount()
	require.Equal(t, Authenticated, await(t, g))

	require.NoError(t, h.cache.Clear(ctx, "b1"))
	require.Eventually(t, func() bool {
		return g.State() == Unauthenticated
	}, waitFor, 5*time.Millisecond)
}

func TestGate_RoleCheckScenarios(t *testing.T) {
	tests := []struct {
		name      string
		principal *backend.Principal
		roles     staticProfiles
		want      State
	}{
		{name: "no principal", want: Unauthenticated},
		{name: "admin row", principal: &backend.Principal{ID: "u1"}, roles: staticProfiles{"u1": "admin"}, want: Authenticated},
		{name: "user row", principal: &backend.Principal{ID: "u2"}, roles: staticProfiles{"u2": "user"}, want: Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			h.deps.Resolver = resolver.New(h.cache, &fakeBackend{principal: tt.principal}, tt.roles, "admin", zerolog.Nop(), h.metrics)

			g := New("b1", h.deps)
			defer g.Close()
			g.Mount()
			assert.Equal(t, tt.want, await(t, g))
		})
	}
}
