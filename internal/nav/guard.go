package nav

import (
	"sync"

	"github.com/rs/zerolog"

	"gatherly/internal/model"
	"gatherly/internal/session"
)

type Space string

const (
	SpaceUnauthenticated Space = "unauthenticated"
	SpaceAuthenticated   Space = "authenticated"
)

// Router is the navigation surface the guard steers. Ready reports
// whether a route tree exists to navigate on; navigating earlier than
// that is a no-op by contract.
type Router interface {
	Ready() bool
	CurrentSpace() Space
	NavigateTo(space Space)
}

// Guard keeps the visible route space in line with the session. It
// evaluates only after the session store finished initializing and the
// router reports ready, so a cold start never flickers through a wrong
// screen. It steers screens only, it never blocks an in-flight request.
type Guard struct {
	sess   *session.Store
	router Router
	log    *zerolog.Logger

	mu      sync.Mutex
	started bool
}

func New(sess *session.Store, router Router, log *zerolog.Logger) *Guard {
	return &Guard{sess: sess, router: router, log: log}
}

// Start subscribes to session changes and evaluates the current state
// once. Calling Start more than once is a no-op.
func (g *Guard) Start() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	g.sess.Subscribe(g.evaluate)
	g.evaluate(g.sess.Current())
}

// Evaluate re-runs the routing decision against the current session.
// Called by the router once it becomes ready.
func (g *Guard) Evaluate() {
	g.evaluate(g.sess.Current())
}

func (g *Guard) evaluate(s model.Session) {
	if g.sess.Status() != session.StatusReady {
		return
	}
	if !g.router.Ready() {
		return
	}

	current := g.router.CurrentSpace()
	switch {
	case !s.Authenticated() && current != SpaceUnauthenticated:
		g.log.Info().Str("from", string(current)).Msg("redirecting to unauthenticated space")
		g.router.NavigateTo(SpaceUnauthenticated)
	case s.Authenticated() && current == SpaceUnauthenticated:
		g.log.Info().Msg("redirecting to authenticated space")
		g.router.NavigateTo(SpaceAuthenticated)
	}
}
