package main

import (
	"sync"

	"github.com/rs/zerolog"

	"gatherly/internal/nav"
)

// terminalRouter is the CLI stand-in for a screen router: the "route
// space" is just which command set is visible. It starts not ready so
// the guard cannot navigate before initialization finished.
type terminalRouter struct {
	mu      sync.Mutex
	ready   bool
	current nav.Space
	log     *zerolog.Logger
}

func newTerminalRouter(log *zerolog.Logger) *terminalRouter {
	return &terminalRouter{current: nav.SpaceUnauthenticated, log: log}
}

func (r *terminalRouter) markReady() {
	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
}

func (r *terminalRouter) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *terminalRouter) CurrentSpace() nav.Space {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *terminalRouter) NavigateTo(space nav.Space) {
	r.mu.Lock()
	r.current = space
	r.mu.Unlock()
	r.log.Info().Str("space", string(space)).Msg("navigated")
}
