package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gatherly/internal/api"
	"gatherly/internal/dto"
	"gatherly/internal/model"
)

type State string

const (
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateAbandoned State = "ABANDONED"
)

type Winner string

const (
	WinnerRedirect Winner = "redirect"
	WinnerPoll     Winner = "poll"
	WinnerNone     Winner = "none"
)

// Outcome is the single terminal result of a watch cycle.
type Outcome struct {
	State  State
	Winner Winner
}

var ErrNoAttendeeID = errors.New("payment intent has no attendee id")

const (
	successSegment = "payment/success"
	failureSegment = "payment/failure"
)

type candidate struct {
	state  State
	winner Winner
}

// Watcher resolves one payment intent to one terminal outcome. Two
// producers feed it: redirect callbacks from the hosted payment page
// and a fixed-interval status poll. Whichever reports a terminal state
// first wins; the loser is cancelled and any late signal is dropped.
// A watcher is single use, one per intent.
type Watcher struct {
	api      *api.Client
	log      *zerolog.Logger
	interval time.Duration
	maxWait  time.Duration

	redirects chan candidate
	abandon   chan struct{}

	mu          sync.Mutex
	resolved    bool
	abandonOnce sync.Once

	// onCompleted invalidates the cached registration view for the
	// event before the caller sees the outcome.
	onCompleted func(ctx context.Context, eventID string)
}

type Option func(*Watcher)

func WithInterval(d time.Duration) Option { return func(w *Watcher) { w.interval = d } }

// WithMaxWait bounds the whole watch cycle; hitting the bound resolves
// to ABANDONED so a forgotten payment page cannot poll forever.
func WithMaxWait(d time.Duration) Option { return func(w *Watcher) { w.maxWait = d } }

func WithCompletionHook(fn func(ctx context.Context, eventID string)) Option {
	return func(w *Watcher) { w.onCompleted = fn }
}

func NewWatcher(client *api.Client, log *zerolog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		api:       client,
		log:       log,
		interval:  3 * time.Second,
		maxWait:   10 * time.Minute,
		redirects: make(chan candidate, 1),
		abandon:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ReportRedirect feeds a navigation event from the hosted payment page
// into the race. URLs that match neither callback pattern are ignored,
// and anything arriving after resolution is a no-op.
func (w *Watcher) ReportRedirect(url string) {
	var cand candidate
	switch {
	case strings.Contains(url, successSegment):
		cand = candidate{state: StateCompleted, winner: WinnerRedirect}
	case strings.Contains(url, failureSegment):
		cand = candidate{state: StateFailed, winner: WinnerRedirect}
	default:
		return
	}

	w.mu.Lock()
	done := w.resolved
	w.mu.Unlock()
	if done {
		w.log.Debug().Str("url", url).Msg("late redirect signal ignored")
		return
	}

	select {
	case w.redirects <- cand:
	default:
		// A candidate is already queued; the first one wins anyway.
	}
}

// Abandon reports that the user backed out of the payment page before
// either channel resolved.
func (w *Watcher) Abandon() {
	w.abandonOnce.Do(func() { close(w.abandon) })
}

// Watch runs the confirmation race until a terminal outcome. It blocks
// the calling goroutine; cancel ctx to stop watching (which counts as
// abandonment, same as the owning screen unmounting).
func (w *Watcher) Watch(ctx context.Context, intent *model.PaymentIntent) (Outcome, error) {
	if intent == nil || intent.AttendeeID == "" {
		return Outcome{}, ErrNoAttendeeID
	}
	if w.isResolved() {
		return Outcome{}, fmt.Errorf("watcher already used for attendee %s", intent.AttendeeID)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(w.maxWait)
	defer deadline.Stop()

	w.log.Info().
		Str("attendee_id", intent.AttendeeID).
		Str("event_id", intent.EventID).
		Msg("watching payment confirmation")

	for {
		select {
		case <-ctx.Done():
			return w.resolve(ctx, intent, candidate{state: StateAbandoned, winner: WinnerNone}), nil
		case <-w.abandon:
			return w.resolve(ctx, intent, candidate{state: StateAbandoned, winner: WinnerNone}), nil
		case <-deadline.C:
			w.log.Warn().Str("attendee_id", intent.AttendeeID).Msg("payment watch timed out")
			return w.resolve(ctx, intent, candidate{state: StateAbandoned, winner: WinnerNone}), nil
		case cand := <-w.redirects:
			return w.resolve(ctx, intent, cand), nil
		case <-ticker.C:
			cand, ok := w.poll(ctx, intent.AttendeeID)
			if !ok {
				continue
			}
			return w.resolve(ctx, intent, cand), nil
		}
	}
}

// poll asks the backend for the payment status. A transient failure or
// a still-pending answer keeps the race running.
func (w *Watcher) poll(ctx context.Context, attendeeID string) (candidate, bool) {
	resp, err := w.api.PaymentStatus(ctx, attendeeID)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) || errors.Is(err, context.Canceled) {
			return candidate{}, false
		}
		w.log.Debug().Err(err).Str("attendee_id", attendeeID).Msg("poll tick failed, retrying next tick")
		return candidate{}, false
	}
	switch resp.Status {
	case dto.PaymentCompleted:
		return candidate{state: StateCompleted, winner: WinnerPoll}, true
	case dto.PaymentFailed:
		return candidate{state: StateFailed, winner: WinnerPoll}, true
	default:
		return candidate{}, false
	}
}

// resolve writes the single terminal outcome. Only the watch loop calls
// it, so the first candidate to reach a select arm is the one that
// transitions the intent; everything after is shut out by the resolved
// flag.
func (w *Watcher) resolve(ctx context.Context, intent *model.PaymentIntent, cand candidate) Outcome {
	w.mu.Lock()
	w.resolved = true
	w.mu.Unlock()

	switch cand.state {
	case StateCompleted:
		intent.Status = model.IntentCompleted
	case StateFailed:
		intent.Status = model.IntentFailed
	}

	w.log.Info().
		Str("attendee_id", intent.AttendeeID).
		Str("state", string(cand.state)).
		Str("winner", string(cand.winner)).
		Msg("payment confirmation resolved")

	if cand.state == StateCompleted && w.onCompleted != nil {
		w.onCompleted(ctx, intent.EventID)
	}
	return Outcome{State: cand.state, Winner: cand.winner}
}

func (w *Watcher) isResolved() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resolved
}
