package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"gatherly/internal/api"
	"gatherly/internal/model"
	"gatherly/internal/session"
	"gatherly/internal/store"
)

var (
	ErrNotSignedIn    = errors.New("not signed in")
	errRecordNotFound = errors.New("registration record not found")
)

// PaymentRequired signals that the registration cannot proceed directly
// and must go through the payment flow first.
type PaymentRequired struct {
	EventID   string
	Quantity  int
	UnitPrice int64
	Currency  string
	Amount    int64
}

// Outcome is the result of a register call: exactly one of Record or
// Payment is set.
type Outcome struct {
	Record  *model.RegistrationRecord
	Payment *PaymentRequired
}

// Gate decides whether a registration goes straight to the backend or
// through payment. The free/paid decision is made on the server-fetched
// price alone.
type Gate struct {
	api  *api.Client
	sess *session.Store
	log  *zerolog.Logger

	mu    sync.Mutex
	cache map[string]model.RegistrationRecord
	disk  *store.Store
}

func NewGate(client *api.Client, sess *session.Store, disk *store.Store, log *zerolog.Logger) *Gate {
	g := &Gate{
		api:   client,
		sess:  sess,
		log:   log,
		disk:  disk,
		cache: make(map[string]model.RegistrationRecord),
	}
	var cached []model.RegistrationRecord
	if err := disk.Get(store.KeyRegistrations, &cached); err == nil {
		for _, rec := range cached {
			g.cache[rec.EventID] = rec
		}
	}
	return g
}

// Register is idempotent from the caller's perspective: a second call
// for an event the user already holds a place at returns the existing
// record. The cache lookup is best effort; server-side uniqueness is
// still the authority, so a conflict answer is resolved by refetching.
func (g *Gate) Register(ctx context.Context, eventID string, quantity int, price model.PriceInfo) (*Outcome, error) {
	if !g.sess.Current().Authenticated() {
		return nil, ErrNotSignedIn
	}
	if quantity < 1 {
		quantity = 1
	}

	if rec, ok := g.lookup(eventID); ok && rec.Active() {
		g.log.Debug().Str("event_id", eventID).Msg("already registered, returning cached record")
		return &Outcome{Record: &rec}, nil
	}

	if !price.Free() {
		return &Outcome{Payment: &PaymentRequired{
			EventID:   eventID,
			Quantity:  quantity,
			UnitPrice: price.Price,
			Currency:  price.Currency,
			Amount:    price.Price * int64(quantity),
		}}, nil
	}

	payload, err := g.api.RegisterForEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, api.ErrRegistrationConflict) {
			// Lost a race with an identical request; fetch the record
			// the winner created.
			if rec, ferr := g.refetch(ctx, eventID); ferr == nil {
				return &Outcome{Record: rec}, nil
			}
			return nil, err
		}
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	rec := payload.ToModel()
	g.remember(rec)
	g.log.Info().Str("event_id", eventID).Str("status", string(rec.Status)).Msg("registered for event")
	return &Outcome{Record: &rec}, nil
}

func (g *Gate) Unregister(ctx context.Context, eventID string) error {
	if !g.sess.Current().Authenticated() {
		return ErrNotSignedIn
	}
	if err := g.api.UnregisterFromEvent(ctx, eventID); err != nil {
		return fmt.Errorf("unregister failed: %w", err)
	}
	g.forget(eventID)
	g.log.Info().Str("event_id", eventID).Msg("unregistered from event")
	return nil
}

// IsRegistered answers from the local cache only.
func (g *Gate) IsRegistered(eventID string) bool {
	rec, ok := g.lookup(eventID)
	return ok && rec.Active()
}

// Invalidate drops the cached view of one event and refetches the
// user's registrations. The payment watcher calls this after a
// completed payment, before the user is shown a success screen.
func (g *Gate) Invalidate(ctx context.Context, eventID string) {
	g.forget(eventID)
	if _, err := g.refetch(ctx, eventID); err != nil {
		g.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to refresh registration state")
	}
}

func (g *Gate) refetch(ctx context.Context, eventID string) (*model.RegistrationRecord, error) {
	payloads, err := g.api.UserRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	var found *model.RegistrationRecord
	for _, p := range payloads {
		rec := p.ToModel()
		g.remember(rec)
		if rec.EventID == eventID {
			found = &rec
		}
	}
	if found == nil {
		return nil, errRecordNotFound
	}
	return found, nil
}

func (g *Gate) lookup(eventID string) (model.RegistrationRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.cache[eventID]
	return rec, ok
}

func (g *Gate) remember(rec model.RegistrationRecord) {
	g.mu.Lock()
	g.cache[rec.EventID] = rec
	g.persistLocked()
	g.mu.Unlock()
}

func (g *Gate) forget(eventID string) {
	g.mu.Lock()
	delete(g.cache, eventID)
	g.persistLocked()
	g.mu.Unlock()
}

func (g *Gate) persistLocked() {
	records := make([]model.RegistrationRecord, 0, len(g.cache))
	for _, rec := range g.cache {
		records = append(records, rec)
	}
	if err := g.disk.Set(store.KeyRegistrations, records); err != nil {
		g.log.Warn().Err(err).Msg("failed to persist registration cache")
	}
}
