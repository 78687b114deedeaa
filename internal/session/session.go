package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"gatherly/internal/api"
	"gatherly/internal/dto"
	"gatherly/internal/model"
	"gatherly/internal/store"
)

type Status int

const (
	StatusLoading Status = iota
	StatusReady
)

// Store owns the authentication state. It is the only writer of the
// session, both in memory and in the persisted store, and it notifies
// subscribers on every mutation so the navigation guard can react.
type Store struct {
	persisted *store.Store
	api       *api.Client
	log       *zerolog.Logger

	mu      sync.RWMutex
	current model.Session
	status  Status
	subs    []func(model.Session)
}

func New(persisted *store.Store, client *api.Client, log *zerolog.Logger) *Store {
	s := &Store{
		persisted: persisted,
		api:       client,
		log:       log,
		status:    StatusLoading,
	}
	client.SetTokenSource(func() string { return s.Current().AccessToken })
	client.SetUnauthorizedHook(s.Expire)
	return s
}

// Initialize restores the persisted session. It must run before the
// navigation guard's first evaluation; until it returns, Status reports
// StatusLoading. A persisted token that is already expired is discarded
// rather than restored.
func (s *Store) Initialize(ctx context.Context) error {
	defer s.setReady()

	var sess model.Session
	var user model.User

	errToken := s.persisted.Get(store.KeyAccessToken, &sess.AccessToken)
	errUser := s.persisted.Get(store.KeyUser, &user)
	if errors.Is(errToken, store.ErrNotFound) && errors.Is(errUser, store.ErrNotFound) {
		return nil
	}
	if errToken != nil || errUser != nil {
		// Half a session on disk violates the no-partial-session rule,
		// and an unreadable one is treated the same way.
		s.log.Warn().AnErr("token_err", errToken).AnErr("user_err", errUser).
			Msg("discarding unusable persisted session")
		_ = s.clearPersisted()
		return nil
	}
	_ = s.persisted.Get(store.KeyRefreshToken, &sess.RefreshToken)
	sess.User = &user

	if !sess.Authenticated() {
		s.log.Warn().Msg("partial persisted session discarded")
		_ = s.clearPersisted()
		return nil
	}

	if tokenExpired(sess.AccessToken) {
		s.log.Info().Msg("persisted access token expired, starting signed out")
		_ = s.clearPersisted()
		return nil
	}

	s.setSession(sess)
	s.log.Info().Str("email", user.Email).Msg("session restored")
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		// The prior session, if any, stays untouched on failure.
		return fmt.Errorf("sign in failed: %w", err)
	}
	return s.adopt(resp)
}

func (s *Store) SignUp(ctx context.Context, req dto.SignUpRequest) error {
	resp, err := s.api.SignUp(ctx, req)
	if err != nil {
		return fmt.Errorf("sign up failed: %w", err)
	}
	return s.adopt(resp)
}

// adopt persists the authenticated session first, then publishes it in
// memory. Persisting first means a crash between the two steps leaves a
// restorable session rather than a phantom one.
func (s *Store) adopt(resp *dto.AuthResponse) error {
	user := resp.User.ToModel()
	err := s.persisted.SetAll(map[string]any{
		store.KeyAccessToken:  resp.AccessToken,
		store.KeyRefreshToken: resp.RefreshToken,
		store.KeyUser:         user,
	})
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.setSession(model.Session{
		User:         user,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	})
	s.log.Info().Str("email", user.Email).Msg("signed in")
	return nil
}

// SignOut clears the session unconditionally. The remote invalidation
// call is best effort; a failing backend must never leave the user
// stuck signed in.
func (s *Store) SignOut(ctx context.Context) {
	if s.Current().Authenticated() {
		if err := s.api.Logout(ctx); err != nil {
			s.log.Warn().Err(err).Msg("remote token invalidation failed, clearing local session anyway")
		}
	}
	if err := s.clearPersisted(); err != nil {
		s.log.Error().Err(err).Msg("failed to clear persisted session")
	}
	s.setSession(model.Session{})
	s.log.Info().Msg("signed out")
}

// Expire is the unauthorized hook: the backend rejected our token, so
// the session is gone whether the user asked for it or not. No remote
// call is made, the token is already dead.
func (s *Store) Expire() {
	if !s.Current().Authenticated() {
		return
	}
	if err := s.clearPersisted(); err != nil {
		s.log.Error().Err(err).Msg("failed to clear persisted session on expiry")
	}
	s.setSession(model.Session{})
	s.log.Info().Msg("session expired, signed out")
}

func (s *Store) Current() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe registers a callback invoked on every session mutation.
// Callbacks run outside the store's lock.
func (s *Store) Subscribe(fn func(model.Session)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) setSession(sess model.Session) {
	s.mu.Lock()
	s.current = sess
	subs := make([]func(model.Session), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(sess)
	}
}

func (s *Store) setReady() {
	s.mu.Lock()
	s.status = StatusReady
	s.mu.Unlock()
}

func (s *Store) clearPersisted() error {
	return s.persisted.Delete(store.KeyAccessToken, store.KeyRefreshToken, store.KeyUser)
}

// tokenExpired does an unverified parse of the JWT exp claim. This is a
// client-side freshness check only; the backend remains the authority
// on token validity.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque tokens are not inspectable; let the backend decide.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
