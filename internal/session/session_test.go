package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/api"
	"gatherly/internal/dto"
	"gatherly/internal/model"
	"gatherly/internal/store"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type fixture struct {
	sess      *Store
	client    *api.Client
	persisted *store.Store
	backend   *httptest.Server
	handler   func(w http.ResponseWriter, r *http.Request)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.handler != nil {
			f.handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(f.backend.Close)

	log := zerolog.Nop()
	persisted, err := store.Open(filepath.Join(t.TempDir(), "state.json"), &log)
	require.NoError(t, err)
	f.persisted = persisted

	client, err := api.NewClient(api.Config{BaseURL: f.backend.URL}, &log)
	require.NoError(t, err)
	f.client = client

	f.sess = New(persisted, client, &log)
	return f
}

func (f *fixture) loginHandler(t *testing.T, token string) {
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			_ = json.NewEncoder(w).Encode(dto.AuthResponse{
				AccessToken:  token,
				RefreshToken: "refresh-1",
				User:         dto.UserPayload{Name: "Asha", Email: "asha@example.com"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestInitializeEmptyStoreIsSignedOut(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, StatusLoading, f.sess.Status())
	require.NoError(t, f.sess.Initialize(context.Background()))

	assert.Equal(t, StatusReady, f.sess.Status())
	assert.False(t, f.sess.Current().Authenticated())
}

func TestSignInEstablishesAndPersistsSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Initialize(context.Background()))
	f.loginHandler(t, signedToken(t, time.Hour))

	require.NoError(t, f.sess.SignIn(context.Background(), "asha@example.com", "password123"))

	current := f.sess.Current()
	require.True(t, current.Authenticated())
	assert.Equal(t, "Asha", current.User.Name)

	// Session must be restorable from disk.
	var tok string
	require.NoError(t, f.persisted.Get(store.KeyAccessToken, &tok))
	assert.Equal(t, current.AccessToken, tok)
}

func TestSignInFailureLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Initialize(context.Background()))
	f.loginHandler(t, signedToken(t, time.Hour))
	require.NoError(t, f.sess.SignIn(context.Background(), "asha@example.com", "password123"))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	err := f.sess.SignIn(context.Background(), "asha@example.com", "wrongpassword")
	require.Error(t, err)

	assert.True(t, f.sess.Current().Authenticated(), "prior session survives a failed sign-in")
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.persisted.SetAll(map[string]any{
		store.KeyAccessToken:  signedToken(t, time.Hour),
		store.KeyRefreshToken: "refresh-1",
		store.KeyUser:         model.User{Name: "Asha", Email: "asha@example.com"},
	}))

	require.NoError(t, f.sess.Initialize(context.Background()))

	current := f.sess.Current()
	require.True(t, current.Authenticated())
	assert.Equal(t, "asha@example.com", current.User.Email)
}

func TestInitializeDiscardsExpiredToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.persisted.SetAll(map[string]any{
		store.KeyAccessToken:  signedToken(t, -time.Hour),
		store.KeyRefreshToken: "refresh-1",
		store.KeyUser:         model.User{Name: "Asha", Email: "asha@example.com"},
	}))

	require.NoError(t, f.sess.Initialize(context.Background()))

	assert.False(t, f.sess.Current().Authenticated())
	var tok string
	assert.ErrorIs(t, f.persisted.Get(store.KeyAccessToken, &tok), store.ErrNotFound)
}

func TestInitializeDiscardsPartialSession(t *testing.T) {
	f := newFixture(t)
	// Token without a user record violates the no-partial-session rule.
	require.NoError(t, f.persisted.Set(store.KeyAccessToken, signedToken(t, time.Hour)))

	require.NoError(t, f.sess.Initialize(context.Background()))
	assert.False(t, f.sess.Current().Authenticated())
}

func TestSignOutClearsEvenWhenRemoteFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Initialize(context.Background()))
	f.loginHandler(t, signedToken(t, time.Hour))
	require.NoError(t, f.sess.SignIn(context.Background(), "asha@example.com", "password123"))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	f.sess.SignOut(context.Background())

	assert.False(t, f.sess.Current().Authenticated())
	var tok string
	assert.ErrorIs(t, f.persisted.Get(store.KeyAccessToken, &tok), store.ErrNotFound)
}

func TestBackendRejectionForcesSignOut(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Initialize(context.Background()))
	f.loginHandler(t, signedToken(t, time.Hour))
	require.NoError(t, f.sess.SignIn(context.Background(), "asha@example.com", "password123"))

	var observed []model.Session
	f.sess.Subscribe(func(s model.Session) { observed = append(observed, s) })

	// Background profile fetch hits a 401: no explicit sign-out, but
	// the session must be gone afterwards.
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	_, err := f.client.Profile(context.Background())
	assert.ErrorIs(t, err, api.ErrSessionExpired)

	assert.False(t, f.sess.Current().Authenticated())
	require.NotEmpty(t, observed)
	assert.False(t, observed[len(observed)-1].Authenticated())
}

func TestMutationsNotifySubscribers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Initialize(context.Background()))

	var notifications int
	f.sess.Subscribe(func(model.Session) { notifications++ })

	f.loginHandler(t, signedToken(t, time.Hour))
	require.NoError(t, f.sess.SignIn(context.Background(), "asha@example.com", "password123"))
	f.sess.SignOut(context.Background())

	assert.GreaterOrEqual(t, notifications, 2)
}
