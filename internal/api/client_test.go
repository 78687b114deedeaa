package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/dto"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := zerolog.Nop()
	c, err := NewClient(Config{BaseURL: srv.URL}, &log)
	require.NoError(t, err)
	return c, srv
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorEnvelope{
		Status: "error",
		Error:  &dto.Error{Code: code, Desc: desc},
	})
}

func TestLoginSuccess(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var req dto.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "asha@example.com", req.Email)

		_ = json.NewEncoder(w).Encode(dto.AuthResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			User:         dto.UserPayload{Name: "Asha", Email: req.Email},
		})
	}))

	resp, err := c.Login(context.Background(), "asha@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "Asha", resp.User.Name)
}

func TestLoginBadCredentials(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Login(context.Background(), "asha@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestLoginRejectsMalformedInputLocally(t *testing.T) {
	called := false
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.Login(context.Background(), "not-an-email", "password123")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.False(t, called, "invalid input must not reach the backend")
}

func TestUnauthorizedFiresHookOnAuthenticatedCall(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	c.SetTokenSource(func() string { return "stale-token" })

	fired := false
	c.SetUnauthorizedHook(func() { fired = true })

	_, err := c.Profile(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, fired)
}

func TestBearerTokenAttached(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(dto.UserPayload{Name: "Asha", Email: "a@b.co"})
	}))
	c.SetTokenSource(func() string { return "tok-1" })

	_, err := c.Profile(context.Background())
	require.NoError(t, err)
}

func TestRegisterConflictMapped(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, dto.CodeRegistrationDuplicate, "already registered")
	}))
	c.SetTokenSource(func() string { return "tok" })

	_, err := c.RegisterForEvent(context.Background(), "ev-1")
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestCapacityAndPublishErrorsMapped(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"full", dto.CodeEventFull, ErrCapacityExceeded},
		{"unpublished", dto.CodeEventNotPublished, ErrEventNotPublished},
		{"missing", dto.CodeEventNotFound, ErrEventNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusBadRequest, tc.code, tc.name)
			}))
			c.SetTokenSource(func() string { return "tok" })

			_, err := c.RegisterForEvent(context.Background(), "ev-1")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInitiatePaymentCarriesIdempotencyKey(t *testing.T) {
	var gotKey string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewEncoder(w).Encode(dto.InitiatePaymentResponse{
			PaymentURL: "https://pay.example.com/p/1",
			AttendeeID: "a1",
		})
	}))
	c.SetTokenSource(func() string { return "tok" })

	resp, err := c.InitiatePayment(context.Background(), dto.InitiatePaymentRequest{
		EventID:  "ev-1",
		Amount:   1000,
		Currency: "NPR",
		Quantity: 2,
	}, "key-123")
	require.NoError(t, err)
	assert.Equal(t, "key-123", gotKey)
	assert.Equal(t, "a1", resp.AttendeeID)
}

func TestInitiatePaymentRejectsInvalidRequest(t *testing.T) {
	called := false
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.InitiatePayment(context.Background(), dto.InitiatePaymentRequest{
		EventID:  "ev-1",
		Amount:   0,
		Currency: "NPR",
		Quantity: 1,
	}, "key")
	assert.ErrorIs(t, err, ErrPaymentInitiation)
	assert.False(t, called, "invalid request must not reach the backend")
}

func TestPaymentStatusDecoded(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/status/a1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(dto.PaymentStatusResponse{Status: dto.PaymentCompleted})
	}))
	c.SetTokenSource(func() string { return "tok" })

	resp, err := c.PaymentStatus(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, dto.PaymentCompleted, resp.Status)
}

func TestInvalidResponseRejectedAtBoundary(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing required access_token.
		_, _ = w.Write([]byte(`{"refresh_token":"r","user":{"name":"A","email":"a@b.co"}}`))
	}))

	_, err := c.Login(context.Background(), "asha@example.com", "password123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid response")
}
