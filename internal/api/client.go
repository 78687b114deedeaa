package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/retry"

	"gatherly/internal/dto"
	"gatherly/pkg/validator"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the typed boundary to the backend. Responses are decoded
// into explicit DTOs and validated before any domain entity is built
// from them. Any 401 on an authenticated call fires the unauthorized
// hook exactly once per call and surfaces ErrSessionExpired, so expiry
// handling lives here instead of at every call site.
type Client struct {
	baseURL      string
	http         *http.Client
	log          *zerolog.Logger
	token        func() string
	unauthorized func()
	retry        retry.Strategy
}

func NewClient(cfg Config, log *zerolog.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
		retry:   retry.Strategy{Attempts: 3, Delay: 500 * time.Millisecond, Backoff: 2},
	}, nil
}

// SetTokenSource installs the access-token provider. An empty string
// means requests go out unauthenticated.
func (c *Client) SetTokenSource(fn func() string) { c.token = fn }

// SetUnauthorizedHook installs the callback fired when the backend
// rejects the current token.
func (c *Client) SetUnauthorizedHook(fn func()) { c.unauthorized = fn }

func (c *Client) Login(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	req := dto.LoginRequest{Email: email, Password: password}
	if err := validator.Validate(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, req dto.SignUpRequest) (*dto.AuthResponse, error) {
	if err := validator.Validate(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Profile(ctx context.Context) (*dto.UserPayload, error) {
	var out dto.UserPayload
	if err := c.get(ctx, "/api/users/profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserRegistrations returns the caller's registration records across
// all events.
func (c *Client) UserRegistrations(ctx context.Context) ([]dto.RegistrationPayload, error) {
	var out []dto.RegistrationPayload
	if err := c.get(ctx, "/api/users/events", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Event(ctx context.Context, eventID string) (*dto.EventPayload, error) {
	var out dto.EventPayload
	if err := c.get(ctx, "/api/events/"+url.PathEscape(eventID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegisterForEvent(ctx context.Context, eventID string) (*dto.RegistrationPayload, error) {
	var out dto.RegistrationPayload
	if err := c.do(ctx, http.MethodPost, "/api/events/"+url.PathEscape(eventID)+"/register", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnregisterFromEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(eventID)+"/register", nil, nil)
}

// InitiatePayment creates a payment intent. The idempotency key guards
// against a duplicated request on the wire, not against a second
// user-initiated checkout.
func (c *Client) InitiatePayment(ctx context.Context, req dto.InitiatePaymentRequest, idempotencyKey string) (*dto.InitiatePaymentResponse, error) {
	if err := validator.Validate(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	var out dto.InitiatePaymentResponse
	err := c.doWithHeaders(ctx, http.MethodPost, "/api/payments/initiate", req, &out,
		map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	return &out, nil
}

func (c *Client) PaymentStatus(ctx context.Context, attendeeID string) (*dto.PaymentStatusResponse, error) {
	var out dto.PaymentStatusResponse
	if err := c.get(ctx, "/api/payments/status/"+url.PathEscape(attendeeID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get wraps idempotent reads in the retry strategy. Only transport
// failures are retried; an HTTP-level answer, even an error one, is
// already authoritative.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var apiErr error
	err := retry.Do(func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		var te *transportError
		if errors.As(err, &te) {
			return err
		}
		apiErr = err
		return nil
	}, c.retry)
	if err != nil {
		return err
	}
	return apiErr
}

type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWithHeaders(ctx, method, path, body, out, nil)
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	authed := false
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
			authed = true
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request transport failure")
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("backend request")

	if resp.StatusCode == http.StatusUnauthorized {
		if authed {
			if c.unauthorized != nil {
				c.unauthorized()
			}
			return ErrSessionExpired
		}
		return ErrAuthFailed
	}

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := validator.Validate(ctx, out); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

func (c *Client) mapError(resp *http.Response) error {
	var envelope dto.ErrorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &envelope)

	code := ""
	desc := resp.Status
	if envelope.Error != nil {
		code = envelope.Error.Code
		desc = envelope.Error.Desc
	}

	switch code {
	case dto.CodeInvalidCredentials:
		return ErrAuthFailed
	case dto.CodeEventNotFound:
		return ErrEventNotFound
	case dto.CodeEventNotPublished:
		return ErrEventNotPublished
	case dto.CodeEventFull:
		return ErrCapacityExceeded
	case dto.CodeRegistrationDuplicate:
		return ErrRegistrationConflict
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrEventNotFound
	}
	if resp.StatusCode == http.StatusConflict {
		return ErrRegistrationConflict
	}
	return fmt.Errorf("backend returned %d: %s", resp.StatusCode, desc)
}
