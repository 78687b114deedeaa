package api

import "errors"

var (
	// ErrAuthFailed means the backend rejected the credentials. The
	// caller keeps whatever session it already had.
	ErrAuthFailed = errors.New("invalid credentials")

	// ErrSessionExpired means the backend rejected the access token.
	// The unauthorized hook has already fired by the time a caller
	// sees this error.
	ErrSessionExpired = errors.New("session expired")

	ErrEventNotFound        = errors.New("event not found")
	ErrEventNotPublished    = errors.New("event is not published")
	ErrCapacityExceeded     = errors.New("event is full")
	ErrRegistrationConflict = errors.New("already registered for this event")
	ErrPaymentInitiation    = errors.New("failed to initiate payment")
)
