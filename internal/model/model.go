package model

import "time"

type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Session is the locally held proof of authentication. A session is either
// fully populated or fully empty: User != nil exactly when AccessToken != "".
type Session struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s Session) Authenticated() bool {
	return s.User != nil && s.AccessToken != ""
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"start_time"`
	Price       int64     `json:"price"`
	Currency    string    `json:"currency"`
	Published   bool      `json:"published"`
}

// PriceInfo carries the server-fetched price for an event. The price is
// the source of truth for the free/paid decision, never a cached flag.
type PriceInfo struct {
	Price    int64
	Currency string
}

func (p PriceInfo) Free() bool { return p.Price == 0 }

type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusWaitlist   RegistrationStatus = "WAITLIST"
)

type RegistrationRecord struct {
	EventID    string             `json:"event_id"`
	UserID     string             `json:"user_id"`
	Status     RegistrationStatus `json:"status"`
	TicketType string             `json:"ticket_type"`
}

func (r RegistrationRecord) Active() bool {
	return r.Status == StatusRegistered || r.Status == StatusWaitlist
}

type IntentStatus string

const (
	IntentInitiated IntentStatus = "INITIATED"
	IntentCompleted IntentStatus = "COMPLETED"
	IntentFailed    IntentStatus = "FAILED"
)

// PaymentIntent is a backend-tracked payment correlated by AttendeeID.
// Created by the initiator, its status is mutated only by the
// confirmation watcher, and it is discarded once resolved.
type PaymentIntent struct {
	AttendeeID  string       `json:"attendee_id"`
	EventID     string       `json:"event_id"`
	Amount      int64        `json:"amount"`
	Currency    string       `json:"currency"`
	Quantity    int          `json:"quantity"`
	RedirectURL string       `json:"redirect_url"`
	Status      IntentStatus `json:"status"`
}
