package dto

import (
	"gatherly/internal/model"
)

// Backend error codes carried in the error envelope. Anything the client
// does not recognize is surfaced as a generic request failure.
const (
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeEventNotFound         = "EVENT_NOT_FOUND"
	CodeEventNotPublished     = "EVENT_NOT_PUBLISHED"
	CodeEventFull             = "EVENT_FULL"
	CodeRegistrationDuplicate = "REGISTRATION_DUPLICATE"
	CodePaymentFailed         = "PAYMENT_FAILED"
)

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

// ErrorEnvelope is the backend's error body shape.
type ErrorEnvelope struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone,omitempty"`
}

type UserPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// AuthResponse is returned by both login and account registration.
type AuthResponse struct {
	AccessToken  string      `json:"access_token" validate:"required"`
	RefreshToken string      `json:"refresh_token" validate:"required"`
	User         UserPayload `json:"user" validate:"required"`
}

type EventPayload struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	Price       int64  `json:"price" validate:"gte=0"`
	Currency    string `json:"currency" validate:"omitempty,currency"`
	Published   bool   `json:"published"`
}

type RegistrationPayload struct {
	EventID    string `json:"event_id" validate:"required"`
	UserID     string `json:"user_id" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=REGISTERED WAITLIST"`
	TicketType string `json:"ticket_type,omitempty"`
}

type InitiatePaymentRequest struct {
	EventID  string `json:"event_id" validate:"required"`
	Amount   int64  `json:"amount" validate:"gt=0"`
	Currency string `json:"currency" validate:"required,currency"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type InitiatePaymentResponse struct {
	PaymentURL string `json:"payment_url" validate:"required,url"`
	AttendeeID string `json:"attendeeId" validate:"required"`
}

const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

type PaymentStatusResponse struct {
	Status string `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED"`
}

func (u UserPayload) ToModel() *model.User {
	return &model.User{
		Name:     u.Name,
		Email:    u.Email,
		Username: u.Username,
		Phone:    u.Phone,
		Avatar:   u.Avatar,
	}
}

func (r RegistrationPayload) ToModel() model.RegistrationRecord {
	return model.RegistrationRecord{
		EventID:    r.EventID,
		UserID:     r.UserID,
		Status:     model.RegistrationStatus(r.Status),
		TicketType: r.TicketType,
	}
}

func (e EventPayload) ToModel() model.Event {
	return model.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Price:       e.Price,
		Currency:    e.Currency,
		Published:   e.Published,
	}
}
