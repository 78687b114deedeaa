package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gatherly/internal/api"
	"gatherly/internal/dto"
	"gatherly/internal/model"
	"gatherly/internal/registration"
)

// Initiator asks the backend for a payment intent and hands back the
// hosted payment page URL plus the attendee id the watcher correlates
// on. One call means one intent: deduplicating a double tap is the
// caller's job, not the initiator's.
type Initiator struct {
	api *api.Client
	log *zerolog.Logger
}

func NewInitiator(client *api.Client, log *zerolog.Logger) *Initiator {
	return &Initiator{api: client, log: log}
}

func (i *Initiator) Initiate(ctx context.Context, req registration.PaymentRequired) (*model.PaymentIntent, error) {
	if req.Quantity < 1 || req.UnitPrice <= 0 {
		return nil, fmt.Errorf("%w: invalid quantity or price", api.ErrPaymentInitiation)
	}
	amount := req.UnitPrice * int64(req.Quantity)

	resp, err := i.api.InitiatePayment(ctx, dto.InitiatePaymentRequest{
		EventID:  req.EventID,
		Amount:   amount,
		Currency: req.Currency,
		Quantity: req.Quantity,
	}, uuid.New().String())
	if err != nil {
		i.log.Error().Err(err).Str("event_id", req.EventID).Msg("payment initiation failed")
		return nil, err
	}

	i.log.Info().
		Str("event_id", req.EventID).
		Int64("amount", amount).
		Str("attendee_id", resp.AttendeeID).
		Msg("payment intent created")

	return &model.PaymentIntent{
		AttendeeID:  resp.AttendeeID,
		EventID:     req.EventID,
		Amount:      amount,
		Currency:    req.Currency,
		Quantity:    req.Quantity,
		RedirectURL: resp.PaymentURL,
		Status:      model.IntentInitiated,
	}, nil
}
