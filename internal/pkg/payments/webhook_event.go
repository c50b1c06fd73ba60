package payments

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CapturedEvent is the normalized form of a gateway "payment captured"
// notification.
type CapturedEvent struct {
	PaymentID string
	Email     string
	Amount    int64
	PlanType  string
}

// gatewayEvent mirrors the relevant slice of the gateway webhook JSON:
// an event type plus a nested payment entity carrying id, amount, the buyer
// email and free-form notes (which hold the purchased package).
type gatewayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
				Email  string `json:"email"`
				Notes  struct {
					PlanType string `json:"plan_type"`
					Email    string `json:"email"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const eventPaymentCaptured = "payment.captured"

// ParseCapturedEvent extracts the credit-relevant fields from a raw webhook
// body. Events other than payment.captured return (nil, nil): the caller
// acknowledges and ignores them.
func ParseCapturedEvent(raw []byte) (*CapturedEvent, error) {
	var evt gatewayEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("malformed gateway event: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(evt.Event)) != eventPaymentCaptured {
		return nil, nil
	}

	entity := evt.Payload.Payment.Entity
	email := strings.TrimSpace(entity.Email)
	if email == "" {
		// Checkout flows sometimes only carry the buyer email in notes.
		email = strings.TrimSpace(entity.Notes.Email)
	}

	if entity.ID == "" {
		return nil, fmt.Errorf("payment.captured event without payment id")
	}
	return &CapturedEvent{
		PaymentID: entity.ID,
		Email:     email,
		Amount:    entity.Amount,
		PlanType:  strings.TrimSpace(entity.Notes.PlanType),
	}, nil
}
