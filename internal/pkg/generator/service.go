package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/deckforge/DeckForge/internal/pkg/counter"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
)

// ErrEmptyDeck marks a provider response that carried no usable content.
var ErrEmptyDeck = errors.New("provider returned an empty deck")

// Outcome is the result of one gated generation attempt. When the
// entitlement check denies, Deck is nil and Decision carries the reason.
type Outcome struct {
	Decision   credits.Decision `json:"decision"`
	Deck       *Deck            `json:"deck,omitempty"`
	Charged    bool             `json:"charged"`
	NewBalance int64            `json:"new_balance"`
}

// Service gates the external provider behind the credit accountant. The
// ordering is the contract that makes billing honest: credits are deducted
// only after the provider responded successfully and the deck passed
// finalization, so a failed or cancelled provider call never spends
// anything, and a deck that cannot be delivered after the charge is
// compensated with a refund.
type Service struct {
	accountant *credits.Service
	provider   Provider
}

// NewService creates the generation orchestrator.
func NewService(accountant *credits.Service, provider Provider) *Service {
	return &Service{accountant: accountant, provider: provider}
}

// Generate runs one entitlement-gated generation.
func (s *Service) Generate(ctx context.Context, email, ip string, req Request) (*Outcome, error) {
	dec, err := s.accountant.CheckEntitlement(ctx, email, ip)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return &Outcome{Decision: dec}, nil
	}

	// The provider call happens with no credits spent yet. Cancellation or
	// failure here costs the user nothing.
	deck, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generation failed before any charge: %w", err)
	}

	cost := s.accountant.Config().GenerationCost
	applied, balance, err := s.accountant.Deduct(ctx, email, cost)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent request drained the balance between check and deduct.
		// The conditional deduct kept the balance non-negative; this attempt
		// reports the denial instead of delivering unpaid work.
		return &Outcome{
			Decision: credits.Decision{
				Reason:           credits.ReasonTrialExpiredByCredits,
				CreditsRemaining: balance,
			},
		}, nil
	}

	if err := finalizeDeck(deck); err != nil {
		// Charged but undeliverable: compensate.
		if _, refundErr := s.accountant.Refund(ctx, email, cost); refundErr != nil {
			log.Printf("refund after failed finalization for %s: %v", email, refundErr)
		}
		return nil, err
	}

	counter.AddGeneration(email)
	return &Outcome{
		Decision:   dec,
		Deck:       deck,
		Charged:    true,
		NewBalance: balance,
	}, nil
}

// finalizeDeck validates and normalizes provider output before delivery.
func finalizeDeck(deck *Deck) error {
	if deck == nil || len(deck.Slides) == 0 {
		return ErrEmptyDeck
	}
	deck.Title = strings.TrimSpace(deck.Title)
	for i := range deck.Slides {
		deck.Slides[i].Heading = strings.TrimSpace(deck.Slides[i].Heading)
	}
	return nil
}
