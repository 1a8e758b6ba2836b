package market

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusVoided   = "voided"
)

type ChatMessage struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	ReplyTo   *int64    `json:"reply_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Opportunity is the per-cycle snapshot of one market. It is rebuilt fresh
// every cycle and never persisted here; durable storage belongs to the market
// collaborator.
type Opportunity struct {
	ID       int64    `json:"id"`
	Question string   `json:"question"`
	Outcomes []string `json:"outcomes"`

	// Implied probabilities derived from the collaborator's odds vector.
	// Empty when odds were unavailable this cycle.
	Probabilities []float64 `json:"probabilities,omitempty"`

	// Chat transcript, most recent last. Empty when the fetch failed.
	Chat []ChatMessage `json:"chat,omitempty"`

	Status         string            `json:"status"`
	WinningOutcome *int              `json:"winning_outcome,omitempty"`
	OutcomePools   []decimal.Decimal `json:"outcome_pools,omitempty"`
	TotalPool      decimal.Decimal   `json:"total_pool"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ImpliedProbabilities converts an odds vector into a probability vector:
// p_i = (1/odds_i) / sum_j(1/odds_j). Odds at or below zero yield nil.
func ImpliedProbabilities(odds []float64) []float64 {
	if len(odds) == 0 {
		return nil
	}
	inv := make([]float64, len(odds))
	sum := 0.0
	for i, o := range odds {
		if o <= 0 {
			return nil
		}
		inv[i] = 1.0 / o
		sum += inv[i]
	}
	if sum == 0 {
		return nil
	}
	out := make([]float64, len(odds))
	for i := range inv {
		out[i] = inv[i] / sum
	}
	return out
}
