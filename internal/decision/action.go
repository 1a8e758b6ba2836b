package decision

import (
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindBet   Kind = "bet"
	KindChat  Kind = "chat"
	KindReply Kind = "reply"
)

// RawAction is one untrusted action object from the oracle. Field types are
// whatever the model emitted; nothing here is trusted until the validator
// coerced it.
type RawAction map[string]any

// Action is a validated, in-budget action ready for dispatch.
type Action struct {
	Kind          Kind
	OpportunityID int64

	// bet
	Outcome int
	Amount  decimal.Decimal
	Reason  string

	// chat / reply
	Message string
	ReplyTo int64
}
