package decision

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"betswarm/internal/market"
)

// MaxMessageLen bounds chat and reply messages; longer text is truncated, not
// rejected.
const MaxMessageLen = 500

// Budget is one agent's spending envelope for a single validation pass.
type Budget struct {
	Balance  decimal.Decimal
	MaxWager decimal.Decimal
}

// Validate turns a raw, possibly malformed action list into a safe,
// budget-bounded one. Rules apply per action, in order, first failure
// excluding that action only:
//
//  1. numeric-looking text fields are coerced; non-finite values reject
//  2. bets need an active opportunity, a non-negative outcome, and a positive
//     amount; amounts clamp down to the agent's maximum first, then a running
//     total of clamped amounts rejects any action that would exceed the
//     balance (accept-in-order)
//  3. chat/reply need an active opportunity and non-empty text; text truncates
//     to MaxMessageLen
//  4. unrecognized types drop
//
// The function is pure and deterministic; callers watching for upstream
// payload drift should compare input and output lengths.
func Validate(raw []RawAction, opps map[int64]market.Opportunity, budget Budget) []Action {
	out := make([]Action, 0, len(raw))
	spent := decimal.Zero

	for _, ra := range raw {
		kind, _ := ra["type"].(string)
		switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
		case KindBet:
			action, cost, ok := validateBet(ra, opps, budget, spent)
			if !ok {
				continue
			}
			spent = spent.Add(cost)
			out = append(out, action)
		case KindChat:
			action, ok := validateMessage(ra, opps, KindChat)
			if !ok {
				continue
			}
			out = append(out, action)
		case KindReply:
			action, ok := validateMessage(ra, opps, KindReply)
			if !ok {
				continue
			}
			out = append(out, action)
		}
	}
	return out
}

func validateBet(ra RawAction, opps map[int64]market.Opportunity, budget Budget, spent decimal.Decimal) (Action, decimal.Decimal, bool) {
	oppID, ok := coerceInt64(ra["opportunity_id"])
	if !ok {
		return Action{}, decimal.Zero, false
	}
	opp, active := opps[oppID]
	if !active || opp.Status != market.StatusActive {
		return Action{}, decimal.Zero, false
	}
	outcome, ok := coerceInt64(ra["outcome"])
	if !ok || outcome < 0 {
		return Action{}, decimal.Zero, false
	}
	amount, ok := coerceDecimal(ra["amount"])
	if !ok || !amount.IsPositive() {
		return Action{}, decimal.Zero, false
	}
	// Oversized bets clamp to the configured maximum rather than rejecting,
	// and the balance gate sees the clamped amount: a large ask is only ever
	// shrunk, never lost outright for its size.
	if budget.MaxWager.IsPositive() && amount.GreaterThan(budget.MaxWager) {
		amount = budget.MaxWager
	}
	if spent.Add(amount).GreaterThan(budget.Balance) {
		return Action{}, decimal.Zero, false
	}
	reason, _ := ra["reason"].(string)
	return Action{
		Kind:          KindBet,
		OpportunityID: oppID,
		Outcome:       int(outcome),
		Amount:        amount,
		Reason:        reason,
	}, amount, true
}

func validateMessage(ra RawAction, opps map[int64]market.Opportunity, kind Kind) (Action, bool) {
	oppID, ok := coerceInt64(ra["opportunity_id"])
	if !ok {
		return Action{}, false
	}
	opp, active := opps[oppID]
	if !active || opp.Status != market.StatusActive {
		return Action{}, false
	}
	message, _ := ra["message"].(string)
	message = strings.TrimSpace(message)
	if message == "" {
		return Action{}, false
	}
	if runes := []rune(message); len(runes) > MaxMessageLen {
		message = string(runes[:MaxMessageLen])
	}
	action := Action{
		Kind:          kind,
		OpportunityID: oppID,
		Message:       message,
	}
	if kind == KindReply {
		replyTo, ok := coerceInt64(ra["reply_to"])
		if !ok {
			return Action{}, false
		}
		action.ReplyTo = replyTo
	}
	return action, true
}

// coerceFloat accepts the numeric shapes a loosely typed decision payload can
// carry: JSON numbers, numeric strings, json.Number. Non-finite values fail.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceInt64(v any) (int64, bool) {
	f, ok := coerceFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func coerceDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		f, ok := coerceFloat(v)
		if !ok {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
}
