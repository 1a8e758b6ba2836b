package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betswarm/internal/market"
	"betswarm/internal/models"
	"betswarm/internal/repository"
)

// AuthorityWager is one row of authoritative wager history from the
// settlement collaborator.
type AuthorityWager struct {
	OpportunityID int64
	Outcome       int
	Amount        decimal.Decimal
	Odds          *decimal.Decimal
	Reasoning     string
	CreatedAt     time.Time
}

// ReconcileFromAuthority is the one-shot backfill for a lost local ledger.
// It runs only when the ledger holds zero records, because merging into
// non-empty history would duplicate or conflict with it, and inserts all
// qualifying rows in one transaction so a mid-operation failure leaves
// nothing behind.
// Returns the number of rows imported.
func (l *Ledger) ReconcileFromAuthority(ctx context.Context, wagers []AuthorityWager, opportunities map[int64]market.Opportunity) (int, error) {
	total, err := l.Repo.CountWagers(ctx, repository.ListWagersParams{Agent: l.Agent})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		if l.Logger != nil {
			l.Logger.Info("ledger not empty, skipping authority backfill",
				zap.String("agent", l.Agent),
				zap.Int64("existing", total),
			)
		}
		return 0, nil
	}

	now := l.now()
	rows := make([]models.Wager, 0, len(wagers))
	for _, aw := range wagers {
		opp, ok := opportunities[aw.OpportunityID]
		if !ok {
			continue
		}
		// A wager older than its opportunity is an orphan from a prior
		// incarnation of the opportunity source.
		if aw.CreatedAt.Before(opp.CreatedAt) {
			if l.Logger != nil {
				l.Logger.Warn("skipping orphaned authority wager",
					zap.String("agent", l.Agent),
					zap.Int64("opportunity_id", aw.OpportunityID),
				)
			}
			continue
		}

		row := models.Wager{
			AgentName:     l.Agent,
			OpportunityID: aw.OpportunityID,
			Outcome:       aw.Outcome,
			Amount:        aw.Amount,
			Odds:          aw.Odds,
			Reasoning:     aw.Reasoning,
			Status:        models.WagerPending,
			PnL:           decimal.Zero,
			CreatedAt:     aw.CreatedAt,
		}
		if status, pnl, resolved := SettleAgainst(opp, aw.Outcome, aw.Amount); resolved {
			row.Status = status
			row.PnL = pnl
			resolvedAt := now
			row.ResolvedAt = &resolvedAt
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := l.Repo.InsertWagersTx(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// SettleAgainst derives the terminal state and realized PnL of a wager from a
// settled opportunity's pool shares. Win pays amount*totalPool/winningPool
// minus the stake (zero when the winning pool share is zero); a loss forfeits
// the stake; a void returns it. Unresolved opportunities report resolved=false.
func SettleAgainst(opp market.Opportunity, outcome int, amount decimal.Decimal) (status string, pnl decimal.Decimal, resolved bool) {
	switch opp.Status {
	case market.StatusVoided:
		return models.WagerVoided, decimal.Zero, true
	case market.StatusResolved:
		if opp.WinningOutcome == nil {
			return "", decimal.Zero, false
		}
		if *opp.WinningOutcome != outcome {
			return models.WagerLost, amount.Neg(), true
		}
		winPool := decimal.Zero
		if *opp.WinningOutcome >= 0 && *opp.WinningOutcome < len(opp.OutcomePools) {
			winPool = opp.OutcomePools[*opp.WinningOutcome]
		}
		if winPool.IsZero() {
			return models.WagerWon, decimal.Zero, true
		}
		return models.WagerWon, amount.Mul(opp.TotalPool).Div(winPool).Sub(amount), true
	default:
		return "", decimal.Zero, false
	}
}
