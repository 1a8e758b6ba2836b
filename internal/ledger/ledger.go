package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betswarm/internal/models"
	"betswarm/internal/repository"
)

// ErrNoPendingWager is returned when a resolution targets an opportunity the
// agent holds no pending wager on.
var ErrNoPendingWager = errors.New("no pending wager for opportunity")

// Ledger is one agent's durable wager record. Each agent owns its ledger
// exclusively; only that agent's processing step writes to it. Storage errors
// surface to the caller, since history correctness is load-bearing here,
// unlike the research cache.
type Ledger struct {
	Agent  string
	Repo   repository.Repository
	Logger *zap.Logger

	Now func() time.Time
}

// Stats is recomputed from stored records on every call.
type Stats struct {
	Pending      int             `json:"pending"`
	Won          int             `json:"won"`
	Lost         int             `json:"lost"`
	Voided       int             `json:"voided"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinRate      float64         `json:"win_rate"`
}

// RecordWager appends a pending wager. Fund sufficiency is the validator's
// job upstream; no check happens here.
func (l *Ledger) RecordWager(ctx context.Context, opportunityID int64, outcome int, amount decimal.Decimal, odds *decimal.Decimal, reasoning string) error {
	item := &models.Wager{
		AgentName:     l.Agent,
		OpportunityID: opportunityID,
		Outcome:       outcome,
		Amount:        amount,
		Odds:          odds,
		Reasoning:     reasoning,
		Status:        models.WagerPending,
		PnL:           decimal.Zero,
		CreatedAt:     l.now(),
	}
	return l.Repo.InsertWager(ctx, item)
}

// ResolveWager transitions the agent's pending wager on the opportunity to
// the given terminal result. When the agent somehow holds several pending
// wagers on one opportunity, the oldest (created first) is the one resolved;
// the ambiguity is logged rather than guessed silently. Terminal states never
// regress: a row that already left pending is not touched.
func (l *Ledger) ResolveWager(ctx context.Context, opportunityID int64, result string, pnl decimal.Decimal) error {
	target, err := l.Repo.OldestPendingWager(ctx, l.Agent, opportunityID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNoPendingWager
	}

	pending, err := l.Repo.ListPendingWagers(ctx, l.Agent)
	if err == nil {
		count := 0
		for _, w := range pending {
			if w.OpportunityID == opportunityID {
				count++
			}
		}
		if count > 1 && l.Logger != nil {
			l.Logger.Warn("multiple pending wagers on one opportunity, resolving oldest",
				zap.String("agent", l.Agent),
				zap.Int64("opportunity_id", opportunityID),
				zap.Int("pending", count),
			)
		}
	}

	updated, err := l.Repo.ResolveWager(ctx, target.ID, result, pnl, l.now())
	if err != nil {
		return err
	}
	if !updated && l.Logger != nil {
		l.Logger.Warn("wager already resolved, skipping",
			zap.String("agent", l.Agent),
			zap.Uint64("wager_id", target.ID),
		)
	}
	return nil
}

func (l *Ledger) PendingWagers(ctx context.Context) ([]models.Wager, error) {
	return l.Repo.ListPendingWagers(ctx, l.Agent)
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	items, err := l.Repo.ListWagersByAgent(ctx, l.Agent)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(items), nil
}

func computeStats(items []models.Wager) Stats {
	s := Stats{
		TotalWagered: decimal.Zero,
		TotalPnL:     decimal.Zero,
	}
	for _, w := range items {
		switch w.Status {
		case models.WagerPending:
			s.Pending++
		case models.WagerWon:
			s.Won++
		case models.WagerLost:
			s.Lost++
		case models.WagerVoided:
			s.Voided++
		}
		s.TotalWagered = s.TotalWagered.Add(w.Amount)
		s.TotalPnL = s.TotalPnL.Add(w.PnL)
	}
	if decided := s.Won + s.Lost; decided > 0 {
		s.WinRate = float64(s.Won) / float64(decided)
	}
	return s
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}
