package orchestrator

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betswarm/internal/config"
	"betswarm/internal/decision"
	"betswarm/internal/ledger"
	"betswarm/internal/market"
	"betswarm/internal/models"
	"betswarm/internal/research"
	"betswarm/internal/telemetry"
)

// MarketClient is the market collaborator boundary. Every call may fail
// independently; the orchestrator treats failure as data unavailable.
type MarketClient interface {
	ListActiveOpportunities(ctx context.Context) ([]market.Opportunity, error)
	GetOpportunity(ctx context.Context, id int64) (*market.Opportunity, error)
	GetChat(ctx context.Context, id int64, limit int) ([]market.ChatMessage, error)
	GetOddsVector(ctx context.Context, id int64) ([]float64, error)
	SendMessage(ctx context.Context, opportunityID int64, sender, text string, replyTo *int64) error
}

type WalletClient interface {
	GetAvailableBalance(ctx context.Context, account string) (decimal.Decimal, error)
	PlaceWager(ctx context.Context, account string, opportunityID int64, outcome int, amount decimal.Decimal) error
}

type Decider interface {
	Decide(ctx context.Context, agents []decision.AgentContext, opps []market.Opportunity, res map[int64]models.Research) (map[string]decision.Result, error)
}

type Refresher interface {
	Refresh(ctx context.Context, opps []market.Opportunity)
}

// Orchestrator runs the cycle loop: snapshot shared state, refresh research,
// reconcile resolutions, gather per-agent context, obtain one batched
// decision, dispatch actions with pacing, publish stats, sleep. Everything is
// strictly sequential within a cycle; a stop signal takes effect at the next
// cycle boundary.
type Orchestrator struct {
	Agents    []config.AgentProfile
	Market    MarketClient
	Wallet    WalletClient
	Decider   Decider
	Research  *research.Cache
	Refresher Refresher
	Ledgers   map[string]*ledger.Ledger
	Telemetry *telemetry.Publisher
	Logger    *zap.Logger
	Config    config.EngineConfig

	// Sleep and Jitter are injectable so tests run cycles without real-time
	// waits.
	Sleep  func(ctx context.Context, d time.Duration)
	Jitter func(min, max time.Duration) time.Duration

	// ChatLimit caps how much transcript is pulled per opportunity.
	ChatLimit int

	// Now is injectable for tests; defaults to time.Now UTC.
	Now func() time.Time

	// nextEligible gates agents with their own cycle interval bounds: an
	// agent sits out shared cycles until its jittered interval elapses.
	nextEligible map[string]time.Time
}

func (o *Orchestrator) Run(ctx context.Context) error {
	if o == nil || o.Market == nil || o.Wallet == nil || o.Decider == nil {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cycleID := uuid.NewString()
		logger := o.Logger
		if logger != nil {
			logger = logger.With(zap.String("cycle_id", cycleID))
			logger.Info("cycle started")
		}
		if err := o.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if logger != nil {
				logger.Warn("cycle failed", zap.Error(err))
			}
		} else if logger != nil {
			logger.Info("cycle complete")
		}
		o.sleep(ctx, o.jitter(o.Config.CycleMin, o.Config.CycleMax))
	}
}

// RunCycle executes one full pass. Only a decision-oracle failure aborts the
// decision round; every other failure is scoped to its opportunity or agent.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	opps, err := o.snapshot(ctx)
	if err != nil {
		o.Telemetry.Event(ctx, "system", "snapshot_failed", map[string]any{"error": err.Error()})
		o.publishStats(ctx)
		return err
	}

	if len(opps) > 0 {
		if o.Refresher != nil {
			o.Refresher.Refresh(ctx, opps)
		}
		o.reconcileResolutions(ctx)

		agents := o.collectContexts(ctx)
		if len(agents) > 0 {
			if err := o.decideAndDispatch(ctx, agents, opps); err != nil {
				// The whole decision round is lost for this cycle, but the
				// process keeps going: stats still publish and the next cycle
				// retries from scratch.
				if o.Logger != nil {
					o.Logger.Error("decision round failed", zap.Error(err))
				}
				o.Telemetry.Event(ctx, "system", "decision_round_failed", map[string]any{
					"error":  err.Error(),
					"agents": len(agents),
				})
			}
		}
	}

	o.publishStats(ctx)
	return nil
}

// snapshot lists active opportunities and enriches a bounded top-N of them
// with chat and derived odds. The cap bounds oracle prompt size; per-fetch
// failures degrade that opportunity to no chat / no odds.
func (o *Orchestrator) snapshot(ctx context.Context) ([]market.Opportunity, error) {
	opps, err := o.Market.ListActiveOpportunities(ctx)
	if err != nil {
		return nil, err
	}
	topN := o.Config.TopOpportunities
	if topN <= 0 || topN > len(opps) {
		topN = len(opps)
	}
	opps = opps[:topN]

	chatLimit := o.ChatLimit
	if chatLimit <= 0 {
		chatLimit = 20
	}
	for i := range opps {
		chat, err := o.Market.GetChat(ctx, opps[i].ID, chatLimit)
		if err != nil {
			if o.Logger != nil {
				o.Logger.Warn("chat fetch failed", zap.Int64("opportunity_id", opps[i].ID), zap.Error(err))
			}
		} else {
			opps[i].Chat = chat
		}
		odds, err := o.Market.GetOddsVector(ctx, opps[i].ID)
		if err != nil {
			if o.Logger != nil {
				o.Logger.Warn("odds fetch failed", zap.Int64("opportunity_id", opps[i].ID), zap.Error(err))
			}
			continue
		}
		opps[i].Probabilities = market.ImpliedProbabilities(odds)
	}
	return opps, nil
}

// reconcileResolutions settles pending wagers against the authoritative
// market status. This always runs before the decision round, so a wager
// resolved here is never double-counted as pending input to the same cycle.
// A failed status check is swallowed: the wager simply stays pending and is
// retried next cycle.
func (o *Orchestrator) reconcileResolutions(ctx context.Context) {
	for _, profile := range o.Agents {
		led := o.Ledgers[profile.Name]
		if led == nil {
			continue
		}
		pending, err := led.PendingWagers(ctx)
		if err != nil {
			if o.Logger != nil {
				o.Logger.Warn("pending wagers fetch failed", zap.String("agent", profile.Name), zap.Error(err))
			}
			continue
		}
		checked := map[int64]struct{}{}
		for _, w := range pending {
			if _, done := checked[w.OpportunityID]; done {
				continue
			}
			opp, err := o.Market.GetOpportunity(ctx, w.OpportunityID)
			if err != nil || opp == nil {
				continue
			}
			checked[w.OpportunityID] = struct{}{}
			status, pnl, resolved := ledger.SettleAgainst(*opp, w.Outcome, w.Amount)
			if !resolved {
				continue
			}
			if err := led.ResolveWager(ctx, w.OpportunityID, status, pnl); err != nil {
				if o.Logger != nil {
					o.Logger.Warn("wager resolution failed",
						zap.String("agent", profile.Name),
						zap.Int64("opportunity_id", w.OpportunityID),
						zap.Error(err),
					)
				}
				continue
			}
			o.Telemetry.Event(ctx, profile.Name, "wager_resolved", map[string]any{
				"opportunity_id": w.OpportunityID,
				"result":         status,
				"pnl":            pnl.String(),
			})
		}
	}
}

// collectContexts gathers each agent's balance, pending wagers, and stats. An
// agent whose collection fails sits out this cycle's decision round only.
func (o *Orchestrator) collectContexts(ctx context.Context) []decision.AgentContext {
	out := make([]decision.AgentContext, 0, len(o.Agents))
	for _, profile := range o.Agents {
		led := o.Ledgers[profile.Name]
		if led == nil {
			continue
		}
		if !o.agentEligible(profile) {
			continue
		}
		balance, err := o.Wallet.GetAvailableBalance(ctx, profile.Account)
		if err != nil {
			if o.Logger != nil {
				o.Logger.Warn("balance fetch failed, excluding agent this cycle",
					zap.String("agent", profile.Name), zap.Error(err))
			}
			o.Telemetry.Event(ctx, profile.Name, "context_unavailable", map[string]any{"error": err.Error()})
			continue
		}
		pending, err := led.PendingWagers(ctx)
		if err != nil {
			o.Telemetry.Event(ctx, profile.Name, "context_unavailable", map[string]any{"error": err.Error()})
			continue
		}
		stats, err := led.Stats(ctx)
		if err != nil {
			o.Telemetry.Event(ctx, profile.Name, "context_unavailable", map[string]any{"error": err.Error()})
			continue
		}
		out = append(out, decision.AgentContext{
			Profile: profile,
			Balance: balance,
			Pending: pending,
			Stats:   stats,
		})
	}
	return out
}

// agentEligible applies the profile's own cycle interval bounds within the
// shared loop: a participating agent books its next slot at now plus a
// jittered interval from [CycleMin, CycleMax].
func (o *Orchestrator) agentEligible(profile config.AgentProfile) bool {
	if profile.CycleMin <= 0 && profile.CycleMax <= 0 {
		return true
	}
	now := o.now()
	if next, ok := o.nextEligible[profile.Name]; ok && now.Before(next) {
		if o.Logger != nil {
			o.Logger.Debug("agent sitting out this cycle",
				zap.String("agent", profile.Name),
				zap.Time("next_eligible", next),
			)
		}
		return false
	}
	if o.nextEligible == nil {
		o.nextEligible = make(map[string]time.Time, len(o.Agents))
	}
	o.nextEligible[profile.Name] = now.Add(o.jitter(profile.CycleMin, profile.CycleMax))
	return true
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) decideAndDispatch(ctx context.Context, agents []decision.AgentContext, opps []market.Opportunity) error {
	ids := make([]int64, 0, len(opps))
	for _, opp := range opps {
		ids = append(ids, opp.ID)
	}
	res := map[int64]models.Research{}
	if o.Research != nil {
		current, err := o.Research.CurrentByOpportunity(ctx, ids)
		if err != nil {
			if o.Logger != nil {
				o.Logger.Warn("research lookup failed, deciding without it", zap.Error(err))
			}
		} else {
			res = current
		}
	}

	results, err := o.Decider.Decide(ctx, agents, opps, res)
	if err != nil {
		return err
	}

	oppByID := make(map[int64]market.Opportunity, len(opps))
	for _, opp := range opps {
		oppByID[opp.ID] = opp
	}
	for _, agent := range agents {
		result := results[agent.Profile.Name]
		if len(result.Actions) == 0 {
			continue
		}
		// Stagger agents so the swarm does not act in lockstep.
		o.sleep(ctx, o.jitter(0, o.Config.AgentDelayMax))
		o.dispatch(ctx, agent.Profile, result, oppByID)
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, profile config.AgentProfile, result decision.Result, opps map[int64]market.Opportunity) {
	for i, action := range result.Actions {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			o.sleep(ctx, o.jitter(o.Config.ActionDelayMin, o.Config.ActionDelayMax))
		}
		switch action.Kind {
		case decision.KindBet:
			o.placeBet(ctx, profile, action, result.Reasoning, opps)
		case decision.KindChat:
			o.sendMessage(ctx, profile, action, nil)
		case decision.KindReply:
			replyTo := action.ReplyTo
			o.sendMessage(ctx, profile, action, &replyTo)
		}
	}
}

func (o *Orchestrator) placeBet(ctx context.Context, profile config.AgentProfile, action decision.Action, reasoning string, opps map[int64]market.Opportunity) {
	if err := o.Wallet.PlaceWager(ctx, profile.Account, action.OpportunityID, action.Outcome, action.Amount); err != nil {
		// Placement is not retried within a cycle; the oracle can propose
		// again next round if it still wants the position.
		if o.Logger != nil {
			o.Logger.Warn("wager placement failed",
				zap.String("agent", profile.Name),
				zap.Int64("opportunity_id", action.OpportunityID),
				zap.Error(err),
			)
		}
		o.Telemetry.Event(ctx, profile.Name, "wager_rejected", map[string]any{
			"opportunity_id": action.OpportunityID,
			"error":          err.Error(),
		})
		return
	}

	reason := action.Reason
	if reason == "" {
		reason = reasoning
	}
	odds := oddsAtPlacement(opps[action.OpportunityID], action.Outcome)
	led := o.Ledgers[profile.Name]
	if led != nil {
		if err := led.RecordWager(ctx, action.OpportunityID, action.Outcome, action.Amount, odds, reason); err != nil && o.Logger != nil {
			o.Logger.Error("wager placed but not recorded",
				zap.String("agent", profile.Name),
				zap.Int64("opportunity_id", action.OpportunityID),
				zap.Error(err),
			)
		}
	}
	o.Telemetry.Event(ctx, profile.Name, "wager_placed", map[string]any{
		"opportunity_id": action.OpportunityID,
		"outcome":        action.Outcome,
		"amount":         action.Amount.String(),
	})
}

func (o *Orchestrator) sendMessage(ctx context.Context, profile config.AgentProfile, action decision.Action, replyTo *int64) {
	if err := o.Market.SendMessage(ctx, action.OpportunityID, profile.Name, action.Message, replyTo); err != nil {
		if o.Logger != nil {
			o.Logger.Warn("chat send failed",
				zap.String("agent", profile.Name),
				zap.Int64("opportunity_id", action.OpportunityID),
				zap.Error(err),
			)
		}
		return
	}
	o.Telemetry.Event(ctx, profile.Name, "message_sent", map[string]any{
		"opportunity_id": action.OpportunityID,
		"reply":          replyTo != nil,
	})
}

// publishStats runs every cycle regardless of whether a decision was made, so
// an operator can tell "no opportunities" apart from "oracle failed".
func (o *Orchestrator) publishStats(ctx context.Context) {
	for _, profile := range o.Agents {
		led := o.Ledgers[profile.Name]
		if led == nil {
			continue
		}
		stats, err := led.Stats(ctx)
		if err != nil {
			if o.Logger != nil {
				o.Logger.Warn("stats compute failed", zap.String("agent", profile.Name), zap.Error(err))
			}
			continue
		}
		o.Telemetry.Stats(ctx, profile.Name, stats)
	}
}

func oddsAtPlacement(opp market.Opportunity, outcome int) *decimal.Decimal {
	if outcome < 0 || outcome >= len(opp.Probabilities) {
		return nil
	}
	p := opp.Probabilities[outcome]
	if p <= 0 {
		return nil
	}
	odds := decimal.NewFromFloat(1.0 / p)
	return &odds
}

func (o *Orchestrator) jitter(min, max time.Duration) time.Duration {
	if o.Jitter != nil {
		return o.Jitter(min, max)
	}
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if o.Sleep != nil {
		o.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
