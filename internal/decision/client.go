package decision

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betswarm/internal/config"
	"betswarm/internal/ledger"
	"betswarm/internal/market"
	"betswarm/internal/models"
	"betswarm/internal/oracle"
)

// Oracle is the slice of the reasoning oracle the batched client needs.
type Oracle interface {
	CompleteJSON(ctx context.Context, req oracle.Request, out any) error
}

// EventSink receives best-effort diagnostic events. telemetry.Publisher
// satisfies it.
type EventSink interface {
	Event(ctx context.Context, agent, eventType string, payload map[string]any)
}

// AgentContext is everything the oracle sees about one agent this cycle.
type AgentContext struct {
	Profile config.AgentProfile
	Balance decimal.Decimal
	Pending []models.Wager
	Stats   ledger.Stats
}

// Result is one agent's demultiplexed share of the batched decision.
type Result struct {
	Reasoning string
	Actions   []Action
}

// Client obtains one multi-agent decision per cycle: a single oracle call
// covering every agent, demultiplexed and validated per agent afterwards.
type Client struct {
	Oracle    Oracle
	Telemetry EventSink
	Logger    *zap.Logger
	Model     string
}

type rawAgentDecision struct {
	Reasoning string      `json:"reasoning"`
	Actions   []RawAction `json:"actions"`
}

// Decide invokes the oracle exactly once for the whole agent set. An agent
// missing from the response degrades to "no actions, empty reasoning" rather
// than failing the round; only a transport or parse failure on the single
// call itself errors out.
func (c *Client) Decide(ctx context.Context, agents []AgentContext, opps []market.Opportunity, research map[int64]models.Research) (map[string]Result, error) {
	var reply map[string]rawAgentDecision
	err := c.Oracle.CompleteJSON(ctx, oracle.Request{
		Model:  c.Model,
		System: decisionSystemPrompt,
		User:   buildPrompt(agents, opps, research),
	}, &reply)
	if err != nil {
		return nil, err
	}

	oppByID := make(map[int64]market.Opportunity, len(opps))
	for _, o := range opps {
		oppByID[o.ID] = o
	}

	out := make(map[string]Result, len(agents))
	for _, agent := range agents {
		name := agent.Profile.Name
		raw, ok := reply[name]
		if !ok {
			if c.Logger != nil {
				c.Logger.Debug("oracle response missing agent, using empty decision",
					zap.String("agent", name))
			}
			out[name] = Result{}
			continue
		}
		validated := Validate(raw.Actions, oppByID, Budget{
			Balance:  agent.Balance,
			MaxWager: agent.Profile.MaxWager,
		})
		if len(raw.Actions) > 0 && len(validated) == 0 {
			// The oracle proposed actions and every one was rejected: the
			// payload is drifting out of the expected shape.
			if c.Logger != nil {
				c.Logger.Warn("all proposed actions removed by validation",
					zap.String("agent", name),
					zap.Int("proposed", len(raw.Actions)),
				)
			}
			if c.Telemetry != nil {
				c.Telemetry.Event(ctx, name, "decision_validated_empty", map[string]any{
					"proposed": len(raw.Actions),
				})
			}
		}
		out[name] = Result{
			Reasoning: raw.Reasoning,
			Actions:   validated,
		}
	}
	return out, nil
}
