package decision

import (
	"fmt"
	"strings"

	"betswarm/internal/market"
	"betswarm/internal/models"
)

const decisionSystemPrompt = `You control a set of personas wagering on prediction markets. For every agent listed decide its actions this cycle. Reply with one JSON object keyed by agent name. Each value: {"reasoning": "...", "actions": [...]}. An action is one of:
  {"type":"bet","opportunity_id":N,"outcome":N,"amount":N,"reason":"..."}
  {"type":"chat","opportunity_id":N,"message":"..."}
  {"type":"reply","opportunity_id":N,"reply_to":N,"message":"..."}
An empty actions list is a valid choice. Stay in character for each persona.`

// buildPrompt renders the shared situational context: every agent's profile
// and position, then every opportunity with its odds, chat, and research.
// All agents see identical shared data within one cycle.
func buildPrompt(agents []AgentContext, opps []market.Opportunity, research map[int64]models.Research) string {
	var b strings.Builder

	b.WriteString("## Agents\n")
	for _, a := range agents {
		p := a.Profile
		fmt.Fprintf(&b, "\n### %s\n", p.Name)
		fmt.Fprintf(&b, "Personality: %s\n", p.Personality)
		fmt.Fprintf(&b, "Risk tier: %s\n", p.RiskTier)
		fmt.Fprintf(&b, "Balance: %s\n", a.Balance.String())
		fmt.Fprintf(&b, "Max wager: %s\n", p.MaxWager.String())
		fmt.Fprintf(&b, "Record: %d won / %d lost / %d pending, pnl %s\n",
			a.Stats.Won, a.Stats.Lost, a.Stats.Pending, a.Stats.TotalPnL.String())
		for _, w := range a.Pending {
			fmt.Fprintf(&b, "Pending: %s on outcome %d of opportunity %d\n",
				w.Amount.String(), w.Outcome, w.OpportunityID)
		}
	}

	b.WriteString("\n## Opportunities\n")
	for _, o := range opps {
		fmt.Fprintf(&b, "\n### Opportunity %d: %s\n", o.ID, o.Question)
		for i, name := range o.Outcomes {
			if i < len(o.Probabilities) {
				fmt.Fprintf(&b, "  %d. %s (implied %.3f)\n", i, name, o.Probabilities[i])
			} else {
				fmt.Fprintf(&b, "  %d. %s\n", i, name)
			}
		}
		if rec, ok := research[o.ID]; ok {
			fmt.Fprintf(&b, "Research (%s): %s\n", rec.Researcher, rec.Analysis)
			fmt.Fprintf(&b, "Research probabilities: %s\n", string(rec.Probabilities))
		}
		for _, msg := range o.Chat {
			fmt.Fprintf(&b, "[chat %d] %s: %s\n", msg.ID, msg.Sender, msg.Text)
		}
	}

	return b.String()
}
