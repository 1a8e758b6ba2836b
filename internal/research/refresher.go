package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"betswarm/internal/market"
	"betswarm/internal/oracle"
)

// Oracle is the slice of the reasoning oracle the refresher needs.
type Oracle interface {
	CompleteJSON(ctx context.Context, req oracle.Request, out any) error
}

// Refresher fetches a fresh probability estimate for every stale opportunity,
// pacing calls with a fixed delay to respect oracle rate limits. One failed
// opportunity is logged and skipped; it never aborts the pass.
type Refresher struct {
	Cache      *Cache
	Oracle     Oracle
	Logger     *zap.Logger
	Researcher string
	Model      string
	// Temperature comes from the researching agent's profile.
	Temperature float64
	TTL         time.Duration
	Delay       time.Duration

	// Sleep is injectable so tests run without real-time waits.
	Sleep func(ctx context.Context, d time.Duration)
}

type researchReply struct {
	Probabilities []float64 `json:"probabilities"`
	Analysis      string    `json:"analysis"`
	Sources       []string  `json:"sources"`
}

func (r *Refresher) Refresh(ctx context.Context, opps []market.Opportunity) {
	if r == nil || r.Cache == nil || r.Oracle == nil {
		return
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	for i, opp := range opps {
		if ctx.Err() != nil {
			return
		}
		if r.Cache.IsFresh(ctx, opp.ID, ttl) {
			continue
		}
		if i > 0 {
			r.sleep(ctx, r.Delay)
		}
		if err := r.refreshOne(ctx, opp); err != nil {
			if r.Logger != nil {
				r.Logger.Warn("research refresh failed",
					zap.Int64("opportunity_id", opp.ID),
					zap.Error(err),
				)
			}
			continue
		}
		if r.Logger != nil {
			r.Logger.Info("research recorded", zap.Int64("opportunity_id", opp.ID))
		}
	}
}

func (r *Refresher) refreshOne(ctx context.Context, opp market.Opportunity) error {
	var reply researchReply
	err := r.Oracle.CompleteJSON(ctx, oracle.Request{
		Model:       r.Model,
		Temperature: r.Temperature,
		System:      researchSystemPrompt,
		User:        researchUserPrompt(opp),
	}, &reply)
	if err != nil {
		return err
	}
	if len(reply.Probabilities) != len(opp.Outcomes) {
		return fmt.Errorf("probability count %d does not match %d outcomes",
			len(reply.Probabilities), len(opp.Outcomes))
	}
	return r.Cache.Record(ctx, Payload{
		OpportunityID: opp.ID,
		Question:      opp.Question,
		Outcomes:      opp.Outcomes,
		Probabilities: reply.Probabilities,
		Analysis:      reply.Analysis,
		Sources:       reply.Sources,
		Researcher:    r.Researcher,
	})
}

const researchSystemPrompt = `You are a research assistant estimating real-world probabilities for prediction-market questions. Reply with a single JSON object: {"probabilities": [...], "analysis": "...", "sources": ["..."]}. Probabilities must sum to 1 and match the outcome order given.`

func researchUserPrompt(opp market.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", opp.Question)
	b.WriteString("Outcomes:\n")
	for i, o := range opp.Outcomes {
		fmt.Fprintf(&b, "  %d. %s\n", i, o)
	}
	return b.String()
}

func (r *Refresher) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if r.Sleep != nil {
		r.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
