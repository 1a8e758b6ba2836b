package research

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"betswarm/internal/models"
	"betswarm/internal/repository"
)

// Payload is one research result ready to be recorded.
type Payload struct {
	OpportunityID int64
	Question      string
	Outcomes      []string
	Probabilities []float64
	Analysis      string
	Sources       []string
	Researcher    string
}

// Cache is the staleness-gated research store. Writes are pure appends; the
// current record per opportunity is whichever has the latest timestamp. The
// freshness check is read-before-write, not a lock: concurrent refreshes may
// produce duplicate fresh rows and readers must tolerate that.
type Cache struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// Now is injectable for tests; defaults to time.Now UTC.
	Now func() time.Time
}

// IsFresh reports whether a record younger than ttl exists for the
// opportunity. A storage failure fails open (returns false) so an outage
// never starves agents of research.
func (c *Cache) IsFresh(ctx context.Context, opportunityID int64, ttl time.Duration) bool {
	if c == nil || c.Repo == nil {
		return false
	}
	latest, err := c.Repo.LatestResearchAt(ctx, opportunityID)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("research freshness check failed, treating as stale",
				zap.Int64("opportunity_id", opportunityID),
				zap.Error(err),
			)
		}
		return false
	}
	if latest == nil {
		return false
	}
	return c.now().Sub(latest.UTC()) < ttl
}

func (c *Cache) Record(ctx context.Context, p Payload) error {
	if c == nil || c.Repo == nil {
		return nil
	}
	outcomes, err := json.Marshal(p.Outcomes)
	if err != nil {
		return err
	}
	probs, err := json.Marshal(p.Probabilities)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(p.Sources)
	if err != nil {
		return err
	}
	item := &models.Research{
		OpportunityID: p.OpportunityID,
		Question:      p.Question,
		Outcomes:      datatypes.JSON(outcomes),
		Probabilities: datatypes.JSON(probs),
		Analysis:      p.Analysis,
		Sources:       datatypes.JSON(sources),
		Researcher:    p.Researcher,
		CreatedAt:     c.now(),
	}
	return c.Repo.InsertResearch(ctx, item)
}

// CurrentByOpportunity returns, per opportunity, the record with the maximum
// creation timestamp.
func (c *Cache) CurrentByOpportunity(ctx context.Context, opportunityIDs []int64) (map[int64]models.Research, error) {
	if c == nil || c.Repo == nil {
		return map[int64]models.Research{}, nil
	}
	return c.Repo.LatestResearchByOpportunity(ctx, opportunityIDs)
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}
