package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"betswarm/internal/models"
)

type ListWagersParams struct {
	Agent   string
	Status  *string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

// Repository is the storage boundary shared by the ledgers, the research
// cache, and the ops handlers.
type Repository interface {
	// Wagers
	InsertWager(ctx context.Context, item *models.Wager) error
	// InsertWagersTx inserts all rows inside one transaction: either every row
	// lands or none do.
	InsertWagersTx(ctx context.Context, items []models.Wager) error
	ListWagers(ctx context.Context, params ListWagersParams) ([]models.Wager, error)
	CountWagers(ctx context.Context, params ListWagersParams) (int64, error)
	ListWagersByAgent(ctx context.Context, agent string) ([]models.Wager, error)
	ListPendingWagers(ctx context.Context, agent string) ([]models.Wager, error)
	// OldestPendingWager returns the earliest-created pending wager an agent
	// holds on an opportunity, or nil when there is none.
	OldestPendingWager(ctx context.Context, agent string, opportunityID int64) (*models.Wager, error)
	// ResolveWager transitions one pending row to a terminal status. Rows that
	// already left pending are never touched; the bool reports whether a row
	// was updated.
	ResolveWager(ctx context.Context, id uint64, status string, pnl decimal.Decimal, resolvedAt time.Time) (bool, error)

	// Research
	InsertResearch(ctx context.Context, item *models.Research) error
	LatestResearchAt(ctx context.Context, opportunityID int64) (*time.Time, error)
	LatestResearchByOpportunity(ctx context.Context, opportunityIDs []int64) (map[int64]models.Research, error)
	ListResearch(ctx context.Context, limit, offset int) ([]models.Research, error)
}
