package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"betswarm/internal/models"
	"betswarm/internal/repository"
)

// stubRepo is an in-memory repository.Repository for ledger tests.
type stubRepo struct {
	wagers   []models.Wager
	research []models.Research
	nextID   uint64

	insertErr error
	listErr   error
	countErr  error
	txErr     error
	txCalls   int
}

func (s *stubRepo) allocID() uint64 {
	s.nextID++
	return s.nextID
}

func (s *stubRepo) InsertWager(ctx context.Context, item *models.Wager) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	item.ID = s.allocID()
	s.wagers = append(s.wagers, *item)
	return nil
}

func (s *stubRepo) InsertWagersTx(ctx context.Context, items []models.Wager) error {
	s.txCalls++
	if s.txErr != nil {
		return s.txErr
	}
	for i := range items {
		items[i].ID = s.allocID()
		s.wagers = append(s.wagers, items[i])
	}
	return nil
}

func (s *stubRepo) ListWagers(ctx context.Context, params repository.ListWagersParams) ([]models.Wager, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Wager{}
	for _, w := range s.wagers {
		if params.Agent != "" && w.AgentName != params.Agent {
			continue
		}
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *stubRepo) CountWagers(ctx context.Context, params repository.ListWagersParams) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	items, err := s.ListWagers(ctx, params)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (s *stubRepo) ListWagersByAgent(ctx context.Context, agent string) ([]models.Wager, error) {
	return s.ListWagers(ctx, repository.ListWagersParams{Agent: agent})
}

func (s *stubRepo) ListPendingWagers(ctx context.Context, agent string) ([]models.Wager, error) {
	status := models.WagerPending
	return s.ListWagers(ctx, repository.ListWagersParams{Agent: agent, Status: &status})
}

func (s *stubRepo) OldestPendingWager(ctx context.Context, agent string, opportunityID int64) (*models.Wager, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var oldest *models.Wager
	for i := range s.wagers {
		w := &s.wagers[i]
		if w.AgentName != agent || w.OpportunityID != opportunityID || w.Status != models.WagerPending {
			continue
		}
		if oldest == nil || w.CreatedAt.Before(oldest.CreatedAt) {
			oldest = w
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copied := *oldest
	return &copied, nil
}

func (s *stubRepo) ResolveWager(ctx context.Context, id uint64, status string, pnl decimal.Decimal, resolvedAt time.Time) (bool, error) {
	for i := range s.wagers {
		if s.wagers[i].ID != id {
			continue
		}
		if s.wagers[i].Status != models.WagerPending {
			return false, nil
		}
		s.wagers[i].Status = status
		s.wagers[i].PnL = pnl
		at := resolvedAt
		s.wagers[i].ResolvedAt = &at
		return true, nil
	}
	return false, nil
}

func (s *stubRepo) InsertResearch(ctx context.Context, item *models.Research) error {
	item.ID = s.allocID()
	s.research = append(s.research, *item)
	return nil
}

func (s *stubRepo) LatestResearchAt(ctx context.Context, opportunityID int64) (*time.Time, error) {
	var latest *time.Time
	for _, r := range s.research {
		if r.OpportunityID != opportunityID {
			continue
		}
		if latest == nil || r.CreatedAt.After(*latest) {
			at := r.CreatedAt
			latest = &at
		}
	}
	return latest, nil
}

func (s *stubRepo) LatestResearchByOpportunity(ctx context.Context, opportunityIDs []int64) (map[int64]models.Research, error) {
	out := map[int64]models.Research{}
	for _, id := range opportunityIDs {
		for _, r := range s.research {
			if r.OpportunityID != id {
				continue
			}
			if cur, ok := out[id]; !ok || r.CreatedAt.After(cur.CreatedAt) {
				out[id] = r
			}
		}
	}
	return out, nil
}

func (s *stubRepo) ListResearch(ctx context.Context, limit, offset int) ([]models.Research, error) {
	return s.research, nil
}
