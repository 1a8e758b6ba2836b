package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"betswarm/internal/models"
	"betswarm/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- wagers -----------------------------------------------------------------

func (s *Store) InsertWager(ctx context.Context, item *models.Wager) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) InsertWagersTx(ctx context.Context, items []models.Wager) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
}

func (s *Store) ListWagers(ctx context.Context, params repository.ListWagersParams) ([]models.Wager, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyWagerFilters(s.db.WithContext(ctx).Model(&models.Wager{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Wager
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountWagers(ctx context.Context, params repository.ListWagersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	query := s.applyWagerFilters(s.db.WithContext(ctx).Model(&models.Wager{}), params)
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) applyWagerFilters(query *gorm.DB, params repository.ListWagersParams) *gorm.DB {
	if strings.TrimSpace(params.Agent) != "" {
		query = query.Where("agent_name = ?", strings.TrimSpace(params.Agent))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	return query
}

func (s *Store) ListWagersByAgent(ctx context.Context, agent string) ([]models.Wager, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Wager
	if err := s.db.WithContext(ctx).
		Model(&models.Wager{}).
		Where("agent_name = ?", agent).
		Order("created_at asc").
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPendingWagers(ctx context.Context, agent string) ([]models.Wager, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Wager
	if err := s.db.WithContext(ctx).
		Model(&models.Wager{}).
		Where("agent_name = ?", agent).
		Where("status = ?", models.WagerPending).
		Order("created_at asc").
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) OldestPendingWager(ctx context.Context, agent string, opportunityID int64) (*models.Wager, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Wager
	err := s.db.WithContext(ctx).
		Model(&models.Wager{}).
		Where("agent_name = ?", agent).
		Where("opportunity_id = ?", opportunityID).
		Where("status = ?", models.WagerPending).
		Order("created_at asc").
		Order("id asc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ResolveWager(ctx context.Context, id uint64, status string, pnl decimal.Decimal, resolvedAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Wager{}).
		Where("id = ?", id).
		Where("status = ?", models.WagerPending).
		Updates(map[string]any{
			"status":      status,
			"pnl":         pnl,
			"resolved_at": resolvedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- research ---------------------------------------------------------------

func (s *Store) InsertResearch(ctx context.Context, item *models.Research) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestResearchAt(ctx context.Context, opportunityID int64) (*time.Time, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Research
	err := s.db.WithContext(ctx).
		Model(&models.Research{}).
		Where("opportunity_id = ?", opportunityID).
		Order("created_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts := item.CreatedAt
	return &ts, nil
}

func (s *Store) LatestResearchByOpportunity(ctx context.Context, opportunityIDs []int64) (map[int64]models.Research, error) {
	if s == nil || s.db == nil || len(opportunityIDs) == 0 {
		return map[int64]models.Research{}, nil
	}
	var items []models.Research
	if err := s.db.WithContext(ctx).
		Model(&models.Research{}).
		Where("opportunity_id IN ?", opportunityIDs).
		Order("created_at desc").
		Order("id desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	out := map[int64]models.Research{}
	for _, it := range items {
		if _, ok := out[it.OpportunityID]; ok {
			continue
		}
		out[it.OpportunityID] = it
	}
	return out, nil
}

func (s *Store) ListResearch(ctx context.Context, limit, offset int) ([]models.Research, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Research
	if err := s.db.WithContext(ctx).
		Model(&models.Research{}).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 200)).
		Offset(normalizeOffset(offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	if col == "" {
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
