package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WagerPending = "pending"
	WagerWon     = "won"
	WagerLost    = "lost"
	WagerVoided  = "voided"
)

// Wager is one agent's bet on one outcome of one opportunity.
// Lifecycle: pending -> won | lost | voided, terminal once resolved.
type Wager struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	AgentName     string `gorm:"type:varchar(100);not null;index:idx_wagers_agent_opp"`
	OpportunityID int64  `gorm:"not null;index:idx_wagers_agent_opp"`
	Outcome       int    `gorm:"not null"`

	// Money-like values stored as numeric to avoid float drift.
	Amount decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	Odds   *decimal.Decimal `gorm:"type:numeric(20,10)"`

	Reasoning string `gorm:"type:text"`

	Status string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	PnL    decimal.Decimal `gorm:"column:pnl;type:numeric(30,10);not null;default:0"`

	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
}

func (Wager) TableName() string {
	return "wagers"
}
