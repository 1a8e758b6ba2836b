package models

import (
	"time"

	"gorm.io/datatypes"
)

// Research is one externally sourced probability estimate for an opportunity.
// Rows are append-only; the freshest row per opportunity is the current one
// and older rows are kept as history.
type Research struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OpportunityID int64  `gorm:"not null;index"`
	Question      string `gorm:"type:text"`

	Outcomes      datatypes.JSON `gorm:"type:jsonb;not null"`
	Probabilities datatypes.JSON `gorm:"type:jsonb;not null"`

	Analysis   string         `gorm:"type:text"`
	Sources    datatypes.JSON `gorm:"type:jsonb"`
	Researcher string         `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Research) TableName() string {
	return "research"
}
