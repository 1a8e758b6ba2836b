package db

import (
	"betswarm/internal/models"
)

func (db *DB) AutoMigrate() error {
	return db.Gorm.AutoMigrate(
		&models.Wager{},
		&models.Research{},
	)
}
