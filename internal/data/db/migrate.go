package db

import (
	types "github.com/traceloom/traceloom-backend/internal/domain"
	"gorm.io/gorm"
)

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// Sessions (doubles as the job-run table)
		&types.AlignmentSession{},

		// Inputs
		&types.DatasetElement{},

		// Pipeline artifacts
		&types.MergeLogEntry{},
		&types.TesseractCell{},
		&types.VennRecord{},
	)
}
