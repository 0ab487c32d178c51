package db

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// The migration entry point must stay reachable as a service method; main
// calls it on the wired PostgresService.
var _ interface{ AutoMigrateAll() error } = (*PostgresService)(nil)

func TestAutoMigrateAllCreatesTables(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run migration tests")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		t.Fatalf("uuid-ossp: %v", err)
	}

	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}

	for _, table := range []string{
		"alignment_session",
		"dataset_element",
		"merge_log_entry",
		"tesseract_cell",
		"venn_record",
	} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("table %q missing after migration", table)
		}
	}
}
