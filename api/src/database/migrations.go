package database

import (
	"github.com/RIKUY-ORG/Rikuy/api/src/model"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.IdentityCredential{},
		&model.IssuanceAttempt{},
		&model.LedgerEntry{},
		&model.OutboxEvent{},
	)
}

func RunMigrations(migrateDatabase bool) {
	if !migrateDatabase {
		return
	}

	migrationLogger := logger.Default()
	migrationLogger.Info("Running migrations for tables... ")
	if err := AutoMigrate(GetDatabaseConnection()); err != nil {
		migrationLogger.Fatal(err, "Migrating database failed")
	}
	migrationLogger.Info("All tables created (or already exist).")
}
