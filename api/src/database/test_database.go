package database

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"
)

var testDbCounter atomic.Int64

// NewTestDatabase returns a migrated in-memory sqlite database private to the test.
func NewTestDatabase(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:rikuy_test_%d?mode=memory&cache=shared", testDbCounter.Add(1))

	db, err := Open(DriverSqlite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
