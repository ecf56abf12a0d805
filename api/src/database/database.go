package database

import (
	"fmt"
	"sync"
	"time"

	appbuilder "github.com/RIKUY-ORG/Rikuy/pkg/app_builder"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig interface {
	appbuilder.AppConfig
	GetDatabaseDriver() string
	GetDatabaseConnectionString() string
}

var (
	dbConnection *gorm.DB
	dbMu         sync.RWMutex
)

// ConnectToDatabase opens the process-wide connection from the builder config.
func ConnectToDatabase[T utilities.JsonConfigObj[U], U DatabaseConfig](a *appbuilder.AppBuilder[T, U]) {
	a.Logger.Infof("Establishing connection to %s database...", a.Config.GetDatabaseDriver())

	db, err := Open(a.Config.GetDatabaseDriver(), a.Config.GetDatabaseConnectionString())
	if err != nil {
		a.Logger.Fatal(err, "Cannot establish database connection")
	}

	SetDatabaseConnection(db)
	a.OnShutdown(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	a.Logger.Info("Database connection established successfully.")
}

func Open(driver, connectionString string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite, "":
		dialector = sqlite.Open(connectionString)
	case DriverPostgres:
		dialector = postgres.Open(connectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if driver != DriverPostgres {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func SetDatabaseConnection(db *gorm.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	dbConnection = db
}

func GetDatabaseConnection() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	if dbConnection == nil {
		panic("database connection not initialized: call ConnectToDatabase first")
	}
	return dbConnection
}
