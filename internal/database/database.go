package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://") ||
		strings.Contains(url, "host=")
}

func sqliteDSN(url string) string {
	path := strings.TrimPrefix(url, "sqlite://")
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=1&_busy_timeout=5000"
}

// NewDatabase opens postgres for postgres URLs and sqlite for anything else
// (a file path, optionally prefixed with sqlite://), then applies migrations.
func NewDatabase(url string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgresURL(url) {
		log.Println("connecting to postgres database")
		db, err = gorm.Open(postgres.Open(url), cfg)
	} else {
		log.Printf("opening sqlite database %s", url)
		db, err = gorm.Open(sqlite.Open(sqliteDSN(url)), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("error getting sqlite connection: %w", err)
		}
		// one writer at a time, so api and worker goroutines never hit SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating database schema: %w", err)
	}

	return db, nil
}
