package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/KaramelBytes/csvinsights/internal/logger"
)

// Open connects to the database named by url. postgres:// and postgresql://
// URLs use the Postgres driver; sqlite://<path> and file: URLs use SQLite.
func Open(url string, log *logger.Logger) (*gorm.DB, error) {
	url = strings.TrimSpace(url)
	if log == nil {
		log = logger.Nop()
	}
	dialector, isSQLite, err := dialectorFor(url)
	if err != nil {
		return nil, err
	}

	gormLog := gormLogger.New(
		log.StdLogger(),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
		NowFunc:                                  nowUTC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if isSQLite {
		// one connection keeps :memory: databases alive and serializes writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(15)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	log.Debug("database opened", "driver", dialector.Name())
	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	lower := strings.ToLower(url)
	switch {
	case url == "":
		return nil, false, fmt.Errorf("database url is empty")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.Open(url), false, nil
	case strings.HasPrefix(lower, "sqlite://"):
		path := url[len("sqlite://"):]
		if path == "" {
			return nil, true, fmt.Errorf("sqlite url has no path")
		}
		return sqlite.Open(path), true, nil
	case strings.HasPrefix(lower, "file:"):
		return sqlite.Open(url), true, nil
	}
	scheme := url
	if i := strings.Index(url, "://"); i >= 0 {
		scheme = url[:i]
	}
	return nil, false, fmt.Errorf("unsupported database url scheme %q", scheme)
}

// AutoMigrate creates or updates the reports table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Report{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks the pool and runs a trivial query.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	return db.WithContext(ctx).Exec("SELECT 1").Error
}

// nowUTC matches the microsecond precision of postgres timestamptz, so a
// created_at returned on insert equals the one read back later.
func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
