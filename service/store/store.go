// Package store is the sqlite backed cache of monitoring services, their
// events, the host inventory and dashboards.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
)

var (
	// ErrConflict marks transient write contention. The whole transaction
	// may be retried.
	ErrConflict = errors.New("store: write conflict")
	ErrNotFound = errors.New("store: record not found")
)

// unresolvedEventIndex keeps at most one open event per service, host and check.
const unresolvedEventIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_monitoring_events_unresolved
ON monitoring_events(monitoring_service_id, host_name, check_name) WHERE resolved = 0`

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens or creates the database at dsn and migrates the schema.
func Open(dsn string, debug bool) (*Store, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, err
		}
	}
	log := logger.WithComponent("store")
	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		CreateBatchSize: 200,
		Logger: gormlogger.New(gormWriter{log: log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	if debug {
		db = db.Debug()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, serialize here rather than on SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(model.Zone{}, model.Group{}, model.Host{},
		model.MonitoringService{}, model.Event{},
		model.Dashboard{}, model.DashboardFilter{})
	if err != nil {
		return nil, err
	}
	if err := db.Exec(unresolvedEventIndex).Error; err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// gormWriter routes gorm's slow query and error logs to zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Msgf(format, args...)
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1&_busy_timeout=5000"
}

// DB exposes the underlying handle for inventory management.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsConflict reports whether err is transient write contention: a busy or
// locked database or a uniqueness violation caused by a concurrent writer.
func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return true
	case sqlite3.ErrConstraint:
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func classify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// Transaction runs fn in one transaction. Conflicts are reported wrapped in
// ErrConflict and leave nothing committed.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	return classify(s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	}))
}
