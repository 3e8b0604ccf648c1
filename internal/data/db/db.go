package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Database is an opened gorm handle plus the driver it was opened with.
type Database struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open prepares a handle for the given driver without pinging it; callers
// check it with Ping. An empty sqlite DSN opens a private in-memory database.
func Open(driver, dsn string, logg *logger.Logger) (*Database, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		if dsn == "" {
			dsn = "file::memory:"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		DisableAutomaticPing:                     true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps an in-memory database alive and serialises writers
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return &Database{db: db, driver: driver, log: logg.With("service", "Database", "driver", driver)}, nil
}

func (d *Database) DB() *gorm.DB { return d.db }

func (d *Database) Driver() string { return d.driver }

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrateAll creates the authoring tables and their indexes.
func (d *Database) AutoMigrateAll() error {
	d.log.Info("Auto migrating authoring tables...")
	if err := AutoMigrateAll(d.db); err != nil {
		d.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureAuthoringIndexes(d.db); err != nil {
		d.log.Error("Authoring index migration failed", "error", err)
		return err
	}
	return nil
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&authoring.User{},
		&authoring.AuthoredCourse{},
		&authoring.Section{},
	)
}

func EnsureAuthoringIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_authored_section_course_position
		ON authored_section (course_id, position);
	`).Error; err != nil {
		return fmt.Errorf("create idx_authored_section_course_position: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_authored_course_owner_created
		ON authored_course (owner_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_authored_course_owner_created: %w", err)
	}
	return nil
}

// TranslateError maps gorm and driver errors onto fault codes.
func TranslateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if faults.CodeOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return faults.New(faults.CodeNotFound, op, "record not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return faults.New(faults.CodeConflict, op, "duplicate key", err)
	case errors.Is(err, context.DeadlineExceeded):
		return faults.Unavailable(op, err)
	case isConnectionError(err):
		return faults.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"bad connection",
		"database is closed",
		"failed to connect",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
