package testutil

import (
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/db"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// Database opens a migrated database for one test. TEST_POSTGRES_DSN selects
// Postgres; otherwise each call gets a private in-memory SQLite database.
func Database(tb testing.TB) *db.Database {
	tb.Helper()
	driver, dsn := db.DriverSQLite, ""
	if pg := os.Getenv("TEST_POSTGRES_DSN"); pg != "" {
		driver, dsn = db.DriverPostgres, pg
	}
	d, err := db.Open(driver, dsn, Logger(tb))
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := d.AutoMigrateAll(); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	tb.Cleanup(func() { _ = d.Close() })
	return d
}

func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	return Database(tb).DB()
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func NewUser(username string) *authoring.User {
	return &authoring.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "hash",
		Role:         authoring.RoleEducator,
	}
}

// NewCourse builds a course with one topic section and one freeform section.
func NewCourse(ownerID uuid.UUID, title string) *authoring.AuthoredCourse {
	id := uuid.New()
	return &authoring.AuthoredCourse{
		ID:      id,
		OwnerID: ownerID,
		Title:   title,
		Version: 1,
		Sections: []authoring.Section{
			{ID: uuid.New(), CourseID: id, Position: 0, Heading: "Loops", RefKind: authoring.RefTopic, RefIRI: "https://w3id.org/tkg/topic/loops"},
			{ID: uuid.New(), CourseID: id, Position: 1, Heading: "Notes", Body: "bring a laptop"},
		},
		Snapshots: []authoring.Snapshot{{IRI: "https://w3id.org/tkg/topic/loops", Kind: authoring.RefTopic, Label: "Loops"}},
	}
}
