package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
)

// Store is a property-store backend. Implementations report missing rows
// with faults.CodeNotFound, uniqueness and version clashes with
// faults.CodeConflict, and connectivity failures with
// faults.CodePersistenceUnavailable.
type Store interface {
	Name() string
	Ping(ctx context.Context) error
	// EnsureSchema creates constraints or tables. It is best-effort and
	// may be called more than once.
	EnsureSchema(ctx context.Context) error

	CreateUser(ctx context.Context, u *authoring.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*authoring.User, error)
	GetUserByUsername(ctx context.Context, username string) (*authoring.User, error)

	CreateCourse(ctx context.Context, c *authoring.AuthoredCourse) error
	GetCourse(ctx context.Context, id uuid.UUID) (*authoring.AuthoredCourse, error)
	ListCoursesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error)
	// SearchCoursesByTitle returns courses of any owner whose title contains
	// query, ignoring case, newest first. limit <= 0 uses
	// authoring.DefaultTitleSearchLimit.
	SearchCoursesByTitle(ctx context.Context, query string, limit int) ([]*authoring.AuthoredCourse, error)
	// UpdateCourse replaces the stored course only when its version still
	// equals expectedVersion.
	UpdateCourse(ctx context.Context, c *authoring.AuthoredCourse, expectedVersion int) error
	DeleteCourse(ctx context.Context, id uuid.UUID) error

	Close(ctx context.Context) error
}
