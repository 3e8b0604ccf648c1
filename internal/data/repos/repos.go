package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/db"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/repos/course"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/repos/user"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

type UserRepo = user.UserRepo
type AuthoredCourseRepo = course.AuthoredCourseRepo
type SectionRepo = course.SectionRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewAuthoredCourseRepo(db *gorm.DB, baseLog *logger.Logger) AuthoredCourseRepo {
	return course.NewAuthoredCourseRepo(db, baseLog)
}
func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return course.NewSectionRepo(db, baseLog)
}

// Store is the relational property-store backend. Every write runs in one
// transaction so a course row and its sections change together.
type Store struct {
	database *db.Database
	users    UserRepo
	courses  AuthoredCourseRepo
	sections SectionRepo
	log      *logger.Logger
}

func NewStore(database *db.Database, baseLog *logger.Logger) *Store {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	g := database.DB()
	return &Store{
		database: database,
		users:    NewUserRepo(g, baseLog),
		courses:  NewAuthoredCourseRepo(g, baseLog),
		sections: NewSectionRepo(g, baseLog),
		log:      baseLog.With("repo", "GormStore"),
	}
}

func (s *Store) Name() string { return s.database.Driver() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.database.Ping(ctx); err != nil {
		return faults.Unavailable("gorm_ping", err)
	}
	return nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.database.AutoMigrateAll()
}

func (s *Store) Close(ctx context.Context) error { return s.database.Close() }

func (s *Store) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return db.TranslateError(op, s.database.DB().WithContext(ctx).Transaction(fn))
}

func (s *Store) CreateUser(ctx context.Context, u *authoring.User) error {
	const op = "gorm_create_user"
	return s.transaction(ctx, op, func(tx *gorm.DB) error {
		taken, err := s.users.UsernameExists(ctx, tx, u.Username)
		if err != nil {
			return err
		}
		if taken {
			return faults.Conflict(op, "username %q is taken", u.Username)
		}
		_, err = s.users.Create(ctx, tx, []*authoring.User{u})
		return err
	})
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*authoring.User, error) {
	const op = "gorm_get_user"
	found, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, db.TranslateError(op, err)
	}
	if len(found) == 0 {
		return nil, faults.NotFound(op, "user %s not found", id)
	}
	return found[0], nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*authoring.User, error) {
	const op = "gorm_get_user_by_username"
	found, err := s.users.GetByUsernames(ctx, nil, []string{username})
	if err != nil {
		return nil, db.TranslateError(op, err)
	}
	if len(found) == 0 {
		return nil, faults.NotFound(op, "user %q not found", username)
	}
	return found[0], nil
}

func (s *Store) CreateCourse(ctx context.Context, c *authoring.AuthoredCourse) error {
	return s.transaction(ctx, "gorm_create_course", func(tx *gorm.DB) error {
		if _, err := s.courses.Create(ctx, tx, []*authoring.AuthoredCourse{c}); err != nil {
			return err
		}
		return s.sections.ReplaceForCourse(ctx, tx, c.ID, c.Sections)
	})
}

func (s *Store) GetCourse(ctx context.Context, id uuid.UUID) (*authoring.AuthoredCourse, error) {
	const op = "gorm_get_course"
	found, err := s.courses.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, db.TranslateError(op, err)
	}
	if len(found) == 0 {
		return nil, faults.NotFound(op, "course %s not found", id)
	}
	return found[0], nil
}

func (s *Store) ListCoursesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error) {
	out, err := s.courses.ListByOwner(ctx, nil, ownerID)
	if err != nil {
		return nil, db.TranslateError("gorm_list_courses", err)
	}
	return out, nil
}

func (s *Store) SearchCoursesByTitle(ctx context.Context, query string, limit int) ([]*authoring.AuthoredCourse, error) {
	out, err := s.courses.SearchByTitle(ctx, nil, query, limit)
	if err != nil {
		return nil, db.TranslateError("gorm_search_courses", err)
	}
	return out, nil
}

func (s *Store) UpdateCourse(ctx context.Context, c *authoring.AuthoredCourse, expectedVersion int) error {
	const op = "gorm_update_course"
	return s.transaction(ctx, op, func(tx *gorm.DB) error {
		written, err := s.courses.UpdateIfVersion(ctx, tx, c, expectedVersion)
		if err != nil {
			return err
		}
		if !written {
			exists, err := s.courses.Exists(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if !exists {
				return faults.NotFound(op, "course %s not found", c.ID)
			}
			return faults.Conflict(op, "course %s changed since version %d", c.ID, expectedVersion)
		}
		return s.sections.ReplaceForCourse(ctx, tx, c.ID, c.Sections)
	})
}

func (s *Store) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	const op = "gorm_delete_course"
	return s.transaction(ctx, op, func(tx *gorm.DB) error {
		if err := s.sections.DeleteByCourseIDs(ctx, tx, []uuid.UUID{id}); err != nil {
			return err
		}
		n, err := s.courses.DeleteByIDs(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if n == 0 {
			return faults.NotFound(op, "course %s not found", id)
		}
		return nil
	})
}
