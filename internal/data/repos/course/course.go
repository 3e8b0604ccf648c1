package course

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

type AuthoredCourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, courses []*authoring.AuthoredCourse) ([]*authoring.AuthoredCourse, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*authoring.AuthoredCourse, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error)
	// SearchByTitle matches titles containing query, ignoring case.
	SearchByTitle(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*authoring.AuthoredCourse, error)
	Exists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	// UpdateIfVersion writes the course row only when the stored version
	// equals expected. It reports whether a row was written.
	UpdateIfVersion(ctx context.Context, tx *gorm.DB, c *authoring.AuthoredCourse, expected int) (bool, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
}

type authoredCourseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuthoredCourseRepo(db *gorm.DB, baseLog *logger.Logger) AuthoredCourseRepo {
	repoLog := baseLog.With("repo", "AuthoredCourseRepo")
	return &authoredCourseRepo{db: db, log: repoLog}
}

func (r *authoredCourseRepo) Create(ctx context.Context, tx *gorm.DB, courses []*authoring.AuthoredCourse) ([]*authoring.AuthoredCourse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(courses) == 0 {
		return []*authoring.AuthoredCourse{}, nil
	}
	if err := transaction.WithContext(ctx).
		Omit(clause.Associations).
		Create(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func withSections(db *gorm.DB) *gorm.DB {
	return db.Preload("Sections", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *authoredCourseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*authoring.AuthoredCourse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*authoring.AuthoredCourse
	if len(ids) == 0 {
		return results, nil
	}
	if err := withSections(transaction.WithContext(ctx)).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *authoredCourseRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*authoring.AuthoredCourse
	if err := withSections(transaction.WithContext(ctx)).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *authoredCourseRepo) SearchByTitle(ctx context.Context, tx *gorm.DB, query string, limit int) ([]*authoring.AuthoredCourse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = authoring.DefaultTitleSearchLimit
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
	var results []*authoring.AuthoredCourse
	if err := withSections(transaction.WithContext(ctx)).
		Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *authoredCourseRepo) Exists(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&authoring.AuthoredCourse{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *authoredCourseRepo) UpdateIfVersion(ctx context.Context, tx *gorm.DB, c *authoring.AuthoredCourse, expected int) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	res := transaction.WithContext(ctx).
		Model(c).
		Where("version = ?", expected).
		Select("title", "description", "metadata", "snapshots",
			"facilitators", "educational_resources", "additional_resources",
			"version", "updated_at").
		Updates(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *authoredCourseRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&authoring.AuthoredCourse{})
	return res.RowsAffected, res.Error
}
