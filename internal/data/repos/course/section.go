package course

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

type SectionRepo interface {
	// ReplaceForCourse deletes the course's sections and inserts the given
	// ones, stamping CourseID on each.
	ReplaceForCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, sections []authoring.Section) error
	DeleteByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) error
}

type sectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	repoLog := baseLog.With("repo", "SectionRepo")
	return &sectionRepo{db: db, log: repoLog}
}

func (r *sectionRepo) ReplaceForCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, sections []authoring.Section) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Delete(&authoring.Section{}).Error; err != nil {
		return err
	}
	if len(sections) == 0 {
		return nil
	}
	rows := make([]authoring.Section, len(sections))
	for i, s := range sections {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CourseID = courseID
		rows[i] = s
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *sectionRepo) DeleteByCourseIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(courseIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Delete(&authoring.Section{}).Error
}
