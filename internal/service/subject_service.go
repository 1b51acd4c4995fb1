package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectTeachers interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error)
}

type subjectEntryCounter interface {
	CountBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int, error)
}

// CreateSubjectRequest represents payload for creating subjects.
type CreateSubjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=50"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	TeacherID   string `json:"teacherId" validate:"required"`
}

// UpdateSubjectRequest represents payload for updating subjects.
type UpdateSubjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=50"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	TeacherID   string `json:"teacherId" validate:"required"`
}

// SubjectService orchestrates subject operations.
type SubjectService struct {
	repo      subjectRepository
	teachers  subjectTeachers
	entries   subjectEntryCounter
	tx        txProvider
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, teachers subjectTeachers, entries subjectEntryCounter, tx txProvider, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, teachers: teachers, entries: entries, tx: tx, cache: cache, validator: validate, logger: logger}
}

// List returns subjects plus pagination data.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list subjects")
	}
	return subjects, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	return subject, nil
}

// Create registers a subject under its owning teacher.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	code := normalizeCode(req.Code)
	if err := s.ensureUniqueCode(ctx, code, ""); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Name:        trimmed(req.Name),
		Code:        code,
		Description: trimmed(req.Description),
		TeacherID:   trimmed(req.TeacherID),
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, writeError(err, "failed to create subject")
	}
	return subject, nil
}

// Update modifies a subject. Moving it to another teacher is refused while
// timetable entries still carry the current teacher. The subject row and both
// teacher rows stay locked until commit, the same locks timetable writers take,
// so no entry with the old teacher can land after the count.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (subject *models.Subject, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	code := normalizeCode(req.Code)
	if err = s.ensureUniqueCode(ctx, code, id); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	subject, err = s.repo.FindForUpdate(ctx, tx, id)
	if err != nil {
		err = lookupError(err, "subject not found", "failed to load subject")
		return nil, err
	}

	teacherID := trimmed(req.TeacherID)
	if teacherID != subject.TeacherID {
		if err = s.lockTeachers(ctx, tx, subject.TeacherID, teacherID); err != nil {
			return nil, err
		}
		if err = s.ensureUnreferenced(ctx, tx, id, "subject is scheduled; purge its timetable entries before reassigning the teacher"); err != nil {
			return nil, err
		}
	}

	subject.Name = trimmed(req.Name)
	subject.Code = code
	subject.Description = trimmed(req.Description)
	subject.TeacherID = teacherID
	if err = s.repo.Update(ctx, tx, subject); err != nil {
		err = writeError(err, "failed to update subject")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit subject")
		return nil, err
	}
	s.cache.InvalidateTimetables(ctx)
	return subject, nil
}

// Delete removes a subject that no timetable entry references.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return lookupError(err, "subject not found", "failed to load subject")
	}
	if err := s.ensureUnreferenced(ctx, nil, id, "subject is referenced by timetable entries"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "failed to delete subject")
	}
	return nil
}

func (s *SubjectService) ensureTeacher(ctx context.Context, teacherID string) error {
	if _, err := s.teachers.FindByID(ctx, trimmed(teacherID)); err != nil {
		return lookupError(err, "teacher not found", "failed to load teacher")
	}
	return nil
}

// lockTeachers locks the current and the new owner; the new one must exist.
func (s *SubjectService) lockTeachers(ctx context.Context, tx *sqlx.Tx, current, next string) error {
	ids := []string{current, next}
	if next < current {
		ids = []string{next, current}
	}
	locked, err := s.teachers.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return internalError(err, "failed to lock teachers")
	}
	for _, id := range locked {
		if id == next {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
}

func (s *SubjectService) ensureUniqueCode(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to validate subject code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}
	return nil
}

func (s *SubjectService) ensureUnreferenced(ctx context.Context, exec sqlx.ExtContext, id, message string) error {
	count, err := s.entries.CountBySubject(ctx, exec, id)
	if err != nil {
		return internalError(err, "failed to inspect subject dependents")
	}
	if count > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrHasDependents, message), map[string]int{"timetableEntries": count})
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
