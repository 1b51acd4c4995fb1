package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type studentEntryCounter interface {
	CountByStudent(ctx context.Context, studentID string) (int, error)
}

// CreateStudentRequest represents payload for creating students.
type CreateStudentRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Grade int    `json:"grade" validate:"gte=0,lte=13"`
}

// UpdateStudentRequest represents payload for updating students.
type UpdateStudentRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Grade int    `json:"grade" validate:"gte=0,lte=13"`
}

// StudentService orchestrates student CRUD.
type StudentService struct {
	repo      studentRepository
	entries   studentEntryCounter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, entries studentEntryCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, entries: entries, cache: cache, validator: validate, logger: logger}
}

// List returns students plus pagination data.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	return student, nil
}

// Create registers a student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student := &models.Student{Name: trimmed(req.Name), Email: trimmed(req.Email), Grade: req.Grade}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, writeError(err, "failed to create student")
	}
	return student, nil
}

// Update modifies a student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}
	student.Name = trimmed(req.Name)
	student.Email = trimmed(req.Email)
	student.Grade = req.Grade
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, writeError(err, "failed to update student")
	}
	s.cache.InvalidateTimetables(ctx)
	return student, nil
}

// Delete removes a student without timetable entries. Entries are never cascaded;
// callers purge the timetable first.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return lookupError(err, "student not found", "failed to load student")
	}
	count, err := s.entries.CountByStudent(ctx, id)
	if err != nil {
		return internalError(err, "failed to inspect student timetable")
	}
	if count > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrHasDependents, "student still has timetable entries"), map[string]int{"timetableEntries": count})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "failed to delete student")
	}
	return nil
}
