package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type availabilityRepository interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.AvailabilityFilter) ([]models.Availability, error)
	FindByID(ctx context.Context, id string) (*models.Availability, error)
	Create(ctx context.Context, exec sqlx.ExtContext, item *models.Availability) error
	Update(ctx context.Context, exec sqlx.ExtContext, item *models.Availability) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type teacherLocker interface {
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error)
}

type teacherEntryReader interface {
	ListForConflicts(ctx context.Context, exec sqlx.ExtContext, studentID string, teacherIDs []string) ([]models.TimetableEntry, error)
}

// AvailabilityService manages teacher availability windows. Every write runs in
// a transaction holding the teacher row lock, the same lock manual timetable
// writes take, so containment checks never race window edits.
type AvailabilityService struct {
	repo      availabilityRepository
	teachers  teacherLocker
	entries   teacherEntryReader
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, teachers teacherLocker, entries teacherEntryReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, teachers: teachers, entries: entries, tx: tx, validator: validate, logger: logger}
}

// List returns windows ordered by day and start time.
func (s *AvailabilityService) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error) {
	items, err := s.repo.List(ctx, nil, filter)
	if err != nil {
		return nil, internalError(err, "failed to list availability")
	}
	return items, nil
}

// Get returns a single window.
func (s *AvailabilityService) Get(ctx context.Context, id string) (*models.Availability, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "availability not found", "failed to load availability")
	}
	return item, nil
}

// Create registers a window. It fails with Conflict when the window overlaps
// another window of the same teacher.
func (s *AvailabilityService) Create(ctx context.Context, req dto.CreateAvailabilityRequest) (item *models.Availability, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid availability payload")
	}
	iv := req.Interval()
	if err := iv.Validate(); err != nil {
		return nil, intervalError(err)
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

	teacherID := trimmed(req.TeacherID)
	registry, err := s.lockTeacher(ctx, tx, teacherID)
	if err != nil {
		return nil, err
	}

	item = &models.Availability{TeacherID: teacherID, Interval: iv}
	if err = registry.Add(item.Window()); err != nil {
		err = windowError(err)
		return nil, err
	}
	if err = s.repo.Create(ctx, tx, item); err != nil {
		err = writeError(err, "failed to create availability")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit availability")
		return nil, err
	}
	return item, nil
}

// Update moves a window. Besides the overlap rule, the edit is refused with
// HasDependents when an existing entry of the teacher would lose its cover.
func (s *AvailabilityService) Update(ctx context.Context, id string, req dto.UpdateAvailabilityRequest) (item *models.Availability, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid availability payload")
	}
	iv := req.Interval()
	if err := iv.Validate(); err != nil {
		return nil, intervalError(err)
	}

	item, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "availability not found", "failed to load availability")
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

	registry, err := s.lockTeacher(ctx, tx, item.TeacherID)
	if err != nil {
		return nil, err
	}
	item.Interval = iv
	if err = registry.Update(item.Window()); err != nil {
		err = windowError(err)
		return nil, err
	}
	if err = s.ensureCovered(ctx, tx, registry, item.TeacherID); err != nil {
		return nil, err
	}
	if err = s.repo.Update(ctx, tx, item); err != nil {
		err = writeError(err, "failed to update availability")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit availability")
		return nil, err
	}
	return item, nil
}

// Delete removes a window unless an existing entry depends on it.
func (s *AvailabilityService) Delete(ctx context.Context, id string) (err error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "availability not found", "failed to load availability")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	registry, err := s.lockTeacher(ctx, tx, item.TeacherID)
	if err != nil {
		return err
	}
	registry.Remove(item.TeacherID, item.ID)
	if err = s.ensureCovered(ctx, tx, registry, item.TeacherID); err != nil {
		return err
	}
	if err = s.repo.Delete(ctx, tx, id); err != nil {
		err = writeError(err, "failed to delete availability")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit availability")
		return err
	}
	return nil
}

// lockTeacher row-locks the teacher and loads its current windows.
func (s *AvailabilityService) lockTeacher(ctx context.Context, tx *sqlx.Tx, teacherID string) (*scheduler.Registry, error) {
	locked, err := s.teachers.LockForUpdate(ctx, tx, []string{teacherID})
	if err != nil {
		return nil, internalError(err, "failed to lock teacher")
	}
	if len(locked) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	windows, err := s.repo.List(ctx, tx, models.AvailabilityFilter{TeacherID: teacherID})
	if err != nil {
		return nil, internalError(err, "failed to load availability")
	}
	return scheduler.NewRegistry(models.Windows(windows)...), nil
}

func (s *AvailabilityService) ensureCovered(ctx context.Context, tx *sqlx.Tx, registry *scheduler.Registry, teacherID string) error {
	entries, err := s.entries.ListForConflicts(ctx, tx, "", []string{teacherID})
	if err != nil {
		return internalError(err, "failed to load teacher timetable")
	}
	var uncovered []string
	for _, entry := range entries {
		if entry.TeacherID == teacherID && !registry.IsAvailable(teacherID, entry.Interval) {
			uncovered = append(uncovered, entry.ID)
		}
	}
	if len(uncovered) > 0 {
		s.logger.Info("availability edit refused", zap.String("teacher_id", teacherID), zap.Int("uncovered", len(uncovered)))
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrHasDependents, "timetable entries would fall outside the teacher's availability"),
			map[string][]string{"entryIds": uncovered},
		)
	}
	return nil
}

func windowError(err error) *appErrors.Error {
	if errors.Is(err, scheduler.ErrUnknownWindow) {
		return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
	}
	if errors.Is(err, scheduler.ErrOverlap) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "availability overlaps an existing window")
	}
	return intervalError(err)
}
