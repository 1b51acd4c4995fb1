package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, int, error)
	ListAll(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimetableEntry, error)
	ListForConflicts(ctx context.Context, exec sqlx.ExtContext, studentID string, teacherIDs []string) ([]models.TimetableEntry, error)
	ListInRoom(ctx context.Context, exec sqlx.ExtContext, room string, day int) ([]models.TimetableEntry, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error)
	LockStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) error
}

type subjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindForShare(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type availabilityReader interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.AvailabilityFilter) ([]models.Availability, error)
}

// TimetableServiceConfig carries the optional collaborators of TimetableService.
type TimetableServiceConfig struct {
	CheckRooms bool
	CacheTTL   time.Duration
	Cache      *CacheService
	Metrics    *MetricsService
	Exporter   *export.CSVExporter
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// TimetableService owns manual timetable writes, listings and exports.
type TimetableService struct {
	entries      timetableRepository
	subjects     subjectLookup
	students     studentLookup
	teachers     teacherLocker
	availability availabilityReader
	tx           txProvider
	checkRooms   bool
	cacheTTL     time.Duration
	cache        *CacheService
	metrics      *MetricsService
	exporter     *export.CSVExporter
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(
	entries timetableRepository,
	subjects subjectLookup,
	students studentLookup,
	teachers teacherLocker,
	availability availabilityReader,
	tx txProvider,
	cfg TimetableServiceConfig,
) *TimetableService {
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Exporter == nil {
		cfg.Exporter = export.NewCSVExporter()
	}
	return &TimetableService{
		entries:      entries,
		subjects:     subjects,
		students:     students,
		teachers:     teachers,
		availability: availability,
		tx:           tx,
		checkRooms:   cfg.CheckRooms,
		cacheTTL:     cfg.CacheTTL,
		cache:        cfg.Cache,
		metrics:      cfg.Metrics,
		exporter:     cfg.Exporter,
		validator:    cfg.Validator,
		logger:       cfg.Logger,
	}
}

type cachedTimetablePage struct {
	Items []models.TimetableEntryDetail `json:"items"`
	Total int                           `json:"total"`
}

// List returns entries ordered by day and start time. The bool reports a cache hit.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, *models.Pagination, bool, error) {
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	key := timetableCacheKey(filter)

	var cached cachedTimetablePage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: cached.Total}, true, nil
	}

	items, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, nil, false, internalError(err, "failed to list timetable")
	}
	_ = s.cache.Set(ctx, key, cachedTimetablePage{Items: items, Total: total}, s.cacheTTL)
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, false, nil
}

// Get returns one entry.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableEntry, error) {
	entry, err := s.entries.FindByID(ctx, nil, id)
	if err != nil {
		return nil, lookupError(err, "timetable entry not found", "failed to load timetable entry")
	}
	return entry, nil
}

// Create books a manual entry. The write is rejected with ScheduleConflict when the
// student or teacher is already booked in an overlapping interval, and with
// TeacherUnavailable when no availability window of the teacher contains it.
func (s *TimetableService) Create(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	entry, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, entry, s.entries.Create); err != nil {
		return nil, err
	}
	s.logger.Info("timetable entry created", zap.String("entry_id", entry.ID), zap.String("student_id", entry.StudentID), zap.String("interval", entry.Interval.String()))
	return entry, nil
}

// Update replaces an entry, re-running the conflict and availability checks
// with the entry itself excluded.
func (s *TimetableService) Update(ctx context.Context, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	current, err := s.entries.FindByID(ctx, nil, id)
	if err != nil {
		return nil, lookupError(err, "timetable entry not found", "failed to load timetable entry")
	}
	entry, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	entry.ID = current.ID
	entry.CreatedAt = current.CreatedAt
	if err := s.write(ctx, entry, s.entries.Update); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes one entry.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	removed, err := s.entries.Delete(ctx, nil, id)
	if err != nil {
		return internalError(err, "failed to delete timetable entry")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}
	s.cache.InvalidateTimetables(ctx)
	return nil
}

// PurgeStudent removes every entry of a student and returns how many were removed.
func (s *TimetableService) PurgeStudent(ctx context.Context, studentID string) (removed int64, err error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return 0, lookupError(err, "student not found", "failed to load student")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.entries.LockStudent(ctx, tx, studentID); err != nil {
		err = internalError(err, "failed to lock student timetable")
		return 0, err
	}
	removed, err = s.entries.DeleteByStudent(ctx, tx, studentID)
	if err != nil {
		err = internalError(err, "failed to purge student timetable")
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit timetable purge")
		return 0, err
	}
	s.cache.InvalidateTimetables(ctx)
	return removed, nil
}

// Export renders the filtered timetable as CSV. Pagination is ignored.
func (s *TimetableService) Export(ctx context.Context, filter models.TimetableFilter) ([]byte, string, error) {
	items, err := s.entries.ListAll(ctx, filter)
	if err != nil {
		return nil, "", internalError(err, "failed to load timetable")
	}
	dataset := export.Dataset{
		Headers: []string{"Day", "Start", "End", "Subject Code", "Subject", "Teacher", "Student", "Room"},
		Rows:    make([]map[string]string, 0, len(items)),
	}
	for _, item := range items {
		room := ""
		if item.Room != nil {
			room = *item.Room
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Day":          scheduler.DayName(item.DayOfWeek),
			"Start":        item.Start.String(),
			"End":          item.End.String(),
			"Subject Code": item.SubjectCode,
			"Subject":      item.SubjectName,
			"Teacher":      item.TeacherName,
			"Student":      item.StudentName,
			"Room":         room,
		})
	}
	body, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, "", internalError(err, "failed to render timetable export")
	}
	return body, s.exporter.ContentType(), nil
}

// prepare validates the payload and resolves references outside the transaction.
func (s *TimetableService) prepare(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid timetable entry payload")
	}
	iv := req.Interval()
	if err := iv.Validate(); err != nil {
		return nil, intervalError(err)
	}

	subject, err := s.subjects.FindByID(ctx, trimmed(req.SubjectID))
	if err != nil {
		return nil, lookupError(err, "subject not found", "failed to load subject")
	}
	teacherID := trimmed(req.TeacherID)
	if teacherID == "" {
		teacherID = subject.TeacherID
	}
	if teacherID != subject.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherId does not match the subject's teacher")
	}
	if _, err := s.students.FindByID(ctx, trimmed(req.StudentID)); err != nil {
		return nil, lookupError(err, "student not found", "failed to load student")
	}

	entry := &models.TimetableEntry{
		SubjectID: subject.ID,
		TeacherID: teacherID,
		StudentID: trimmed(req.StudentID),
		Interval:  iv,
	}
	if req.Room != nil {
		if room := trimmed(*req.Room); room != "" {
			entry.Room = &room
		}
	}
	return entry, nil
}

// write runs check-then-insert atomically: the student advisory lock and the
// teacher row lock are held until commit.
func (s *TimetableService) write(ctx context.Context, entry *models.TimetableEntry, persist func(context.Context, sqlx.ExtContext, *models.TimetableEntry) error) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.entries.LockStudent(ctx, tx, entry.StudentID); err != nil {
		err = internalError(err, "failed to lock student timetable")
		return err
	}
	// Holds off a concurrent reassignment until commit.
	subject, err := s.subjects.FindForShare(ctx, tx, entry.SubjectID)
	if err != nil {
		err = lookupError(err, "subject not found", "failed to load subject")
		return err
	}
	if subject.TeacherID != entry.TeacherID {
		err = appErrors.Clone(appErrors.ErrConflict, "subject was reassigned to another teacher, retry")
		return err
	}
	locked, err := s.teachers.LockForUpdate(ctx, tx, []string{entry.TeacherID})
	if err != nil {
		err = internalError(err, "failed to lock teacher")
		return err
	}
	if len(locked) == 0 {
		err = appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		return err
	}

	if err = s.checkConflicts(ctx, tx, entry); err != nil {
		return err
	}
	if err = s.checkAvailability(ctx, tx, entry); err != nil {
		return err
	}

	if err = persist(ctx, tx, entry); err != nil {
		err = writeError(err, "failed to save timetable entry")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit timetable entry")
		return err
	}
	s.cache.InvalidateTimetables(ctx)
	return nil
}

func (s *TimetableService) checkConflicts(ctx context.Context, tx *sqlx.Tx, entry *models.TimetableEntry) error {
	existing, err := s.entries.ListForConflicts(ctx, tx, entry.StudentID, []string{entry.TeacherID})
	if err != nil {
		return internalError(err, "failed to load existing timetable")
	}
	candidate := entry.Booking()
	checkRooms := s.checkRooms && candidate.Room != ""
	if checkRooms {
		inRoom, err := s.entries.ListInRoom(ctx, tx, candidate.Room, candidate.DayOfWeek)
		if err != nil {
			return internalError(err, "failed to load room timetable")
		}
		existing = append(existing, inRoom...)
	}

	conflicts := dedupeConflicts(scheduler.FindConflicts(candidate, models.Bookings(existing), checkRooms))
	if len(conflicts) == 0 {
		return nil
	}
	s.metrics.RecordRejectedWrite(appErrors.ErrScheduleConflict.Code)
	first := conflicts[0]
	message := fmt.Sprintf("%s already booked %s", dimensionLabel(first.Dimension), first.With.Interval)
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrScheduleConflict, message), conflictDetails(conflicts))
}

func (s *TimetableService) checkAvailability(ctx context.Context, tx *sqlx.Tx, entry *models.TimetableEntry) error {
	windows, err := s.availability.List(ctx, tx, models.AvailabilityFilter{TeacherID: entry.TeacherID})
	if err != nil {
		return internalError(err, "failed to load teacher availability")
	}
	if scheduler.NewRegistry(models.Windows(windows)...).IsAvailable(entry.TeacherID, entry.Interval) {
		return nil
	}
	s.metrics.RecordRejectedWrite(appErrors.ErrTeacherUnavailable.Code)
	return appErrors.Clone(appErrors.ErrTeacherUnavailable, fmt.Sprintf("teacher is not available %s", entry.Interval))
}

// ConflictDetail is the client view of one collision.
type ConflictDetail struct {
	Dimension string          `json:"dimension"`
	EntryID   string          `json:"entryId"`
	SubjectID string          `json:"subjectId"`
	StudentID string          `json:"studentId"`
	TeacherID string          `json:"teacherId"`
	Room      string          `json:"room,omitempty"`
	DayOfWeek int             `json:"dayOfWeek"`
	StartTime scheduler.Clock `json:"startTime"`
	EndTime   scheduler.Clock `json:"endTime"`
}

func conflictDetails(conflicts []scheduler.Conflict) []ConflictDetail {
	out := make([]ConflictDetail, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, ConflictDetail{
			Dimension: c.Dimension,
			EntryID:   c.With.EntryID,
			SubjectID: c.With.SubjectID,
			StudentID: c.With.StudentID,
			TeacherID: c.With.TeacherID,
			Room:      c.With.Room,
			DayOfWeek: c.With.DayOfWeek,
			StartTime: c.With.Start,
			EndTime:   c.With.End,
		})
	}
	return out
}

// dedupeConflicts drops repeats caused by an entry loaded by both the
// student/teacher read and the room read.
func dedupeConflicts(conflicts []scheduler.Conflict) []scheduler.Conflict {
	seen := make(map[string]struct{}, len(conflicts))
	out := conflicts[:0]
	for _, c := range conflicts {
		key := c.Dimension + "|" + c.With.EntryID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func dimensionLabel(dimension string) string {
	switch dimension {
	case scheduler.DimensionStudent:
		return "student"
	case scheduler.DimensionTeacher:
		return "teacher"
	case scheduler.DimensionRoom:
		return "room"
	}
	return dimension
}
