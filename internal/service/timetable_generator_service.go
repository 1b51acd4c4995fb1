package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// JobTypeGenerate tags queued regeneration jobs.
const JobTypeGenerate = "timetable.generate"

type generationStore interface {
	LockStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) error
	DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error)
	ListForConflicts(ctx context.Context, exec sqlx.ExtContext, studentID string, teacherIDs []string) ([]models.TimetableEntry, error)
	ListInRoom(ctx context.Context, exec sqlx.ExtContext, room string, day int) ([]models.TimetableEntry, error)
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, entries []*models.TimetableEntry) error
}

type subjectCatalog interface {
	ListCatalog(ctx context.Context, exec sqlx.ExtContext) ([]models.Subject, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type studentLocker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// GeneratorConfig carries the tuning and optional collaborators of the generator.
type GeneratorConfig struct {
	Engine  *scheduler.Engine
	Rooms   []string
	LockTTL time.Duration
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// TimetableGeneratorService regenerates student timetables with the slot engine.
// A run replaces the student's whole timetable on success and leaves it untouched
// on failure.
type TimetableGeneratorService struct {
	entries      generationStore
	subjects     subjectCatalog
	students     studentDirectory
	teachers     teacherLocker
	availability availabilityReader
	locks        studentLocker
	tx           txProvider

	engine    *scheduler.Engine
	rooms     []string
	lockTTL   time.Duration
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	queue   *jobs.Queue
	tracker *jobs.Tracker
}

// NewTimetableGeneratorService constructs the generator.
func NewTimetableGeneratorService(
	entries generationStore,
	subjects subjectCatalog,
	students studentDirectory,
	teachers teacherLocker,
	availability availabilityReader,
	locks studentLocker,
	tx txProvider,
	cfg GeneratorConfig,
) *TimetableGeneratorService {
	if cfg.Engine == nil {
		cfg.Engine = scheduler.NewEngine(scheduler.EngineConfig{})
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &TimetableGeneratorService{
		entries:      entries,
		subjects:     subjects,
		students:     students,
		teachers:     teachers,
		availability: availability,
		locks:        locks,
		tx:           tx,
		engine:       cfg.Engine,
		rooms:        cfg.Rooms,
		lockTTL:      cfg.LockTTL,
		cache:        cfg.Cache,
		metrics:      cfg.Metrics,
		validator:    cfg.Validator,
		logger:       cfg.Logger,
	}
}

// UseQueue enables bulk regeneration. The queue handler must be HandleJob.
func (s *TimetableGeneratorService) UseQueue(queue *jobs.Queue, tracker *jobs.Tracker) {
	s.queue = queue
	s.tracker = tracker
}

// Generate rebuilds the timetable of one student. Subjects that find no slot are
// reported in the result, never as an error.
func (s *TimetableGeneratorService) Generate(ctx context.Context, studentID string) (*models.GenerationResult, error) {
	start := time.Now()
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		err = lookupError(err, "student not found", "failed to load student")
		if errors.Is(err, appErrors.ErrNotFound) {
			s.reject(studentID, err, time.Since(start))
		}
		return nil, err
	}

	release, err := s.acquire(ctx, studentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("failed to release generation lock", zap.String("student_id", studentID), zap.Error(err))
		}
	}()

	result, err := s.regenerate(ctx, studentID)
	if errors.Is(err, appErrors.ErrNoSubjects) {
		s.reject(studentID, err, time.Since(start))
		return nil, err
	}
	if err != nil {
		s.metrics.ObserveGeneration(GenerationFailed, 0, 0, time.Since(start))
		s.logger.Error("timetable generation failed", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	outcome := GenerationComplete
	if result.ScheduledCount < result.RequestedCount {
		outcome = GenerationPartial
	}
	s.metrics.ObserveGeneration(outcome, result.ScheduledCount, len(result.Unscheduled), time.Since(start))
	s.cache.InvalidateTimetables(ctx)
	s.logger.Info("timetable generated",
		zap.String("student_id", studentID),
		zap.Int("scheduled", result.ScheduledCount),
		zap.Int("requested", result.RequestedCount),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// reject records a run refused for a reason the caller has to fix.
func (s *TimetableGeneratorService) reject(studentID string, err error, took time.Duration) {
	s.metrics.ObserveGeneration(GenerationRejected, 0, 0, took)
	s.logger.Warn("timetable generation rejected", zap.String("student_id", studentID), zap.Error(err))
}

// acquire takes the cross-replica fast-fail lock. When the lock backend is down
// the run still proceeds; the advisory lock taken in regenerate serialises it.
func (s *TimetableGeneratorService) acquire(ctx context.Context, studentID string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if s.locks == nil {
		return noop, nil
	}
	release, ok, err := s.locks.TryAcquire(ctx, "student:"+studentID, s.lockTTL)
	if err != nil {
		s.logger.Warn("generation lock unavailable", zap.String("student_id", studentID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrLocked, "timetable generation already running for this student")
	}
	return release, nil
}

func (s *TimetableGeneratorService) regenerate(ctx context.Context, studentID string) (result *models.GenerationResult, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.entries.LockStudent(ctx, tx, studentID); err != nil {
		err = internalError(err, "failed to lock student timetable")
		return nil, err
	}

	catalog, err := s.subjects.ListCatalog(ctx, tx)
	if err != nil {
		err = internalError(err, "failed to load subjects")
		return nil, err
	}
	if len(catalog) == 0 {
		err = appErrors.Clone(appErrors.ErrNoSubjects, "no subjects to schedule")
		return nil, err
	}

	teacherIDs := catalogTeachers(catalog)
	if _, err = s.teachers.LockForUpdate(ctx, tx, teacherIDs); err != nil {
		err = internalError(err, "failed to lock teachers")
		return nil, err
	}
	if _, err = s.entries.DeleteByStudent(ctx, tx, studentID); err != nil {
		err = internalError(err, "failed to clear previous timetable")
		return nil, err
	}

	existing, err := s.entries.ListForConflicts(ctx, tx, studentID, teacherIDs)
	if err != nil {
		err = internalError(err, "failed to load existing timetable")
		return nil, err
	}
	roomed, err := s.roomBookings(ctx, tx)
	if err != nil {
		return nil, err
	}
	windows, err := s.availability.List(ctx, tx, models.AvailabilityFilter{TeacherIDs: teacherIDs})
	if err != nil {
		err = internalError(err, "failed to load availability")
		return nil, err
	}

	demands := make([]scheduler.SubjectDemand, 0, len(catalog))
	for _, subject := range catalog {
		demands = append(demands, scheduler.SubjectDemand{SubjectID: subject.ID, TeacherID: subject.TeacherID})
	}
	outcome := s.engine.Assign(scheduler.Input{
		StudentID:    studentID,
		Subjects:     demands,
		Availability: scheduler.NewRegistry(models.Windows(windows)...),
		Existing:     append(models.Bookings(existing), roomed...),
	})

	created := make([]*models.TimetableEntry, 0, len(outcome.Placements))
	for _, placement := range outcome.Placements {
		entry := models.EntryFromBooking(placement)
		created = append(created, &entry)
	}
	if err = s.entries.CreateBatch(ctx, tx, created); err != nil {
		err = writeError(err, "failed to save generated timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = internalError(err, "failed to commit generated timetable")
		return nil, err
	}

	return buildGenerationResult(studentID, catalog, created, outcome), nil
}

// roomBookings loads entries held in the configured rooms on catalog days so the
// engine can keep rooms free of collisions. Without fixed rooms nothing is loaded.
func (s *TimetableGeneratorService) roomBookings(ctx context.Context, tx *sqlx.Tx) ([]scheduler.Booking, error) {
	if len(s.rooms) == 0 {
		return nil, nil
	}
	var out []scheduler.Booking
	for _, room := range s.rooms {
		for _, day := range s.engine.Catalog().Days {
			entries, err := s.entries.ListInRoom(ctx, tx, room, day)
			if err != nil {
				return nil, internalError(err, "failed to load room timetable")
			}
			out = append(out, models.Bookings(entries)...)
		}
	}
	return out, nil
}

func buildGenerationResult(studentID string, catalog []models.Subject, created []*models.TimetableEntry, outcome scheduler.Result) *models.GenerationResult {
	byID := make(map[string]models.Subject, len(catalog))
	for _, subject := range catalog {
		byID[subject.ID] = subject
	}
	result := &models.GenerationResult{
		StudentID:      studentID,
		CreatedEntries: make([]models.TimetableEntry, 0, len(created)),
		ScheduledCount: outcome.Scheduled,
		RequestedCount: outcome.Requested,
		Unscheduled:    make([]models.UnscheduledSubject, 0, len(outcome.Unscheduled)),
	}
	for _, entry := range created {
		result.CreatedEntries = append(result.CreatedEntries, *entry)
	}
	for _, demand := range outcome.Unscheduled {
		subject := byID[demand.SubjectID]
		result.Unscheduled = append(result.Unscheduled, models.UnscheduledSubject{
			SubjectID: demand.SubjectID,
			Code:      subject.Code,
			Name:      subject.Name,
			TeacherID: demand.TeacherID,
		})
	}
	return result
}

// catalogTeachers returns the distinct teachers of the catalog in id order,
// the order in which their rows are locked.
func catalogTeachers(catalog []models.Subject) []string {
	seen := make(map[string]struct{}, len(catalog))
	ids := make([]string, 0, len(catalog))
	for _, subject := range catalog {
		if _, ok := seen[subject.TeacherID]; ok {
			continue
		}
		seen[subject.TeacherID] = struct{}{}
		ids = append(ids, subject.TeacherID)
	}
	sort.Strings(ids)
	return ids
}

// GenerateBulk queues one regeneration job per student. An empty list means every student.
func (s *TimetableGeneratorService) GenerateBulk(ctx context.Context, req dto.BulkGenerateRequest) (*dto.BulkGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk generation payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "bulk generation is not configured")
	}
	studentIDs := req.StudentIDs
	if len(studentIDs) == 0 {
		ids, err := s.students.ListIDs(ctx)
		if err != nil {
			return nil, internalError(err, "failed to list students")
		}
		studentIDs = ids
	}

	resp := &dto.BulkGenerateResponse{Jobs: make([]dto.GenerationJob, 0, len(studentIDs))}
	seen := make(map[string]struct{}, len(studentIDs))
	for _, studentID := range studentIDs {
		studentID = trimmed(studentID)
		if _, dup := seen[studentID]; dup || studentID == "" {
			continue
		}
		seen[studentID] = struct{}{}
		jobID, err := s.queue.Enqueue(jobs.Job{Type: JobTypeGenerate, Payload: studentID})
		if err != nil {
			if errors.Is(err, jobs.ErrQueueClosed) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation queue is not running")
			}
			return nil, internalError(err, "failed to queue generation")
		}
		resp.Jobs = append(resp.Jobs, dto.GenerationJob{StudentID: studentID, JobID: jobID})
	}
	return resp, nil
}

// HandleJob is the queue handler for JobTypeGenerate jobs. Failures that a
// retry cannot fix are marked permanent.
func (s *TimetableGeneratorService) HandleJob(ctx context.Context, job jobs.Job) error {
	studentID, ok := job.Payload.(string)
	if !ok || job.Type != JobTypeGenerate {
		return jobs.Permanent(fmt.Errorf("unexpected job %s of type %s", job.ID, job.Type))
	}
	_, err := s.Generate(ctx, studentID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, appErrors.ErrNotFound), errors.Is(err, appErrors.ErrNoSubjects), errors.Is(err, appErrors.ErrLocked):
		return jobs.Permanent(err)
	default:
		return err
	}
}

// JobStatus reports the state of a queued regeneration.
func (s *TimetableGeneratorService) JobStatus(id string) (*jobs.State, error) {
	state, ok := s.tracker.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &state, nil
}
