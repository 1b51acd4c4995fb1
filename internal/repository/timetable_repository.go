package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const (
	entryColumns       = "id, subject_id, teacher_id, student_id, day_of_week, start_minute, end_minute, room, created_at, updated_at"
	entryDetailColumns = "e.id, e.subject_id, e.teacher_id, e.student_id, e.day_of_week, e.start_minute, e.end_minute, e.room, e.created_at, e.updated_at, s.name AS subject_name, s.code AS subject_code, t.name AS teacher_name, st.name AS student_name"
	entryJoins         = "JOIN subjects s ON s.id = e.subject_id JOIN teachers t ON t.id = e.teacher_id JOIN students st ON st.id = e.student_id"
	entryOrder         = "e.day_of_week ASC, e.start_minute ASC, e.end_minute ASC, e.id ASC"
)

// TimetableRepository persists timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func entryFilter(filter models.TimetableFilter) listQuery {
	var q listQuery
	if filter.TeacherID != "" {
		q.add("e.teacher_id = $%d", filter.TeacherID)
	}
	if len(filter.TeacherIDs) > 0 {
		q.add("e.teacher_id = ANY($%d)", pq.Array(filter.TeacherIDs))
	}
	if filter.StudentID != "" {
		q.add("e.student_id = $%d", filter.StudentID)
	}
	if filter.SubjectID != "" {
		q.add("e.subject_id = $%d", filter.SubjectID)
	}
	if filter.DayOfWeek != nil {
		q.add("e.day_of_week = $%d", *filter.DayOfWeek)
	}
	return q
}

// List returns a page of entries with display names, ordered by day then start time.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, int, error) {
	q := entryFilter(filter)
	where := q.where("WHERE 1=1")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM timetable_entries e %s %s ORDER BY %s LIMIT %d OFFSET %d", entryDetailColumns, entryJoins, where, entryOrder, size, (page-1)*size)
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, q.args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable entries: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timetable_entries e "+where, q.args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable entries: %w", err)
	}
	return entries, total, nil
}

// ListAll returns every matching entry with display names, unpaginated.
func (r *TimetableRepository) ListAll(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	q := entryFilter(filter)
	query := fmt.Sprintf("SELECT %s FROM timetable_entries e %s %s ORDER BY %s", entryDetailColumns, entryJoins, q.where("WHERE 1=1"), entryOrder)
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, q.args...); err != nil {
		return nil, fmt.Errorf("export timetable entries: %w", err)
	}
	return entries, nil
}

// FindByID fetches an entry by id.
func (r *TimetableRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimetableEntry, error) {
	query := "SELECT " + entryColumns + " FROM timetable_entries WHERE id = $1"
	var entry models.TimetableEntry
	if err := sqlx.GetContext(ctx, pick(exec, r.db), &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListForConflicts returns the entries that can collide with bookings of the
// student or of any of the teachers. An empty studentID matches teachers only.
func (r *TimetableRepository) ListForConflicts(ctx context.Context, exec sqlx.ExtContext, studentID string, teacherIDs []string) ([]models.TimetableEntry, error) {
	if teacherIDs == nil {
		teacherIDs = []string{}
	}
	query := "SELECT " + entryColumns + " FROM timetable_entries WHERE (student_id = $1 OR teacher_id = ANY($2)) ORDER BY day_of_week ASC, start_minute ASC, id ASC"
	var entries []models.TimetableEntry
	if err := sqlx.SelectContext(ctx, pick(exec, r.db), &entries, query, studentID, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list conflicting entries: %w", err)
	}
	return entries, nil
}

// ListInRoom returns the entries booked in room on day. Room labels compare case-insensitively.
func (r *TimetableRepository) ListInRoom(ctx context.Context, exec sqlx.ExtContext, room string, day int) ([]models.TimetableEntry, error) {
	query := "SELECT " + entryColumns + " FROM timetable_entries WHERE LOWER(TRIM(room)) = LOWER(TRIM($1)) AND day_of_week = $2 ORDER BY start_minute ASC, id ASC"
	var entries []models.TimetableEntry
	if err := sqlx.SelectContext(ctx, pick(exec, r.db), &entries, query, room, day); err != nil {
		return nil, fmt.Errorf("list room entries: %w", err)
	}
	return entries, nil
}

// Create inserts an entry.
func (r *TimetableRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	return r.CreateBatch(ctx, exec, []*models.TimetableEntry{entry})
}

// CreateBatch inserts entries one by one within exec.
func (r *TimetableRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, entries []*models.TimetableEntry) error {
	target := pick(exec, r.db)
	now := time.Now().UTC()
	const query = `INSERT INTO timetable_entries (id, subject_id, teacher_id, student_id, day_of_week, start_minute, end_minute, room, created_at, updated_at)
		VALUES (:id, :subject_id, :teacher_id, :student_id, :day_of_week, :start_minute, :end_minute, :room, :created_at, :updated_at)`
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("create timetable entry: %w", err)
		}
	}
	return nil
}

// Update rewrites an entry.
func (r *TimetableRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries SET subject_id = :subject_id, teacher_id = :teacher_id, student_id = :student_id, day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, room = :room, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(exec, r.db), query, entry); err != nil {
		return fmt.Errorf("update timetable entry: %w", err)
	}
	return nil
}

// Delete removes an entry and reports whether it existed.
func (r *TimetableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	res, err := pick(exec, r.db).ExecContext(ctx, "DELETE FROM timetable_entries WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete timetable entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete timetable entry: %w", err)
	}
	return affected > 0, nil
}

// DeleteByStudent purges a student's timetable and returns the number of rows removed.
func (r *TimetableRepository) DeleteByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (int64, error) {
	res, err := pick(exec, r.db).ExecContext(ctx, "DELETE FROM timetable_entries WHERE student_id = $1", studentID)
	if err != nil {
		return 0, fmt.Errorf("purge student timetable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge student timetable: %w", err)
	}
	return affected, nil
}

// CountByStudent counts the entries of a student.
func (r *TimetableRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	return r.count(ctx, nil, "student_id", studentID)
}

// CountBySubject counts the entries of a subject.
func (r *TimetableRepository) CountBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int, error) {
	return r.count(ctx, exec, "subject_id", subjectID)
}

func (r *TimetableRepository) count(ctx context.Context, exec sqlx.ExtContext, column, id string) (int, error) {
	var total int
	if err := sqlx.GetContext(ctx, pick(exec, r.db), &total, "SELECT COUNT(*) FROM timetable_entries WHERE "+column+" = $1", id); err != nil {
		return 0, fmt.Errorf("count timetable entries by %s: %w", column, err)
	}
	return total, nil
}

// LockStudent serialises writers of one student's timetable until the transaction ends.
func (r *TimetableRepository) LockStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) error {
	if _, err := pick(exec, r.db).ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "timetable:"+studentID); err != nil {
		return fmt.Errorf("lock student timetable: %w", err)
	}
	return nil
}
