package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const subjectColumns = "id, name, code, description, teacher_id, created_at, updated_at"

// SubjectRepository handles persistence of subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects matching filters with the total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var q listQuery
	if filter.Search != "" {
		q.add("(LOWER(name) LIKE $%[1]d OR LOWER(code) LIKE $%[1]d)", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.TeacherID != "" {
		q.add("teacher_id = $%d", filter.TeacherID)
	}
	base := q.where("FROM subjects WHERE 1=1")

	order := sortClause(filter.SortBy, filter.SortOrder, map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}, "created_at")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", subjectColumns, base, order, size, (page-1)*size)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, q.args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, q.args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// ListCatalog returns every subject in generation order: oldest first, ties broken by code.
// Inside a transaction the rows stay share-locked, so no teacher reassignment can
// commit until the caller does.
func (r *SubjectRepository) ListCatalog(ctx context.Context, exec sqlx.ExtContext) ([]models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects ORDER BY created_at ASC, code ASC FOR SHARE"
	var subjects []models.Subject
	if err := sqlx.SelectContext(ctx, pick(exec, r.db), &subjects, query); err != nil {
		return nil, fmt.Errorf("list subject catalog: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects WHERE id = $1"
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindForShare reads a subject and share-locks it until the transaction ends.
func (r *SubjectRepository) FindForShare(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	return r.findLocked(ctx, exec, id, "FOR SHARE")
}

// FindForUpdate reads a subject and locks it exclusively until the transaction ends.
func (r *SubjectRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	return r.findLocked(ctx, exec, id, "FOR UPDATE")
}

func (r *SubjectRepository) findLocked(ctx context.Context, exec sqlx.ExtContext, id, mode string) (*models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects WHERE id = $1 " + mode
	var subject models.Subject
	if err := sqlx.GetContext(ctx, pick(exec, r.db), &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ExistsByCode checks whether another subject already uses code.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM subjects WHERE UPPER(code) = UPPER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, name, code, description, teacher_id, created_at, updated_at)
		VALUES (:id, :name, :code, :description, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, description = :description, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(exec, r.db), query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
