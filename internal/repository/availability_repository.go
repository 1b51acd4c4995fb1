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

const availabilityColumns = "id, teacher_id, day_of_week, start_minute, end_minute, created_at, updated_at"

// AvailabilityRepository persists teacher availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// List returns windows matching filter ordered by day then start time.
func (r *AvailabilityRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.AvailabilityFilter) ([]models.Availability, error) {
	var q listQuery
	if filter.TeacherID != "" {
		q.add("teacher_id = $%d", filter.TeacherID)
	}
	if len(filter.TeacherIDs) > 0 {
		q.add("teacher_id = ANY($%d)", pq.Array(filter.TeacherIDs))
	}
	if filter.DayOfWeek != nil {
		q.add("day_of_week = $%d", *filter.DayOfWeek)
	}
	query := "SELECT " + availabilityColumns + " " + q.where("FROM availabilities WHERE 1=1") + " ORDER BY day_of_week ASC, start_minute ASC, teacher_id ASC"

	var items []models.Availability
	if err := sqlx.SelectContext(ctx, pick(exec, r.db), &items, query, q.args...); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return items, nil
}

// FindByID fetches a window by id.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.Availability, error) {
	query := "SELECT " + availabilityColumns + " FROM availabilities WHERE id = $1"
	var item models.Availability
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a window.
func (r *AvailabilityRepository) Create(ctx context.Context, exec sqlx.ExtContext, item *models.Availability) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO availabilities (id, teacher_id, day_of_week, start_minute, end_minute, created_at, updated_at)
		VALUES (:id, :teacher_id, :day_of_week, :start_minute, :end_minute, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(exec, r.db), query, item); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// Update rewrites the interval of a window.
func (r *AvailabilityRepository) Update(ctx context.Context, exec sqlx.ExtContext, item *models.Availability) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE availabilities SET day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(exec, r.db), query, item); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// Delete removes a window.
func (r *AvailabilityRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := pick(exec, r.db).ExecContext(ctx, "DELETE FROM availabilities WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}
