package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type mockTeacherRepo struct {
	items      map[string]*models.Teacher
	emailIndex map[string]string
	deps       models.TeacherDependents
	listResult []models.Teacher
	listTotal  int
	listFilter models.TeacherFilter
	deleted    []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	m.listFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	if owner, ok := m.emailIndex[email]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	now := time.Now()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func (m *mockTeacherRepo) CountDependents(ctx context.Context, id string) (models.TeacherDependents, error) {
	return m.deps, nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	teacher, err := service.Create(context.Background(), CreateTeacherRequest{
		Name:       "  Ada Lovelace ",
		Email:      "ada@example.com",
		Department: "Mathematics",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", teacher.Name)
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockTeacherRepo{emailIndex: map[string]string{"ada@example.com": "another"}}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTeacherRequest{Name: "Ada", Email: "ada@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestTeacherServiceCreateRejectsInvalidEmail(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, nil, nil)

	_, err := service.Create(context.Background(), CreateTeacherRequest{Name: "Ada", Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTeacherServiceUpdateKeepsOwnEmail(t *testing.T) {
	repo := &mockTeacherRepo{
		items:      map[string]*models.Teacher{"t1": {ID: "t1", Name: "Ada", Email: "ada@example.com"}},
		emailIndex: map[string]string{"ada@example.com": "t1"},
	}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	updated, err := service.Update(context.Background(), "t1", UpdateTeacherRequest{Name: "Ada King", Email: "ada@example.com", Department: "Computing"})
	require.NoError(t, err)
	assert.Equal(t, "Ada King", updated.Name)
	assert.Equal(t, "Computing", repo.items["t1"].Department)
}

func TestTeacherServiceUpdateNotFound(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, validator.New(), zap.NewNop())

	_, err := service.Update(context.Background(), "missing", UpdateTeacherRequest{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTeacherServiceDeleteBlockedByDependents(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{"t1": {ID: "t1"}},
		deps:  models.TeacherDependents{Subjects: 2},
	}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	err := service.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrHasDependents)
	assert.Equal(t, models.TeacherDependents{Subjects: 2}, appErrors.FromError(err).Details)
	assert.Empty(t, repo.deleted)
}

func TestTeacherServiceDelete(t *testing.T) {
	repo := &mockTeacherRepo{items: map[string]*models.Teacher{"t1": {ID: "t1"}}}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, repo.deleted)
}

func TestTeacherServiceListNormalisesPaging(t *testing.T) {
	repo := &mockTeacherRepo{listResult: []models.Teacher{{ID: "t1"}}, listTotal: 41}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	items, pagination, err := service.List(context.Background(), models.TeacherFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: models.DefaultPageSize, TotalCount: 41}, pagination)
	assert.Equal(t, models.DefaultPageSize, repo.listFilter.PageSize)
}
