package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type mockStudentRepo struct {
	items   map[string]*models.Student
	ids     []string
	deleted []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.items[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ListIDs(ctx context.Context) ([]string, error) {
	return m.ids, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.items == nil {
		m.items = make(map[string]*models.Student)
	}
	student.ID = "st-new"
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	service := NewStudentService(repo, stubEntryCounter{}, nil, nil, nil)

	student, err := service.Create(context.Background(), CreateStudentRequest{Name: "Grace", Email: "grace@example.com", Grade: 10})
	require.NoError(t, err)
	assert.Equal(t, "st-new", student.ID)

	_, err = service.Create(context.Background(), CreateStudentRequest{Name: "Grace", Grade: 42})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStudentServiceDeleteRequiresPurge(t *testing.T) {
	repo := &mockStudentRepo{items: map[string]*models.Student{"st1": {ID: "st1"}, "st2": {ID: "st2"}}}
	counter := stubEntryCounter{byStudent: map[string]int{"st1": 4}}
	service := NewStudentService(repo, counter, nil, nil, nil)

	err := service.Delete(context.Background(), "st1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrHasDependents)
	assert.Equal(t, map[string]int{"timetableEntries": 4}, appErrors.FromError(err).Details)

	require.NoError(t, service.Delete(context.Background(), "st2"))
	assert.Equal(t, []string{"st2"}, repo.deleted)
}
