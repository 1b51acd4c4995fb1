package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var subjectRowColumns = []string{"id", "name", "code", "description", "teacher_id", "created_at", "updated_at"}

func TestSubjectRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	where := "FROM subjects WHERE 1=1 AND teacher_id = $1"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, code, description, teacher_id, created_at, updated_at " + where + " ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(subjectRowColumns).AddRow("s1", "Mathematics", "MAT-001", "", "t1", time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) " + where)).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.SubjectFilter{TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "MAT-001", list[0].Code)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryListCatalogOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects ORDER BY created_at ASC, code ASC FOR SHARE")).
		WillReturnRows(sqlmock.NewRows(subjectRowColumns).
			AddRow("s1", "Art", "ART-001", "", "t1", created, created).
			AddRow("s2", "Biology", "BIO-001", "", "t2", created, created))

	subjects, err := repo.ListCatalog(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "s1", subjects[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("INSERT INTO subjects").
		WithArgs(sqlmock.AnyArg(), "Physics", "PHY-001", "Mechanics", "t1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET name = ?, code = ?, description = ?, teacher_id = ?, updated_at = ? WHERE id = ?")).
		WithArgs("Physics II", "PHY-001", "Mechanics", "t1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	subject := &models.Subject{Name: "Physics", Code: "PHY-001", Description: "Mechanics", TeacherID: "t1"}
	require.NoError(t, repo.Create(context.Background(), subject))
	subject.Name = "Physics II"
	require.NoError(t, repo.Update(context.Background(), nil, subject))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryExistsByCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM subjects WHERE UPPER(code) = UPPER($1) LIMIT 1")).
		WithArgs("mat-001").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByCode(context.Background(), "mat-001", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryLockingReads(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(subjectRowColumns).AddRow("s1", "Physics", "PHY-001", "", "t1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE id = $1 FOR SHARE")).
		WithArgs("s2").
		WillReturnRows(sqlmock.NewRows(subjectRowColumns).AddRow("s2", "Art", "ART-001", "", "t2", now, now))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	locked, err := repo.FindForUpdate(context.Background(), tx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "t1", locked.TeacherID)
	shared, err := repo.FindForShare(context.Background(), tx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "t2", shared.TeacherID)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
