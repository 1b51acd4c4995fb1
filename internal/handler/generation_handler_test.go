package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type generatorMock struct {
	studentID string
	bulk      *dto.BulkGenerateRequest
	err       error
}

func (m *generatorMock) Generate(ctx context.Context, studentID string) (*models.GenerationResult, error) {
	m.studentID = studentID
	if m.err != nil {
		return nil, m.err
	}
	return &models.GenerationResult{
		StudentID:      studentID,
		ScheduledCount: 1,
		RequestedCount: 2,
		Unscheduled:    []models.UnscheduledSubject{{SubjectID: "S2", Code: "PHY"}},
	}, nil
}

func (m *generatorMock) GenerateBulk(ctx context.Context, req dto.BulkGenerateRequest) (*dto.BulkGenerateResponse, error) {
	m.bulk = &req
	jobsOut := make([]dto.GenerationJob, 0, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		jobsOut = append(jobsOut, dto.GenerationJob{StudentID: id, JobID: "job-" + id})
	}
	return &dto.BulkGenerateResponse{Jobs: jobsOut}, nil
}

func (m *generatorMock) JobStatus(id string) (*jobs.State, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &jobs.State{ID: id, Status: jobs.StatusSucceeded, Attempts: 1}, nil
}

func TestGenerateReturnsPartialResult(t *testing.T) {
	mock := &generatorMock{}
	w := perform(NewGenerationHandler(mock).Generate, http.MethodPost, "/timetable/generate", []byte(`{"studentId":"X"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "X", mock.studentID)

	w = perform(NewGenerationHandler(mock).Generate, http.MethodPost, "/timetable/generate", []byte(`{"studentId":" ST001 "}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ST001", mock.studentID)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["scheduledCount"])
	assert.EqualValues(t, 2, data["requestedCount"])
	assert.Len(t, data["unscheduled"], 1)
}

func TestGenerateRequiresStudent(t *testing.T) {
	mock := &generatorMock{}
	w := perform(NewGenerationHandler(mock).Generate, http.MethodPost, "/timetable/generate", []byte(`{"studentId":"  "}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.studentID)
}

func TestGenerateMapsDomainErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"locked":      {appErrors.ErrLocked, http.StatusConflict},
		"no subjects": {appErrors.ErrNoSubjects, http.StatusUnprocessableEntity},
		"unknown":     {appErrors.Clone(appErrors.ErrNotFound, "student not found"), http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := perform(NewGenerationHandler(&generatorMock{err: tc.err}).Generate, http.MethodPost, "/timetable/generate", []byte(`{"studentId":"X"}`))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestGenerateBulkAccepted(t *testing.T) {
	mock := &generatorMock{}
	w := perform(NewGenerationHandler(mock).GenerateBulk, http.MethodPost, "/timetable/generate/bulk", []byte(`{"studentIds":["X","Y"]}`))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, mock.bulk)
	assert.Equal(t, []string{"X", "Y"}, mock.bulk.StudentIDs)
}

func TestGenerateBulkWithoutBodyMeansEveryone(t *testing.T) {
	mock := &generatorMock{}
	w := perform(NewGenerationHandler(mock).GenerateBulk, http.MethodPost, "/timetable/generate/bulk", nil)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, mock.bulk)
	assert.Empty(t, mock.bulk.StudentIDs)
}

func TestGenerateBulkRejectsOversizedList(t *testing.T) {
	ids := make([]string, 1001)
	for i := range ids {
		ids[i] = fmt.Sprintf("ST%04d", i)
	}
	body, err := json.Marshal(dto.BulkGenerateRequest{StudentIDs: ids})
	require.NoError(t, err)

	svc := service.NewTimetableGeneratorService(nil, nil, nil, nil, nil, nil, nil, service.GeneratorConfig{})
	w := perform(NewGenerationHandler(svc).GenerateBulk, http.MethodPost, "/timetable/generate/bulk", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestJobStatus(t *testing.T) {
	h := NewGenerationHandler(&generatorMock{})

	w := perform(h.JobStatus, http.MethodGet, "/timetable/generate/jobs/job-1", nil, gin.Param{Key: "id", Value: "job-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCEEDED", decodeEnvelope(t, w)["data"].(map[string]interface{})["status"])

	w = perform(h.JobStatus, http.MethodGet, "/timetable/generate/jobs/nope", nil, gin.Param{Key: "id", Value: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
