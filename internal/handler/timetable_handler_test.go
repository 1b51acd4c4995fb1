package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	filter   models.TimetableFilter
	created  dto.TimetableEntryRequest
	hit      bool
	createFn func(dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	deleted  string
}

func (m *timetableServiceMock) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, *models.Pagination, bool, error) {
	m.filter = filter
	return []models.TimetableEntryDetail{}, &models.Pagination{Page: 1, PageSize: 20}, m.hit, nil
}

func (m *timetableServiceMock) Get(ctx context.Context, id string) (*models.TimetableEntry, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
}

func (m *timetableServiceMock) Create(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	m.created = req
	if m.createFn != nil {
		return m.createFn(req)
	}
	return &models.TimetableEntry{ID: "e1", SubjectID: req.SubjectID, StudentID: req.StudentID, Interval: req.Interval()}, nil
}

func (m *timetableServiceMock) Update(ctx context.Context, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	return &models.TimetableEntry{ID: id}, nil
}

func (m *timetableServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *timetableServiceMock) Export(ctx context.Context, filter models.TimetableFilter) ([]byte, string, error) {
	m.filter = filter
	return []byte("Day,Start\nMonday,09:00\n"), "text/csv", nil
}

func perform(handler gin.HandlerFunc, method, target string, body []byte, params ...gin.Param) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	handler(c)
	c.Writer.WriteHeaderNow() // mirror gin.Engine, which flushes the status after handlers run
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestTimetableListParsesFiltersAndReportsCacheHit(t *testing.T) {
	mock := &timetableServiceMock{hit: true}
	h := NewTimetableHandler(mock)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.GET("/timetable", h.List)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetable?teacherId=T&dayOfWeek=2&page=3&limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "T", mock.filter.TeacherID)
	require.NotNil(t, mock.filter.DayOfWeek)
	assert.Equal(t, 2, *mock.filter.DayOfWeek)
	assert.Equal(t, 3, mock.filter.Page)
	assert.Equal(t, 5, mock.filter.PageSize)

	body := decodeEnvelope(t, w)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["cacheHit"])
}

func TestTimetableListRejectsBadDay(t *testing.T) {
	w := perform(NewTimetableHandler(&timetableServiceMock{}).List, http.MethodGet, "/timetable?dayOfWeek=monday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableCreateAcceptsHourAndClockTimes(t *testing.T) {
	mock := &timetableServiceMock{}
	payload := []byte(`{"subjectId":"S1","studentId":"X","dayOfWeek":1,"startTime":9,"endTime":"10:30"}`)

	w := perform(NewTimetableHandler(mock).Create, http.MethodPost, "/timetable", payload)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, scheduler.NewInterval(1, scheduler.Hours(9), scheduler.Clock(630)), mock.created.Interval())
}

func TestTimetableCreateConflictCarriesDetails(t *testing.T) {
	mock := &timetableServiceMock{createFn: func(dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
		return nil, appErrors.WithDetails(appErrors.ErrScheduleConflict, []map[string]string{{"entryId": "e9", "dimension": "TEACHER"}})
	}}
	payload := []byte(`{"subjectId":"S1","studentId":"X","dayOfWeek":1,"startTime":9,"endTime":10}`)

	w := perform(NewTimetableHandler(mock).Create, http.MethodPost, "/timetable", payload)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "SCHEDULE_CONFLICT", errBody["code"])
	assert.Len(t, errBody["details"], 1)
}

func TestTimetableCreateMalformedPayload(t *testing.T) {
	w := perform(NewTimetableHandler(&timetableServiceMock{}).Create, http.MethodPost, "/timetable", []byte(`{"subjectId":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestTimetableGetNotFound(t *testing.T) {
	w := perform(NewTimetableHandler(&timetableServiceMock{}).Get, http.MethodGet, "/timetable/missing", nil, gin.Param{Key: "id", Value: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableDelete(t *testing.T) {
	mock := &timetableServiceMock{}
	w := perform(NewTimetableHandler(mock).Delete, http.MethodDelete, "/timetable/e1", nil, gin.Param{Key: "id", Value: "e1"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "e1", mock.deleted)
}

func TestTimetableExportStreamsCSV(t *testing.T) {
	mock := &timetableServiceMock{}
	w := perform(NewTimetableHandler(mock).Export, http.MethodGet, "/timetable/export?studentId=X", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "X", mock.filter.StudentID)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "Monday,09:00")
}
