package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, *models.Pagination, bool, error)
	Get(ctx context.Context, id string) (*models.TimetableEntry, error)
	Create(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	Update(ctx context.Context, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, filter models.TimetableFilter) ([]byte, string, error)
}

// TimetableHandler exposes manual timetable entry endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// List godoc
// @Summary List timetable entries
// @Tags Timetable
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param studentId query string false "Student ID"
// @Param subjectId query string false "Subject ID"
// @Param dayOfWeek query int false "Day of week (1-7)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter, err := timetableFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = paging(c)

	items, pagination, hit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, items, pagination, internalmiddleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get timetable entry
// @Tags Timetable
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create timetable entry
// @Description Rejected with SCHEDULE_CONFLICT when the teacher or student is already booked, TEACHER_UNAVAILABLE outside availability.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.TimetableEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req dto.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "timetable entry"))
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Update timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.TimetableEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var req dto.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "timetable entry"))
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete timetable entry
// @Tags Timetable
// @Param id path string true "Entry ID"
// @Success 204
// @Router /timetable/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export timetable as CSV
// @Tags Timetable
// @Produce text/csv
// @Param teacherId query string false "Teacher ID"
// @Param studentId query string false "Student ID"
// @Param dayOfWeek query int false "Day of week (1-7)"
// @Success 200 {file} file
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	filter, err := timetableFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, contentType, err := h.service.Export(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "timetable.csv", contentType, body)
}

func timetableFilter(c *gin.Context) (models.TimetableFilter, error) {
	day, err := optionalInt(c, "dayOfWeek")
	if err != nil {
		return models.TimetableFilter{}, err
	}
	return models.TimetableFilter{
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
		StudentID: strings.TrimSpace(c.Query("studentId")),
		SubjectID: strings.TrimSpace(c.Query("subjectId")),
		DayOfWeek: day,
	}, nil
}
