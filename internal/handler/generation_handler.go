package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type generatorService interface {
	Generate(ctx context.Context, studentID string) (*models.GenerationResult, error)
	GenerateBulk(ctx context.Context, req dto.BulkGenerateRequest) (*dto.BulkGenerateResponse, error)
	JobStatus(id string) (*jobs.State, error)
}

// GenerationHandler exposes automatic timetable generation.
type GenerationHandler struct {
	service generatorService
}

// NewGenerationHandler constructs the handler.
func NewGenerationHandler(svc generatorService) *GenerationHandler {
	return &GenerationHandler{service: svc}
}

// Generate godoc
// @Summary Regenerate a student's timetable
// @Description Replaces every entry of the student. Subjects that cannot be placed are reported, not failed.
// @Tags Generation
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "generation"))
		return
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateBulk godoc
// @Summary Queue regeneration for many students
// @Description An empty list queues every student.
// @Tags Generation
// @Accept json
// @Produce json
// @Param payload body dto.BulkGenerateRequest true "Bulk payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/generate/bulk [post]
func (h *GenerationHandler) GenerateBulk(c *gin.Context) {
	var req dto.BulkGenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err, "bulk generation"))
			return
		}
	}
	res, err := h.service.GenerateBulk(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, res)
}

// JobStatus godoc
// @Summary Bulk generation job status
// @Tags Generation
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/generate/jobs/{id} [get]
func (h *GenerationHandler) JobStatus(c *gin.Context) {
	state, err := h.service.JobStatus(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
