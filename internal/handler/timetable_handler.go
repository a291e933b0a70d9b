package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campustime/timetable-api/internal/dto"
	"github.com/campustime/timetable-api/internal/service"
	appErrors "github.com/campustime/timetable-api/pkg/errors"
	"github.com/campustime/timetable-api/pkg/response"
)

// TimetableHandler wires HTTP endpoints to the timetable services.
type TimetableHandler struct {
	generation *service.GenerationService
	timetables *service.TimetableService
	scores     *service.ScoreService
}

// NewTimetableHandler creates a new handler.
func NewTimetableHandler(
	generation *service.GenerationService,
	timetables *service.TimetableService,
	scores *service.ScoreService,
) *TimetableHandler {
	return &TimetableHandler{
		generation: generation,
		timetables: timetables,
		scores:     scores,
	}
}

// Generate godoc
// @Summary Generate timetables
// @Description Generate weekly timetables for one group or all groups in a period
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetablesRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	res, err := h.generation.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List timetables for a period
// @Tags Timetables
// @Produce json
// @Param groupId query string true "Group ID"
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return
	}

	timetable, err := h.timetables.Lookup(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, timetable, nil)
}

// Get godoc
// @Summary Get timetable by ID
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, timetable, nil)
}

// Score godoc
// @Summary Score a timetable
// @Description Compute gap, distribution, preference and combined quality scores
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/score [get]
func (h *TimetableHandler) Score(c *gin.Context) {
	score, err := h.scores.Score(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, score, nil)
}

// Export godoc
// @Summary Export a timetable
// @Description Download the weekly timetable as a PDF or CSV file
// @Tags Timetables
// @Produce application/pdf
// @Param id path string true "Timetable ID"
// @Param format query string false "Export format (pdf or csv)" default(pdf)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	payload, filename, contentType, err := h.timetables.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// ManualAssign godoc
// @Summary Manually place a subject into a slot
// @Description Insert or move an assignment after conflict checks against the stored period
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.ManualAssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/assignments [post]
func (h *TimetableHandler) ManualAssign(c *gin.Context) {
	var req dto.ManualAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	timetable, err := h.timetables.ManualAssign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, timetable, nil)
}

// LockSlot godoc
// @Summary Lock or unlock a slot
// @Description Locked slots survive regeneration and reject manual reassignment
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param slotId path string true "Slot ID"
// @Param payload body dto.LockSlotRequest true "Lock payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/slots/{slotId}/lock [patch]
func (h *TimetableHandler) LockSlot(c *gin.Context) {
	var req dto.LockSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Locked == nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "locked flag is required"))
		return
	}

	slot, err := h.timetables.SetSlotLock(c.Request.Context(), c.Param("id"), c.Param("slotId"), *req.Locked)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slot, nil)
}

// Publish godoc
// @Summary Publish a draft timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.timetables.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, timetable, nil)
}

// Delete godoc
// @Summary Delete a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.timetables.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
