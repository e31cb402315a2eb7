package handlers

import (
	"errors"
	"net/http"

	"github.com/campusware/school-admin-server/src/models"
	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
)

// ReportHandler handles recurring report schedule requests
type ReportHandler struct {
	reports *services.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CreateScheduleRequest describes a recurring report
type CreateScheduleRequest struct {
	Kind         string `json:"kind" binding:"required"`
	Recipient    string `json:"recipient" binding:"required,email"`
	IntervalDays int    `json:"interval_days" binding:"required,min=1"`
}

// HandleCreateSchedule handles POST /api/students/:student_id/reports
func (h *ReportHandler) HandleCreateSchedule(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	schedule, err := h.reports.CreateSchedule(c.Request.Context(), services.ScheduleParams{
		StudentID:    studentID,
		Kind:         models.ReportKind(req.Kind),
		Recipient:    req.Recipient,
		IntervalDays: req.IntervalDays,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"schedule": schedule})
}

// HandleListByStudent handles GET /api/students/:student_id/reports
func (h *ReportHandler) HandleListByStudent(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	schedules, err := h.reports.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list report schedules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "count": len(schedules)})
}

// HandleDeleteSchedule handles DELETE /api/reports/:schedule_id
func (h *ReportHandler) HandleDeleteSchedule(c *gin.Context) {
	id, ok := parseID(c, "schedule_id")
	if !ok {
		return
	}

	if err := h.reports.DeleteSchedule(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete report schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
