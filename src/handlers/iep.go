package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
)

// IEPHandler handles IEP meeting requests
type IEPHandler struct {
	iep *services.IEPService
}

// NewIEPHandler creates a new IEP handler
func NewIEPHandler(iep *services.IEPService) *IEPHandler {
	return &IEPHandler{iep: iep}
}

// ScheduleMeetingRequest describes a meeting to schedule
type ScheduleMeetingRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Location    string    `json:"location" binding:"max=255"`
	Attendees   []string  `json:"attendees"`
}

// HandleSchedule handles POST /api/students/:student_id/iep-meetings
func (h *IEPHandler) HandleSchedule(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	var req ScheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	meeting, err := h.iep.Schedule(c.Request.Context(), services.IEPScheduleParams{
		StudentID:   studentID,
		ScheduledAt: req.ScheduledAt,
		Location:    req.Location,
		Attendees:   req.Attendees,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"meeting": meeting})
}

// HandleListByStudent handles GET /api/students/:student_id/iep-meetings
func (h *IEPHandler) HandleListByStudent(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	meetings, err := h.iep.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list meetings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meetings": meetings, "count": len(meetings)})
}

// HandleListUpcoming handles GET /api/iep-meetings/upcoming
func (h *IEPHandler) HandleListUpcoming(c *gin.Context) {
	meetings, err := h.iep.ListUpcoming(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list meetings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meetings": meetings, "count": len(meetings)})
}

// RecordOutcomeRequest carries the meeting outcome
type RecordOutcomeRequest struct {
	Outcome string `json:"outcome" binding:"required,min=1,max=4096"`
}

// HandleRecordOutcome handles POST /api/iep-meetings/:meeting_id/outcome
func (h *IEPHandler) HandleRecordOutcome(c *gin.Context) {
	id, ok := parseID(c, "meeting_id")
	if !ok {
		return
	}

	var req RecordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	meeting, err := h.iep.RecordOutcome(c.Request.Context(), id, req.Outcome)
	if err != nil {
		if errors.Is(err, services.ErrMeetingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record outcome"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meeting": meeting})
}
