package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
)

// AssignmentHandler handles assignment and grading requests
type AssignmentHandler struct {
	assignments *services.AssignmentService
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignments *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// CreateAssignmentRequest describes a new assignment
type CreateAssignmentRequest struct {
	Title    string    `json:"title" binding:"required,min=1,max=255"`
	Subject  string    `json:"subject" binding:"max=255"`
	DueAt    time.Time `json:"due_at" binding:"required"`
	MaxScore float64   `json:"max_score" binding:"required,gt=0"`
}

// HandleCreate handles POST /api/students/:student_id/assignments
func (h *AssignmentHandler) HandleCreate(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	assignment, err := h.assignments.Create(c.Request.Context(), services.AssignmentCreateParams{
		StudentID: studentID,
		Title:     req.Title,
		Subject:   req.Subject,
		DueAt:     req.DueAt,
		MaxScore:  req.MaxScore,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create assignment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"assignment": assignment})
}

// HandleList handles GET /api/students/:student_id/assignments
func (h *AssignmentHandler) HandleList(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	assignments, err := h.assignments.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments, "count": len(assignments)})
}

// GradeRequest carries a score for an assignment
type GradeRequest struct {
	Score float64 `json:"score" binding:"min=0"`
}

// HandleGrade handles POST /api/assignments/:assignment_id/grade
func (h *AssignmentHandler) HandleGrade(c *gin.Context) {
	id, ok := parseID(c, "assignment_id")
	if !ok {
		return
	}

	var req GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	assignment, err := h.assignments.Grade(c.Request.Context(), id, req.Score)
	if err != nil {
		if errors.Is(err, services.ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

// HandleDelete handles DELETE /api/assignments/:assignment_id
func (h *AssignmentHandler) HandleDelete(c *gin.Context) {
	id, ok := parseID(c, "assignment_id")
	if !ok {
		return
	}

	if err := h.assignments.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrAssignmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete assignment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
