package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StudentHandler handles student record requests
type StudentHandler struct {
	students *services.StudentService
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(students *services.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// CreateStudentRequest describes an enrollment request
type CreateStudentRequest struct {
	FirstName  string `json:"first_name" binding:"required,min=1,max=255"`
	LastName   string `json:"last_name" binding:"required,min=1,max=255"`
	GradeLevel int    `json:"grade_level" binding:"min=0,max=12"`
	Email      string `json:"email" binding:"omitempty,email"`
}

// HandleCreate handles POST /api/students
func (h *StudentHandler) HandleCreate(c *gin.Context) {
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	student, err := h.students.Create(c.Request.Context(), services.StudentCreateParams{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		GradeLevel: req.GradeLevel,
		Email:      req.Email,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enroll student"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"student": student})
}

// HandleGet handles GET /api/students/:student_id
func (h *StudentHandler) HandleGet(c *gin.Context) {
	id, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	student, err := h.students.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrStudentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load student"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

// HandleList handles GET /api/students?grade=N
func (h *StudentHandler) HandleList(c *gin.Context) {
	grade := -1
	if g := c.Query("grade"); g != "" {
		parsed, err := strconv.Atoi(g)
		if err != nil || parsed < 0 || parsed > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grade filter"})
			return
		}
		grade = parsed
	}

	students, err := h.students.List(c.Request.Context(), grade)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list students"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"students": students, "count": len(students)})
}

// UpdateStudentRequest describes a student update. Omitted fields unchanged.
type UpdateStudentRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	GradeLevel *int    `json:"grade_level"`
	Email      *string `json:"email"`
}

// HandleUpdate handles PATCH /api/students/:student_id
func (h *StudentHandler) HandleUpdate(c *gin.Context) {
	id, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	var req UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	student, err := h.students.Update(c.Request.Context(), id, services.StudentUpdateParams{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		GradeLevel: req.GradeLevel,
		Email:      req.Email,
	})
	if err != nil {
		if errors.Is(err, services.ErrStudentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

// HandleWithdraw handles POST /api/students/:student_id/withdraw
func (h *StudentHandler) HandleWithdraw(c *gin.Context) {
	id, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	student, err := h.students.Withdraw(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrStudentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to withdraw student"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"student": student})
}

// HandleDelete handles DELETE /api/students/:student_id
func (h *StudentHandler) HandleDelete(c *gin.Context) {
	id, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrStudentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete student"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
