package handlers

import (
	"errors"
	"net/http"

	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
)

// ParentHandler handles parent and guardian contact requests
type ParentHandler struct {
	parents *services.ParentService
}

// NewParentHandler creates a new parent handler
func NewParentHandler(parents *services.ParentService) *ParentHandler {
	return &ParentHandler{parents: parents}
}

// LinkParentRequest describes a contact to link
type LinkParentRequest struct {
	ParentName   string `json:"parent_name" binding:"required,min=1,max=255"`
	ParentEmail  string `json:"parent_email" binding:"required,email"`
	Relationship string `json:"relationship" binding:"max=255"`
	Primary      bool   `json:"primary"`
}

// HandleLink handles POST /api/students/:student_id/parents
func (h *ParentHandler) HandleLink(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	var req LinkParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	link, err := h.parents.Link(c.Request.Context(), services.ParentLinkParams{
		StudentID:    studentID,
		ParentName:   req.ParentName,
		ParentEmail:  req.ParentEmail,
		Relationship: req.Relationship,
		Primary:      req.Primary,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link parent"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"parent": link})
}

// HandleListByStudent handles GET /api/students/:student_id/parents
func (h *ParentHandler) HandleListByStudent(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	links, err := h.parents.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list parents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"parents": links, "count": len(links)})
}

// HandlePrimaryContact handles GET /api/students/:student_id/parents/primary
func (h *ParentHandler) HandlePrimaryContact(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	link, err := h.parents.PrimaryContact(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, services.ErrNoPrimaryContact) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no primary contact on file"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load primary contact"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"parent": link})
}

// HandleUnlink handles DELETE /api/parents/:parent_id
func (h *ParentHandler) HandleUnlink(c *gin.Context) {
	id, ok := parseID(c, "parent_id")
	if !ok {
		return
	}

	if err := h.parents.Unlink(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrParentLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parent link not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlink parent"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unlinked"})
}
