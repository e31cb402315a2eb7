package handlers

import (
	"errors"
	"net/http"

	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
)

// ReferralHandler handles disciplinary referral requests
type ReferralHandler struct {
	referrals *services.ReferralService
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referrals *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// FileReferralRequest describes a referral being filed
type FileReferralRequest struct {
	ReportedBy  string `json:"reported_by" binding:"required,min=1,max=255"`
	Category    string `json:"category" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=4096"`
}

// HandleFile handles POST /api/students/:student_id/referrals
func (h *ReferralHandler) HandleFile(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	var req FileReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	referral, err := h.referrals.File(c.Request.Context(), services.ReferralFileParams{
		StudentID:   studentID,
		ReportedBy:  req.ReportedBy,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to file referral"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"referral": referral})
}

// HandleListByStudent handles GET /api/students/:student_id/referrals
func (h *ReferralHandler) HandleListByStudent(c *gin.Context) {
	studentID, ok := parseID(c, "student_id")
	if !ok {
		return
	}

	referrals, err := h.referrals.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrals": referrals, "count": len(referrals)})
}

// HandleListOpen handles GET /api/referrals/open
func (h *ReferralHandler) HandleListOpen(c *gin.Context) {
	referrals, err := h.referrals.ListOpen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrals": referrals, "count": len(referrals)})
}

// ResolveReferralRequest carries the recorded outcome
type ResolveReferralRequest struct {
	Resolution string `json:"resolution" binding:"required,min=1,max=4096"`
}

// HandleResolve handles POST /api/referrals/:referral_id/resolve
func (h *ReferralHandler) HandleResolve(c *gin.Context) {
	id, ok := parseID(c, "referral_id")
	if !ok {
		return
	}

	var req ResolveReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	referral, err := h.referrals.Resolve(c.Request.Context(), id, req.Resolution)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReferralNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "referral not found"})
		case errors.Is(err, services.ErrReferralAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "referral already resolved"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve referral"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"referral": referral})
}
