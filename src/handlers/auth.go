package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/campusware/school-admin-server/src/middleware"
	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles staff authentication requests
type AuthHandler struct {
	staffService     *services.StaffService
	analyticsService *services.AnalyticsService
}

// NewAuthHandler creates a new staff authentication handler
func NewAuthHandler(staffService *services.StaffService, analyticsService *services.AnalyticsService) *AuthHandler {
	return &AuthHandler{
		staffService:     staffService,
		analyticsService: analyticsService,
	}
}

// LoginRequest represents a staff login request
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=1,max=255"`
	Password string `json:"password" binding:"required,min=8"`
}

// HandleLogin handles POST /auth/login - staff sign-in, returns a bearer token
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid username or password format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	staff, err := h.staffService.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		// Unknown user and wrong password get the same answer
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_credentials",
			"message": "Invalid username or password",
		})
		return
	}

	token, err := middleware.GenerateStaffToken(staff.ID, staff.Username, staff.Role)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate staff token")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "Failed to generate token",
		})
		return
	}

	h.analyticsService.TrackStaffLogin(ctx, services.HashIdentifier(staff.Username))

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int((24 * time.Hour).Seconds()),
		"staff": gin.H{
			"id":       staff.ID,
			"username": staff.Username,
			"role":     staff.Role,
		},
	})
}

// HandleMe handles GET /auth/me - returns the authenticated staff identity
func (h *AuthHandler) HandleMe(c *gin.Context) {
	staffID, _ := c.Get("staff_id")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	c.JSON(http.StatusOK, gin.H{
		"id":       staffID,
		"username": username,
		"role":     role,
	})
}
