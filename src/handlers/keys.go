package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyHandler handles API key lifecycle requests. All endpoints require staff
// authentication; the authenticated staff user owns the keys it manages.
type KeyHandler struct {
	apiKeys   *services.APIKeyService
	audit     repositories.AuditSink
	analytics *services.AnalyticsService
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(apiKeys *services.APIKeyService, audit repositories.AuditSink, analytics *services.AnalyticsService) *KeyHandler {
	return &KeyHandler{
		apiKeys:   apiKeys,
		audit:     audit,
		analytics: analytics,
	}
}

// callerID resolves the authenticated staff user from the JWT context.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("staff_id")
	if !exists {
		return uuid.Nil, false
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// keyID parses the :key_id path parameter.
func keyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("key_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return uuid.Nil, false
	}
	return id, true
}

// mapKeyError translates service sentinels into HTTP responses.
func mapKeyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrKeyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
	case errors.Is(err, services.ErrOwnershipMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "api key not owned by caller"})
	case errors.Is(err, services.ErrInvalidRotationState):
		c.JSON(http.StatusConflict, gin.H{"error": "only active keys can be rotated"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}

// GenerateKeyRequest describes a key creation request
type GenerateKeyRequest struct {
	Name             string   `json:"name" binding:"required,min=1,max=255"`
	Description      string   `json:"description" binding:"max=1024"`
	Scopes           []string `json:"scopes"`
	IPWhitelist      []string `json:"ip_whitelist"`
	RateLimitPerHour int      `json:"rate_limit_per_hour" binding:"omitempty,min=1"`
	TTLSeconds       int      `json:"ttl_seconds" binding:"omitempty,min=1"`
}

// HandleGenerate handles POST /api/keys. The raw secret appears in this
// response and nowhere else, ever.
func (h *KeyHandler) HandleGenerate(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	key, rawSecret, err := h.apiKeys.Generate(c.Request.Context(), services.GenerateParams{
		OwnerID:          owner,
		Name:             req.Name,
		Description:      req.Description,
		Scopes:           req.Scopes,
		IPWhitelist:      req.IPWhitelist,
		RateLimitPerHour: req.RateLimitPerHour,
		TTL:              time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate key"})
		return
	}

	h.audit.Log(repositories.AuditEvent{
		Action:   "key_generate",
		KeyID:    key.ID.String(),
		OwnerID:  owner.String(),
		CallerIP: c.ClientIP(),
		Outcome:  "allowed",
	})
	h.analytics.TrackKeyGenerated(c.Request.Context(), services.HashIdentifier(owner.String()), len(key.Scopes))

	c.JSON(http.StatusCreated, gin.H{
		"key":    key,
		"secret": rawSecret,
	})
}

// HandleList handles GET /api/keys
func (h *KeyHandler) HandleList(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	keys, err := h.apiKeys.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// HandleRotate handles POST /api/keys/:key_id/rotate
func (h *KeyHandler) HandleRotate(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id, ok := keyID(c)
	if !ok {
		return
	}

	newKey, rawSecret, err := h.apiKeys.Rotate(c.Request.Context(), id, owner)
	if err != nil && newKey == nil {
		h.audit.Log(repositories.AuditEvent{
			Action:   "key_rotate",
			KeyID:    id.String(),
			OwnerID:  owner.String(),
			CallerIP: c.ClientIP(),
			Outcome:  "denied",
			Detail:   err.Error(),
		})
		mapKeyError(c, err)
		return
	}

	h.audit.Log(repositories.AuditEvent{
		Action:   "key_rotate",
		KeyID:    id.String(),
		OwnerID:  owner.String(),
		CallerIP: c.ClientIP(),
		Outcome:  "allowed",
		Detail:   "replacement " + newKey.ID.String(),
	})
	h.analytics.TrackKeyRotated(c.Request.Context(), services.HashIdentifier(owner.String()))

	c.JSON(http.StatusOK, gin.H{
		"key":    newKey,
		"secret": rawSecret,
	})
}

// HandleRevoke handles POST /api/keys/:key_id/revoke
func (h *KeyHandler) HandleRevoke(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id, ok := keyID(c)
	if !ok {
		return
	}

	if err := h.apiKeys.Revoke(c.Request.Context(), id, owner); err != nil {
		mapKeyError(c, err)
		return
	}

	h.audit.Log(repositories.AuditEvent{
		Action:   "key_revoke",
		KeyID:    id.String(),
		OwnerID:  owner.String(),
		CallerIP: c.ClientIP(),
		Outcome:  "allowed",
	})
	h.analytics.TrackKeyRevoked(c.Request.Context(), services.HashIdentifier(owner.String()))

	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// UpdateKeyRequest describes a key metadata update. Omitted fields are left
// unchanged; an empty list clears the set.
type UpdateKeyRequest struct {
	Name             *string  `json:"name"`
	Description      *string  `json:"description"`
	Scopes           []string `json:"scopes"`
	IPWhitelist      []string `json:"ip_whitelist"`
	RateLimitPerHour *int     `json:"rate_limit_per_hour"`
}

// HandleUpdate handles PATCH /api/keys/:key_id
func (h *KeyHandler) HandleUpdate(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id, ok := keyID(c)
	if !ok {
		return
	}

	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	key, err := h.apiKeys.Update(c.Request.Context(), id, owner, services.UpdateParams{
		Name:             req.Name,
		Description:      req.Description,
		Scopes:           req.Scopes,
		IPWhitelist:      req.IPWhitelist,
		RateLimitPerHour: req.RateLimitPerHour,
	})
	if err != nil {
		mapKeyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

// HandleDelete handles DELETE /api/keys/:key_id
func (h *KeyHandler) HandleDelete(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id, ok := keyID(c)
	if !ok {
		return
	}

	if err := h.apiKeys.Delete(c.Request.Context(), id, owner); err != nil {
		mapKeyError(c, err)
		return
	}

	h.audit.Log(repositories.AuditEvent{
		Action:   "key_delete",
		KeyID:    id.String(),
		OwnerID:  owner.String(),
		CallerIP: c.ClientIP(),
		Outcome:  "allowed",
	})

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
