package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campusware/school-admin-server/src/models"
	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APIKeyContextKey is the context key under which the validated key record
// is stored for downstream handlers.
const APIKeyContextKey = "api_key"

// extractAPIKey pulls the raw secret from the X-API-Key header, falling back
// to an Authorization bearer value that carries the secret prefix.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer "+models.SecretPrefix) {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// APIKeyAuth validates the presented API key against the key service and
// stores the record in the request context. Failures are reported to the
// audit sink and mapped to 401 or 403.
func APIKeyAuth(apiKeys *services.APIKeyService, audit repositories.AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawSecret := extractAPIKey(c)
		if rawSecret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			c.Abort()
			return
		}

		key, err := apiKeys.Validate(c.Request.Context(), rawSecret, c.ClientIP())
		if err != nil {
			status := http.StatusUnauthorized
			reason := "invalid api key"
			switch {
			case errors.Is(err, services.ErrKeyNotFound):
			case errors.Is(err, services.ErrKeyInactive):
				reason = "api key is inactive"
			case errors.Is(err, services.ErrKeyExpired):
				reason = "api key has expired"
			case errors.Is(err, services.ErrIPNotWhitelisted):
				status = http.StatusForbidden
				reason = "ip address not allowed"
			default:
				status = http.StatusInternalServerError
				reason = "failed to validate api key"
			}

			audit.Log(repositories.AuditEvent{
				Action:   "key_validate",
				CallerIP: c.ClientIP(),
				Outcome:  "denied",
				Detail:   err.Error(),
			})
			c.JSON(status, gin.H{"error": reason})
			c.Abort()
			return
		}

		audit.Log(repositories.AuditEvent{
			Action:   "key_validate",
			KeyID:    key.ID.String(),
			OwnerID:  key.OwnerID.String(),
			CallerIP: c.ClientIP(),
			Outcome:  "allowed",
		})

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// GetAPIKey retrieves the validated key record set by APIKeyAuth.
func GetAPIKey(c *gin.Context) *models.APIKey {
	if v, exists := c.Get(APIKeyContextKey); exists {
		if key, ok := v.(*models.APIKey); ok {
			return key
		}
	}
	return nil
}

// RequireScope rejects requests whose validated key lacks the given scope.
// Must run after APIKeyAuth.
func RequireScope(scope string, audit repositories.AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetAPIKey(c)
		if key == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			c.Abort()
			return
		}

		if !key.HasScope(scope) {
			err := fmt.Errorf("%w: %s", services.ErrScopeMissing, scope)
			_ = c.Error(err)
			audit.Log(repositories.AuditEvent{
				Action:   "scope_check",
				KeyID:    key.ID.String(),
				OwnerID:  key.OwnerID.String(),
				CallerIP: c.ClientIP(),
				Outcome:  "denied",
				Detail:   err.Error(),
			})
			c.JSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("scope %s required", scope)})
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTSecret should be loaded from environment via config
var JWTSecret string

// SetJWTSecret initializes the JWT secret from config
func SetJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	JWTSecret = secret
	return nil
}

// StaffClaims represents JWT claims for staff users
type StaffClaims struct {
	StaffID  string `json:"staff_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateStaffToken creates a JWT token for a staff user (valid 24 hours)
func GenerateStaffToken(staffID uuid.UUID, username, role string) (string, error) {
	if JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not initialized")
	}

	claims := StaffClaims{
		StaffID:  staffID.String(),
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "school-admin-server",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(JWTSecret))
}

// ValidateStaffToken verifies a JWT token and returns claims
func ValidateStaffToken(tokenString string) (*StaffClaims, error) {
	if JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return claims, nil
}

// StaffAuthMiddleware checks for a valid staff JWT in the Authorization
// header. Staff tokens are bearer-only; no cookie fallback.
func StaffAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := ValidateStaffToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("staff_id", claims.StaffID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}
