package security

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	AllowedOrigins []string      `json:"allowed_origins"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		MaxUploadBytes: 32 << 20,
		RequestTimeout: 60 * time.Second,
	}
}

// SecurityMiddleware provides the request guards applied in front of the proof API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// CORSConfig allows the configured browser origins
func (sm *SecurityMiddleware) CORSConfig() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Authorization", "Accept"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	// an empty list or "*" opens the API to any origin, without credentials
	wildcard := len(sm.config.AllowedOrigins) == 0
	for _, origin := range sm.config.AllowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}
	if wildcard {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = sm.config.AllowedOrigins
		config.AllowCredentials = true
	}

	return cors.New(config)
}

// ValidateContentType accepts multipart uploads and JSON on requests carrying a body
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if !strings.HasPrefix(contentType, "multipart/form-data") && !strings.HasPrefix(contentType, "application/json") {
		_ = c.Error(errors.NewValidationError("unsupported content type", contentType))
		c.Abort()
		return
	}

	c.Next()
}

// LimitUploadSize caps the request body at MaxUploadBytes
func (sm *SecurityMiddleware) LimitUploadSize(c *gin.Context) {
	if sm.config.MaxUploadBytes > 0 && c.Request.Body != nil {
		if c.Request.ContentLength > sm.config.MaxUploadBytes {
			_ = c.Error(errors.NewValidationError("upload exceeds size limit", strconv.FormatInt(sm.config.MaxUploadBytes, 10)+" bytes"))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxUploadBytes)
	}
	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	if sm.config.RequestTimeout <= 0 {
		c.Next()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}
