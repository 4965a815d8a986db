package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

// Envelope is the success-response contract.
type Envelope struct {
	Data interface{}            `json:"data,omitempty"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{Data: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error converts err to the fixed wire contract. Token-verification kinds
// become the invalid_token body with a reason, scope/ownership become the bare
// forbidden body; internal detail never leaks to the client.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	switch appErr.Kind {
	case appErrors.KindMalformedToken, appErrors.KindExpiredToken, appErrors.KindSignatureMismatch:
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":  "invalid_token",
			"reason": appErrors.TokenReason(appErr.Kind),
		})
	case appErrors.KindTokenRevoked:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "reason": "revoked"})
	case appErrors.KindScopeViolation, appErrors.KindOwnershipViolation:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case appErrors.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		c.JSON(appErr.Status, gin.H{"error": appErr.Code, "message": appErr.Message})
	}
}

// RateLimited emits the 429 contract: Retry-After header plus the numeric
// limit/reset body the clients use to display a retry countdown.
func RateLimited(c *gin.Context, retryAfterSeconds int, limit int, resetAt int64) {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":     "rate_limit_exceeded",
		"limit":     limit,
		"remaining": 0,
		"resetAt":   resetAt,
	})
}
