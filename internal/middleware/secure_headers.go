package middleware

import "github.com/gin-gonic/gin"

// Response headers applied to every response. Values are fixed: they must not
// depend on status code or on whether an earlier stage rejected the request,
// so this middleware is registered ahead of anything that can abort.
var secureHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Content-Security-Policy":   "default-src 'self'",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
}

// SecureHeaders appends the fixed security header set to every outbound
// response, error responses included.
func SecureHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range secureHeaders {
			c.Writer.Header().Set(k, v)
		}
		c.Next()
	}
}
