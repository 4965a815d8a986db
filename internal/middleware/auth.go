package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/internal/token"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
	"github.com/altavia-air/altavia-api/pkg/middleware/requestid"
	"github.com/altavia-air/altavia-api/pkg/response"
)

// ContextClaimsKey is the gin context key storing validated token claims.
const ContextClaimsKey = "currentClaims"

// ClaimsFrom returns the validated claims attached to the request, if any.
func ClaimsFrom(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// SubjectFrom returns the authenticated subject ID, or "" for anonymous.
func SubjectFrom(c *gin.Context) string {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.SubjectID()
	}
	return ""
}

// AuthObserver receives a signal for every rejected credential.
type AuthObserver interface {
	ObserveAuthFailure(reason string)
}

// Authenticate validates a bearer token when one is present and attaches the
// claims to the request context. A missing header leaves the request
// anonymous; a present-but-invalid token is rejected here, before any
// handler executes. Each failure is audited exactly once, with the distinct
// verification kind preserved. observer may be nil.
func Authenticate(codec *token.Codec, auditor *audit.Logger, observer AuthObserver) gin.HandlerFunc {
	reject := func(c *gin.Context, reason, subjectID string) {
		auditAuthFailure(c, auditor, reason, subjectID)
		if observer != nil {
			observer.ObserveAuthFailure(reason)
		}
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			reject(c, "malformed", "")
			response.Error(c, appErrors.ErrMalformedToken)
			c.Abort()
			return
		}

		claims, err := codec.Verify(parts[1])
		if err != nil {
			kind := appErrors.FromError(err).Kind
			reject(c, appErrors.TokenReason(kind), "")
			response.Error(c, err)
			c.Abort()
			return
		}

		if claims.Kind != models.TokenKindAccess {
			// A structurally valid refresh token is not a bearer credential.
			reject(c, "wrong_kind", claims.SubjectID())
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests. Routes outside the public tier all
// sit behind this guard.
func RequireAuth(auditor *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ClaimsFrom(c) == nil {
			auditAuthFailure(c, auditor, "missing_credentials", "")
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireScope rejects authenticated requests whose token does not carry the
// given capability.
func RequireScope(scope string, auditor *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			auditAuthFailure(c, auditor, "missing_credentials", "")
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.HasScope(scope) {
			auditor.Record(audit.Entry{
				EventType:     audit.EventAuthorization,
				SubjectID:     claims.SubjectID(),
				SourceAddress: c.ClientIP(),
				Resource:      c.FullPath(),
				Action:        c.Request.Method,
				Outcome:       audit.OutcomeDenied,
				Details:       map[string]string{"required_scope": scope},
				CorrelationID: requestid.Value(c),
			})
			response.Error(c, appErrors.ErrScopeViolation)
			c.Abort()
			return
		}
		c.Next()
	}
}

func auditAuthFailure(c *gin.Context, auditor *audit.Logger, reason, subjectID string) {
	auditor.Record(audit.Entry{
		EventType:     audit.EventAuthentication,
		SubjectID:     subjectID,
		SourceAddress: c.ClientIP(),
		Resource:      c.FullPath(),
		Action:        c.Request.Method,
		Outcome:       audit.OutcomeFailure,
		Details:       map[string]string{"reason": reason},
		CorrelationID: requestid.Value(c),
	})
}
