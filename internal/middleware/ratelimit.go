package middleware

import (
	"math"

	"github.com/gin-gonic/gin"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/ratelimit"
	"github.com/altavia-air/altavia-api/pkg/middleware/requestid"
	"github.com/altavia-air/altavia-api/pkg/response"
)

// RateLimitObserver lets the limiter middleware report denials without
// depending on the metrics service directly.
type RateLimitObserver interface {
	ObserveRateLimitDenied(tier string)
}

// RateLimit enforces the tier's token bucket before any business logic runs.
// Identity keys on the authenticated subject when the request has already
// been authenticated, otherwise on the source address. A denial is audited
// once and short-circuits the chain.
func RateLimit(limiter *ratelimit.Limiter, tier ratelimit.Tier, auditor *audit.Logger, observer RateLimitObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ratelimit.Identity(SubjectFrom(c), c.ClientIP())

		decision := limiter.TryConsume(identity, tier, 1)
		if decision.Allowed {
			c.Next()
			return
		}

		if observer != nil {
			observer.ObserveRateLimitDenied(string(tier))
		}
		auditor.Record(audit.Entry{
			EventType:     audit.EventRateLimit,
			SubjectID:     SubjectFrom(c),
			SourceAddress: c.ClientIP(),
			Resource:      c.FullPath(),
			Action:        c.Request.Method,
			Outcome:       audit.OutcomeDenied,
			Details: map[string]string{
				"tier":     string(tier),
				"identity": identity,
			},
			CorrelationID: requestid.Value(c),
		})

		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		response.RateLimited(c, retryAfter, decision.Limit, decision.ResetAt.Unix())
		c.Abort()
	}
}
