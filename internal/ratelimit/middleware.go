package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/citypulse/api-edge/internal/api"
	"github.com/citypulse/api-edge/internal/auth"
	"github.com/citypulse/api-edge/internal/metrics"
)

// Tiered gates every request behind the membership-tiered window. The quota
// is re-derived from the tier source each time; the limiter itself stores
// nothing about the caller except the window counter.
func (l *Limiter) Tiered(window time.Duration, quotas Quotas, tiers TierSource) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.Identity(r)

			limit := quotas.Anonymous
			if claims, ok := auth.UserFromContext(r.Context()); ok {
				tier, err := tiers.TierFor(r.Context(), claims.UserID)
				if err != nil {
					// Unknown tier is billed at the regular quota rather
					// than blocking the request on a lookup failure.
					log.Warn().Err(err).Str("user", claims.UserID).Msg("tier lookup failed")
				}
				limit = quotas.ForUser(tier)
			}

			key := "ratelimit:tiered:" + identity
			decision, err := l.Allow(r.Context(), key, limit, window)
			if err != nil {
				// A broken counter store must not take the API down with it.
				log.Warn().Err(err).Str("identity", identity).Msg("rate limit check failed, allowing")
				metrics.RateLimitDecisions.WithLabelValues("tiered", "error").Inc()
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				metrics.RateLimitDecisions.WithLabelValues("tiered", "limited").Inc()
				log.Debug().Str("identity", identity).Int("limit", limit).Msg("rate limit exceeded")
				msg := fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s.", limit, window)
				api.RateLimited(w, msg, retryAfterSeconds(decision.RetryAfter))
				return
			}

			metrics.RateLimitDecisions.WithLabelValues("tiered", "allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// Class is a stricter fixed quota for an endpoint class (auth attempts,
// uploads, search), independent of tier and layered in front of Tiered.
func (l *Limiter) Class(name string, limit int, window time.Duration, message string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.Identity(r)

			key := "ratelimit:" + name + ":" + identity
			decision, err := l.Allow(r.Context(), key, limit, window)
			if err != nil {
				log.Warn().Err(err).Str("identity", identity).Str("class", name).
					Msg("rate limit check failed, allowing")
				metrics.RateLimitDecisions.WithLabelValues(name, "error").Inc()
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				metrics.RateLimitDecisions.WithLabelValues(name, "limited").Inc()
				api.RateLimited(w, message, retryAfterSeconds(decision.RetryAfter))
				return
			}

			metrics.RateLimitDecisions.WithLabelValues(name, "allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
