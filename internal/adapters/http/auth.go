package http

import (
	"net/http"

	"github.com/dkeye/Rendezvous/internal/auth"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AuthMiddleware rejects the request with 401 unless it carries a valid
// bearer token. Runs before any WebSocket upgrade.
func AuthMiddleware(a *auth.Authenticator, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		uid, err := a.Verify(token)
		if err != nil {
			reason := auth.Reason(err)
			if m != nil {
				m.AuthFailures.WithLabelValues(reason).Inc()
			}
			log.Warn().Err(err).Str("module", "adapters.http").Str("token", auth.Fingerprint(token)).
				Str("reason", reason).Str("remote", c.ClientIP()).Msg("unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(auth.ContextKey, uid)
		c.Next()
	}
}

func userID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(auth.ContextKey))
}
