package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
)

// RejectRevokedTokens blocks tokens revoked through the auth service. Redis
// being unreachable does not lock everybody out; the failure is only logged.
func RejectRevokedTokens(authService *service.AuthService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		err := authService.CheckRevoked(c.Request.Context(), claims)
		switch {
		case errors.Is(err, service.ErrTokenRevoked):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRevoked)
			return
		case err != nil:
			log.Warn().Err(err).Msg("Token revocation check failed")
		}
		c.Next()
	}
}
