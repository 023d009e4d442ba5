package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"

	// HeaderBrowserSession carries the client's browser session id. The
	// access log compares it across requests.
	HeaderBrowserSession = "X-Browser-Session"
	cookieBrowserSession = "browser_session"
)

// RequireJWT validates a bearer token from the Authorization header, or from
// the token query parameter for EventSource and WebSocket clients.
func RequireJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// RequestContext builds the per-request context from the validated claims
// and the client facts of the request.
func RequestContext(c *gin.Context) model.RequestContext {
	var rc model.RequestContext
	if claims := GetClaims(c); claims != nil {
		rc = claims.RequestContext(time.Now())
	} else {
		rc.Now = time.Now().UTC()
	}
	rc.IP = c.ClientIP()
	rc.UserAgent = c.Request.UserAgent()
	rc.BrowserSession = c.GetHeader(HeaderBrowserSession)
	if rc.BrowserSession == "" {
		rc.BrowserSession, _ = c.Cookie(cookieBrowserSession)
	}
	return rc
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = parts[1]
		}
	}

	// Fallback for EventSource (SSE) and WebSocket, which cannot send headers
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return nil, fmt.Errorf("authorization header or token query required")
	}

	return authService.ValidateToken(tokenStr)
}
