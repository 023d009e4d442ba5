package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
)

// RequireStaff lets through non-editing teachers and above.
func RequireStaff() gin.HandlerFunc {
	return requireRole(model.Role.IsStaff, response.ErrStaffOnly)
}

// RequireEditor lets through teachers and above.
func RequireEditor() gin.HandlerFunc {
	return requireRole(model.Role.CanEdit, response.ErrEditorOnly)
}

func requireRole(allowed func(model.Role) bool, code response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !allowed(claims.Role) {
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}
		c.Next()
	}
}
