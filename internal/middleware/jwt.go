package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/response"
)

const (
	// ContextKeyPrincipal is the Gin context key for the authenticated student.
	ContextKeyPrincipal = "principal"
)

// TokenValidator turns a bearer token into the student it belongs to.
type TokenValidator interface {
	Principal(token string) (model.Principal, error)
}

// RequireStudentJWT validates a student JWT from the Authorization header.
func RequireStudentJWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		p, err := auth.Principal(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		c.Set(ContextKeyPrincipal, p)
		c.Next()
	}
}

// RequireStudentWSAuth validates a student JWT from the query param ?token=...
// Used for WebSocket upgrade requests.
func RequireStudentWSAuth(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		p, err := auth.Principal(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		c.Set(ContextKeyPrincipal, p)
		c.Next()
	}
}

// GetPrincipal retrieves the authenticated student from the Gin context.
func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return model.Principal{}, false
	}
	p, ok := val.(model.Principal)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
