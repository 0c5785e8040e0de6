package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/response"
)

const (
	// ContextKeySimulado is the Gin context key for the open simulado controller.
	ContextKeySimulado = "simulado"
	// ContextKeySimuladoID is the Gin context key for the parsed :id param.
	ContextKeySimuladoID = "simulado_id"
)

// SimuladoLookup finds a student's open simulado.
type SimuladoLookup interface {
	Get(userID, sessionID int) (*exam.Controller, bool)
}

// ParseSimuladoID validates the :id path param and stores it in the context.
func ParseSimuladoID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		c.Set(ContextKeySimuladoID, id)
		c.Next()
	}
}

// RequireOpenSimulado rejects requests for a simulado the student has not
// opened in this runner. Must run after RequireStudentJWT and ParseSimuladoID.
func RequireOpenSimulado(sessions SimuladoLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		ctrl, ok := sessions.Get(p.UserID, c.GetInt(ContextKeySimuladoID))
		if !ok {
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotOpen)
			return
		}
		c.Set(ContextKeySimulado, ctrl)
		c.Next()
	}
}

// GetSimulado retrieves the controller stored by RequireOpenSimulado.
func GetSimulado(c *gin.Context) *exam.Controller {
	val, exists := c.Get(ContextKeySimulado)
	if !exists {
		return nil
	}
	ctrl, _ := val.(*exam.Controller)
	return ctrl
}
