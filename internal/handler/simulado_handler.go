package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/middleware"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/response"
	"github.com/stemsi/simulado/internal/validator"
)

// SessionOpener opens (or returns) a student's simulado and closes it.
type SessionOpener interface {
	Open(ctx context.Context, p model.Principal, sessionID int) (*exam.Controller, error)
	Close(userID, sessionID int) bool
}

// SimuladoHandler exposes the exam-taking flow over REST.
type SimuladoHandler struct {
	sessions SessionOpener
	log      zerolog.Logger
}

// NewSimuladoHandler creates a new SimuladoHandler.
func NewSimuladoHandler(sessions SessionOpener, log zerolog.Logger) *SimuladoHandler {
	return &SimuladoHandler{
		sessions: sessions,
		log:      log.With().Str("component", "simulado_handler").Logger(),
	}
}

// FinalizeResult is returned once the remote API accepted the finalization.
type FinalizeResult struct {
	Redirect string    `json:"redirect"`
	View     exam.View `json:"view"`
}

// Open godoc
// GET /api/v1/simulados/:id
// Loads the simulado on first access and returns its current view.
func (h *SimuladoHandler) Open(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID := c.GetInt(middleware.ContextKeySimuladoID)

	// Detached from the request: a dropped client must not fail the load.
	ctx := context.WithoutCancel(c.Request.Context())
	ctrl, err := h.sessions.Open(ctx, p, sessionID)
	if err != nil {
		h.loadFailed(c, ctrl, err)
		return
	}
	response.Success(c, http.StatusOK, ctrl.View())
}

// Retry godoc
// POST /api/v1/simulados/:id/retry
// Reloads a simulado whose first load failed.
func (h *SimuladoHandler) Retry(c *gin.Context) {
	ctrl := middleware.GetSimulado(c)
	if err := ctrl.Retry(context.WithoutCancel(c.Request.Context())); err != nil {
		if errors.Is(err, exam.ErrNotFailed) {
			writeControllerError(c, err)
			return
		}
		h.loadFailed(c, ctrl, err)
		return
	}
	response.Success(c, http.StatusOK, ctrl.View())
}

// SelectAnswer godoc
// POST /api/v1/simulados/:id/answers
// Records a choice locally; the remote save happens in the background.
func (h *SimuladoHandler) SelectAnswer(c *gin.Context) {
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	choice, err := model.ParseChoice(req.Choice)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidChoice)
		return
	}

	ctrl := middleware.GetSimulado(c)
	if err := ctrl.Select(req.QuestionID, choice); err != nil {
		writeControllerError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ctrl.View())
}

// Navigate godoc
// POST /api/v1/simulados/:id/navigation
// Moves the cursor: next, previous or jump to a zero-based index.
func (h *SimuladoHandler) Navigate(c *gin.Context) {
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctrl := middleware.GetSimulado(c)
	var err error
	switch req.Action {
	case "next":
		err = ctrl.Next()
	case "previous":
		err = ctrl.Previous()
	case "jump":
		err = ctrl.JumpTo(*req.Index)
	}
	if err != nil {
		writeControllerError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ctrl.View())
}

// Finalize godoc
// POST /api/v1/simulados/:id/finalize
// Closes the simulado. The body must carry {"confirm": true}.
func (h *SimuladoHandler) Finalize(c *gin.Context) {
	var req model.FinalizeSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctrl := middleware.GetSimulado(c)
	confirm := exam.ConfirmFunc(func(context.Context, string) (bool, error) { return req.Confirm, nil })
	redirect, err := ctrl.Finalize(context.WithoutCancel(c.Request.Context()), confirm)
	if err != nil {
		if gateway.Kind(err) != nil {
			view := ctrl.View()
			response.FailWithView(c, http.StatusBadGateway, response.ErrFinalizeFailed, view.Alert, view)
			return
		}
		writeControllerError(c, err)
		return
	}
	response.Success(c, http.StatusOK, FinalizeResult{Redirect: redirect, View: ctrl.View()})
}

// Abandon godoc
// DELETE /api/v1/simulados/:id
// Closes the simulado in this runner without finalizing it remotely.
func (h *SimuladoHandler) Abandon(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	sessionID := c.GetInt(middleware.ContextKeySimuladoID)
	h.sessions.Close(p.UserID, sessionID)
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// loadFailed answers a failed load with the alert and the error view. The
// controller stays registered so the client can retry.
func (h *SimuladoHandler) loadFailed(c *gin.Context, ctrl *exam.Controller, err error) {
	if ctrl == nil || errors.Is(err, exam.ErrClosed) {
		writeControllerError(c, err)
		return
	}
	view := ctrl.View()
	status, code := controllerError(err)
	if code == response.ErrInternal {
		status, code = http.StatusBadGateway, response.ErrLoadFailed
	}

	h.log.Warn().Err(err).Int("simulado_id", ctrl.SessionID()).Msg("Simulado load failed")
	response.FailWithView(c, status, code, view.Alert, view)
}

// writeControllerError maps the controller's sentinel errors to responses.
func writeControllerError(c *gin.Context, err error) {
	status, code := controllerError(err)
	response.Fail(c, status, code)
}

func controllerError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, model.ErrInvalidChoice):
		return http.StatusBadRequest, response.ErrInvalidChoice
	case errors.Is(err, exam.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, exam.ErrNotConfirmed):
		return http.StatusBadRequest, response.ErrFinalizeUnconfirmed
	case errors.Is(err, exam.ErrNotActive):
		return http.StatusConflict, response.ErrNotActive
	case errors.Is(err, exam.ErrNotFailed):
		return http.StatusConflict, response.ErrNotFailed
	case errors.Is(err, exam.ErrAlreadyFinalized):
		return http.StatusConflict, response.ErrAlreadyFinalized
	case errors.Is(err, exam.ErrFinalizeInProgress):
		return http.StatusConflict, response.ErrFinalizeInProgress
	case errors.Is(err, exam.ErrClosed), errors.Is(err, exam.ErrStoreClosed), errors.Is(err, exam.ErrNotLoading):
		return http.StatusNotFound, response.ErrSessionNotOpen
	case errors.Is(err, exam.ErrNoQuestions):
		return http.StatusNotFound, response.ErrNoQuestions
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, gateway.ErrNetwork):
		return http.StatusBadGateway, response.ErrRemoteUnavailable
	case gateway.Kind(err) != nil:
		return http.StatusBadGateway, response.ErrLoadFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
