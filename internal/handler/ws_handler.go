package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/middleware"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/response"
	ws "github.com/stemsi/simulado/internal/websocket"
)

// eventBuffer bounds how many controller events queue up per connection.
const eventBuffer = 32

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a simulado over WebSocket: controller events flow out,
// student actions flow in.
type WSHandler struct {
	sessions SessionOpener
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionOpener, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SimuladoStream godoc
// WS /ws/v1/simulados/:id/stream
// Opens the simulado if needed, sends the current view, then forwards clock
// ticks and state changes while accepting actions.
func (h *WSHandler) SimuladoStream(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID := c.GetInt(middleware.ContextKeySimuladoID)

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", p.UserID).
		Int("simulado_id", sessionID).
		Logger()

	ctrl, err := h.sessions.Open(context.Background(), p, sessionID)
	if ctrl == nil {
		_, code := controllerError(err)
		conn.WriteError(string(code), response.GetMessage(code))
		return
	}
	if err != nil {
		wsLog.Warn().Err(err).Msg("Simulado load failed")
	}

	events, unsubscribe := ctrl.Subscribe(eventBuffer)
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					// Controller closed; closing the conn ends the read loop.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulado closed"),
						time.Now().Add(time.Second))
					conn.Close()
					return
				}
				if err := conn.WriteTyped(ev); err != nil {
					return
				}
			}
		}
	}()

	wsLog.Info().Msg("Student connected")
	conn.WriteTyped(ws.ViewResponse{Event: ws.EventView, View: ctrl.View()})

	for {
		msg, err := conn.ReadRequest()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.dispatch(conn, wsLog, ctrl, msg)
	}
}

// dispatch runs one student action and replies with the fresh view or an
// error frame. Controller events are delivered separately.
func (h *WSHandler) dispatch(conn *ws.Conn, wsLog zerolog.Logger, ctrl *exam.Controller, msg ws.RequestPayload) {
	var err error
	switch msg.Action {
	case ws.ActionPing:
		conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionView:
	case ws.ActionSelect:
		choice, perr := model.ParseChoice(msg.Choice)
		if perr != nil {
			err = perr
		} else if msg.QuestionID > 0 {
			err = ctrl.Select(msg.QuestionID, choice)
		} else {
			err = ctrl.SelectCurrent(choice)
		}
	case ws.ActionNext:
		err = ctrl.Next()
	case ws.ActionPrevious:
		err = ctrl.Previous()
	case ws.ActionJump:
		if msg.Index == nil {
			conn.WriteError(string(response.ErrValidation), "index is required for jump")
			return
		}
		err = ctrl.JumpTo(*msg.Index)
	case ws.ActionRetry:
		err = ctrl.Retry(context.Background())
	case ws.ActionFinalize:
		confirm := exam.ConfirmFunc(func(context.Context, string) (bool, error) { return msg.Confirm, nil })
		redirect, ferr := ctrl.Finalize(context.Background(), confirm)
		if ferr == nil {
			wsLog.Info().Str("redirect", redirect).Msg("Simulado finalized")
			conn.WriteTyped(ws.FinalizedResponse{Event: ws.EventFinalized, Redirect: redirect})
			return
		}
		if gateway.Kind(ferr) != nil {
			conn.WriteError(string(response.ErrFinalizeFailed), ctrl.View().Alert)
			return
		}
		err = ferr
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		return
	}

	if err != nil {
		conn.WriteError(h.errorFrame(ctrl, err))
		return
	}
	conn.WriteTyped(ws.ViewResponse{Event: ws.EventView, View: ctrl.View()})
}

// errorFrame prefers the controller's alert for remote failures so the
// student sees the same message as in the REST view.
func (h *WSHandler) errorFrame(ctrl *exam.Controller, err error) (string, string) {
	_, code := controllerError(err)
	if gateway.Kind(err) != nil || errors.Is(err, exam.ErrNoQuestions) {
		if alert := ctrl.View().Alert; alert != "" {
			return string(code), alert
		}
	}
	return string(code), response.GetMessage(code)
}
