package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/middleware"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/response"
	"github.com/stemsi/simulado/internal/validator"
)

// RemoteAuth is the remote API's login and token check.
type RemoteAuth interface {
	Login(ctx context.Context, username, password string) (*model.LoginResponse, error)
	Verify(ctx context.Context, p model.Principal) (model.Principal, error)
}

// GatewayAuth adapts a gateway client to RemoteAuth.
type GatewayAuth struct {
	Client *gateway.Client
}

func (a GatewayAuth) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	return a.Client.Login(ctx, username, password)
}

func (a GatewayAuth) Verify(ctx context.Context, p model.Principal) (model.Principal, error) {
	return a.Client.For(p).VerifyToken(ctx)
}

// AuthHandler proxies authentication to the remote API. The runner never
// sees passwords beyond forwarding them.
type AuthHandler struct {
	remote RemoteAuth
	log    zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(remote RemoteAuth, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		remote: remote,
		log:    log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/login
// Forwards username + password to the remote API and returns its token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.remote.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.log.Info().Err(err).Str("username", req.Username).Msg("Login rejected")
		h.failRemote(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Me godoc
// GET /api/v1/auth/me
// Confirms with the remote API that the bearer token is still accepted.
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	who, err := h.remote.Verify(c.Request.Context(), p)
	if err != nil {
		h.failRemote(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user": model.AuthUser{ID: who.UserID, Username: who.Username},
	})
}

func (h *AuthHandler) failRemote(c *gin.Context, err error) {
	var ge *gateway.Error
	switch {
	case errors.Is(err, gateway.ErrNetwork):
		response.Fail(c, http.StatusBadGateway, response.ErrRemoteUnavailable)
	case errors.Is(err, gateway.ErrValidation):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.As(err, &ge) && ge.Status == http.StatusUnauthorized:
		response.FailWithView(c, http.StatusUnauthorized, response.ErrInvalidCredentials, ge.Message, nil)
	default:
		response.Fail(c, http.StatusBadGateway, response.ErrRemoteUnavailable)
	}
}
