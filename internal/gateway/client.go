// Package gateway is the only code that talks to the remote simulado API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/validator"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client holds what every call shares. Use For to act on behalf of a student.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *govalidator.Validate
	log      zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	h := cfg.HTTPClient
	if h == nil {
		h = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     h,
		validate: validator.New(),
		log:      log.With().Str("component", "gateway").Logger(),
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	const op = "login"
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.validate.Struct(req); err != nil {
		return nil, &Error{Kind: ErrValidation, Op: op, Err: err}
	}
	var out model.LoginResponse
	if err := c.do(ctx, op, http.MethodPost, "/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(out); err != nil {
		return nil, &Error{Kind: ErrValidation, Op: op, Err: err}
	}
	return &out, nil
}

// For binds the client to p; every request carries p's bearer token.
func (c *Client) For(p model.Principal) *Scoped {
	return &Scoped{client: c, principal: p}
}

// Scoped is the gateway as seen by one authenticated student.
type Scoped struct {
	client    *Client
	principal model.Principal
}

func (s *Scoped) Principal() model.Principal { return s.principal }

// VerifyToken asks the remote API who the token belongs to.
func (s *Scoped) VerifyToken(ctx context.Context) (model.Principal, error) {
	var out model.VerifyResponse
	if err := s.client.do(ctx, "verify token", http.MethodGet, "/auth/verificar-token", s.principal.Token, nil, &out); err != nil {
		return model.Principal{}, err
	}
	return model.Principal{UserID: out.User.ID, Username: out.User.Username, Token: s.principal.Token}, nil
}

// LoadSession fetches the session descriptor and its ordered questions.
func (s *Scoped) LoadSession(ctx context.Context, sessionID int) (*model.SessionBundle, error) {
	const op = "load simulado"
	if sessionID <= 0 {
		return nil, &Error{Kind: ErrValidation, Op: op, Err: fmt.Errorf("session id %d", sessionID)}
	}

	var bundle model.SessionBundle
	path := fmt.Sprintf("/simulado/%d", sessionID)
	if err := s.client.do(ctx, op, http.MethodGet, path, s.principal.Token, nil, &bundle); err != nil {
		return nil, err
	}
	if err := s.client.validate.Struct(bundle); err != nil {
		return nil, &Error{Kind: ErrValidation, Op: op, Err: err}
	}
	return &bundle, nil
}

// SaveAnswer persists one answer. The response body is ignored.
func (s *Scoped) SaveAnswer(ctx context.Context, req model.SaveAnswerRequest) error {
	const op = "save answer"
	if err := s.client.validate.Struct(req); err != nil {
		return &Error{Kind: ErrValidation, Op: op, Err: err}
	}
	return s.client.do(ctx, op, http.MethodPost, "/responder-questao", s.principal.Token, req, nil)
}

// FinalizeSession closes the session with the total elapsed seconds.
func (s *Scoped) FinalizeSession(ctx context.Context, req model.FinalizeRequest) error {
	const op = "finalize simulado"
	if err := s.client.validate.Struct(req); err != nil {
		return &Error{Kind: ErrValidation, Op: op, Err: err}
	}
	return s.client.do(ctx, op, http.MethodPost, "/finalizar-simulado", s.principal.Token, req, nil)
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: ErrValidation, Op: op, Err: err}
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return &Error{Kind: ErrNetwork, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Str("path", path).Msg("Remote call failed")
		return &Error{Kind: ErrNetwork, Op: op, Err: err}
	}
	defer res.Body.Close()

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", res.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Remote call")

	if res.StatusCode/100 != 2 {
		return statusError(op, res)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &Error{Kind: ErrNetwork, Op: op, Status: res.StatusCode, Err: err}
		}
		return &Error{Kind: ErrValidation, Op: op, Status: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(op string, res *http.Response) *Error {
	e := &Error{Op: op, Status: res.StatusCode}
	switch res.StatusCode {
	case http.StatusNotFound:
		e.Kind = ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e.Kind = ErrValidation
	default:
		e.Kind = ErrRemote
	}

	var payload model.APIError
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if json.Unmarshal(raw, &payload) == nil {
		e.Message = payload.Error
	}
	return e
}
