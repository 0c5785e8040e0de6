// Package stubapi is a development stand-in for the remote simulado API. It
// serves YAML fixtures over the same wire contract the gateway speaks.
package stubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	govalidator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/validator"
)

// Messages returned in {error} bodies.
const (
	MsgInvalidCredentials = "Credenciais inválidas"
	MsgTokenRequired      = "Token não fornecido"
	MsgTokenInvalid       = "Token inválido"
	MsgSessionNotFound    = "Simulado não encontrado"
	MsgAlreadyFinalized   = "Simulado já foi finalizado"
	MsgQuestionNotInSet   = "Questão não pertence ao simulado"
	MsgInvalidPayload     = "Dados inválidos"
)

// Tokens issues and checks bearer tokens. The runner's AuthService satisfies
// it so both sides agree on the JWT secret.
type Tokens interface {
	GenerateToken(userID int, username string) (string, error)
	Principal(token string) (model.Principal, error)
}

type stubSession struct {
	owner     int
	session   model.Session
	questions []model.Question
	answers   map[int]model.ChoiceLabel
}

// Server holds the stub's in-memory state. It is safe for concurrent use.
type Server struct {
	tokens   Tokens
	validate *govalidator.Validate
	log      zerolog.Logger
	now      func() time.Time

	mu            sync.Mutex
	users         map[string]FixtureUser
	usersByID     map[int]FixtureUser
	sessions      map[int]*stubSession
	saves         []model.SaveAnswerRequest
	finalizations []model.FinalizeRequest
}

func New(fx *Fixtures, tokens Tokens, log zerolog.Logger) *Server {
	s := &Server{
		tokens:    tokens,
		validate:  validator.New(),
		log:       log.With().Str("component", "stub-api").Logger(),
		now:       time.Now,
		users:     make(map[string]FixtureUser),
		usersByID: make(map[int]FixtureUser),
		sessions:  make(map[int]*stubSession),
	}
	for _, u := range fx.Users {
		s.users[u.Username] = u
		s.usersByID[u.ID] = u
	}
	for _, sim := range fx.Simulados {
		s.sessions[sim.ID] = &stubSession{
			owner:     sim.UserID,
			session:   sim.session(),
			questions: sim.questions(),
			answers:   make(map[int]model.ChoiceLabel),
		}
	}
	return s
}

// Handler returns the chi router serving the remote API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireToken)
		pr.Get("/auth/verificar-token", s.handleVerify)
		pr.Get("/simulado/{id}", s.handleGetSimulado)
		pr.Post("/responder-questao", s.handleSaveAnswer)
		pr.Post("/finalizar-simulado", s.handleFinalize)
	})
	return r
}

// Saves returns every accepted answer save in arrival order.
func (s *Server) Saves() []model.SaveAnswerRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SaveAnswerRequest(nil), s.saves...)
}

// Finalizations returns every accepted finalization in arrival order.
func (s *Server) Finalizations() []model.FinalizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FinalizeRequest(nil), s.finalizations...)
}

// Answers returns the stored answers for a session.
func (s *Server) Answers(sessionID int) map[int]model.ChoiceLabel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]model.ChoiceLabel)
	if sess, ok := s.sessions[sessionID]; ok {
		for k, v := range sess.answers {
			out[k] = v
		}
	}
	return out
}

type principalKey struct{}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			respondError(w, http.StatusUnauthorized, MsgTokenRequired)
			return
		}
		p, err := s.tokens.Principal(parts[1])
		if err != nil {
			respondError(w, http.StatusUnauthorized, MsgTokenInvalid)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("Stub request")
	})
}

func principalFrom(r *http.Request) model.Principal {
	p, _ := r.Context().Value(principalKey{}).(model.Principal)
	return p
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		respondError(w, http.StatusBadRequest, MsgInvalidPayload)
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.Password != req.Password {
		respondError(w, http.StatusUnauthorized, MsgInvalidCredentials)
		return
	}

	token, err := s.tokens.GenerateToken(u.ID, u.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to issue token")
		respondError(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	respondJSON(w, http.StatusOK, model.LoginResponse{
		Token: token,
		User:  model.AuthUser{ID: u.ID, Username: u.Username, Email: u.Email},
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	s.mu.Lock()
	u, ok := s.usersByID[p.UserID]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusUnauthorized, MsgTokenInvalid)
		return
	}
	respondJSON(w, http.StatusOK, model.VerifyResponse{User: model.AuthUser{ID: u.ID, Username: u.Username, Email: u.Email}})
}

func (s *Server) handleGetSimulado(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, MsgSessionNotFound)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.owned(id, principalFrom(r).UserID)
	if !ok {
		respondError(w, http.StatusNotFound, MsgSessionNotFound)
		return
	}
	questions := sess.questions
	if questions == nil {
		questions = []model.Question{}
	}
	respondJSON(w, http.StatusOK, model.SessionBundle{Session: sess.session, Questions: questions})
}

func (s *Server) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.SaveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		respondError(w, http.StatusBadRequest, MsgInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.owned(req.SessionID, principalFrom(r).UserID)
	if !ok {
		respondError(w, http.StatusNotFound, MsgSessionNotFound)
		return
	}
	if sess.session.Finalized {
		respondError(w, http.StatusBadRequest, MsgAlreadyFinalized)
		return
	}
	if !sess.has(req.QuestionID) {
		respondError(w, http.StatusBadRequest, MsgQuestionNotInSet)
		return
	}

	choice, _ := model.ParseChoice(string(req.Choice))
	sess.answers[req.QuestionID] = choice
	s.saves = append(s.saves, req)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Resposta salva"})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req model.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		respondError(w, http.StatusBadRequest, MsgInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.owned(req.SessionID, principalFrom(r).UserID)
	if !ok {
		respondError(w, http.StatusNotFound, MsgSessionNotFound)
		return
	}
	if sess.session.Finalized {
		respondError(w, http.StatusBadRequest, MsgAlreadyFinalized)
		return
	}

	total := req.TotalSeconds
	sess.session.Finalized = true
	sess.session.TotalSeconds = &total
	sess.session.FinalizedAt = &model.Timestamp{Time: s.now().UTC()}
	s.finalizations = append(s.finalizations, req)

	s.log.Info().Int("simulado_id", req.SessionID).Int("tempo_total", total).
		Int("answered", len(sess.answers)).Msg("Simulado finalized")
	respondJSON(w, http.StatusOK, map[string]any{"message": "Simulado finalizado", "simulado_id": req.SessionID})
}

// owned must be called with s.mu held.
func (s *Server) owned(id, userID int) (*stubSession, bool) {
	sess, ok := s.sessions[id]
	if !ok || sess.owner != userID {
		return nil, false
	}
	return sess, true
}

func (ss *stubSession) has(questionID int) bool {
	for _, q := range ss.questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, model.APIError{Error: msg})
}
