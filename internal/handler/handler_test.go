package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/middleware"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/response"
	"github.com/stemsi/simulado/internal/service"
	"github.com/stemsi/simulado/internal/stubapi"
	"github.com/stemsi/simulado/internal/validator"
	ws "github.com/stemsi/simulado/internal/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type env struct {
	engine   *gin.Engine
	stub     *stubapi.Server
	auth     *service.AuthService
	sessions *service.SessionRegistry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	auth := service.NewAuthService(&config.Config{JWTSecret: "handler-test", JWTExpiry: time.Hour})
	fx, err := stubapi.LoadFixtures("../stubapi/testdata/simulados.yaml")
	if err != nil {
		t.Fatal(err)
	}
	stub := stubapi.New(fx, auth, zerolog.Nop())
	api := httptest.NewServer(stub.Handler())
	t.Cleanup(api.Close)

	client := gateway.New(gateway.Config{BaseURL: api.URL, Timeout: 2 * time.Second}, zerolog.Nop())
	sessions := service.NewSessionRegistry(service.RegistryOptions{
		Gateways: func(p model.Principal) exam.Gateway { return client.For(p) },
		Sink:     exam.NewLogSink(zerolog.Nop()),
		Tick:     time.Hour,
		Log:      zerolog.Nop(),
	})
	t.Cleanup(sessions.Shutdown)

	simulados := NewSimuladoHandler(sessions, zerolog.Nop())
	streams := NewWSHandler(sessions, zerolog.Nop(), nil)

	r := gin.New()
	g := r.Group("/api/v1/simulados/:id", middleware.RequireStudentJWT(auth), middleware.ParseSimuladoID())
	g.GET("", simulados.Open)
	g.DELETE("", simulados.Abandon)
	open := g.Group("", middleware.RequireOpenSimulado(sessions))
	open.POST("/retry", simulados.Retry)
	open.POST("/answers", simulados.SelectAnswer)
	open.POST("/navigation", simulados.Navigate)
	open.POST("/finalize", simulados.Finalize)
	r.GET("/ws/v1/simulados/:id/stream", middleware.RequireStudentWSAuth(auth), middleware.ParseSimuladoID(), streams.SimuladoStream)

	return &env{engine: r, stub: stub, auth: auth, sessions: sessions}
}

func (e *env) token(t *testing.T, userID int, username string) string {
	t.Helper()
	tok, err := e.auth.GenerateToken(userID, username)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (e *env) call(t *testing.T, token, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func decodeView(t *testing.T, raw json.RawMessage) exam.View {
	t.Helper()
	var v exam.View
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func errCode(env envelope) response.ErrCode {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestSimuladoFlow(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, 1, "aluno")
	const base = "/api/v1/simulados/1"

	status, res := e.call(t, tok, http.MethodGet, base, nil)
	if status != http.StatusOK {
		t.Fatalf("open status = %d, error = %+v", status, res.Error)
	}
	v := decodeView(t, res.Data)
	if v.State != exam.StateActive || v.Total != 3 || v.Index != 0 || v.Question == nil || v.Question.ID != 101 {
		t.Fatalf("open view = %+v", v)
	}

	status, res = e.call(t, tok, http.MethodPost, base+"/answers", model.SelectAnswerRequest{QuestionID: 101, Choice: "B"})
	if status != http.StatusOK {
		t.Fatalf("answer status = %d, error = %+v", status, res.Error)
	}
	if v = decodeView(t, res.Data); v.Answered != 1 || v.Percent != 33 || v.Question.Selected != model.ChoiceB {
		t.Fatalf("answer view = %+v", v)
	}

	status, res = e.call(t, tok, http.MethodPost, base+"/navigation", map[string]interface{}{"action": "jump", "index": 2})
	if status != http.StatusOK {
		t.Fatalf("jump status = %d, error = %+v", status, res.Error)
	}
	if v = decodeView(t, res.Data); v.Index != 2 || v.Question.ID != 103 {
		t.Fatalf("jump view = %+v", v)
	}

	status, res = e.call(t, tok, http.MethodPost, base+"/answers", model.SelectAnswerRequest{QuestionID: 103, Choice: "d"})
	if status != http.StatusOK {
		t.Fatalf("lowercase answer status = %d, error = %+v", status, res.Error)
	}

	status, res = e.call(t, tok, http.MethodPost, base+"/finalize", map[string]bool{"confirm": false})
	if status != http.StatusBadRequest || errCode(res) != response.ErrFinalizeUnconfirmed {
		t.Fatalf("unconfirmed finalize = %d %+v", status, res.Error)
	}

	status, res = e.call(t, tok, http.MethodPost, base+"/finalize", map[string]bool{"confirm": true})
	if status != http.StatusOK {
		t.Fatalf("finalize status = %d, error = %+v", status, res.Error)
	}
	var fin FinalizeResult
	if err := json.Unmarshal(res.Data, &fin); err != nil {
		t.Fatal(err)
	}
	if fin.Redirect != "/resultado/1" || fin.View.State != exam.StateFinalized {
		t.Fatalf("finalize result = %+v", fin)
	}

	ctrl, ok := e.sessions.Get(1, 1)
	if !ok {
		t.Fatal("controller not registered")
	}
	ctrl.WaitSaves()
	answers := e.stub.Answers(1)
	if answers[101] != model.ChoiceB || answers[103] != model.ChoiceD {
		t.Fatalf("remote answers = %v", answers)
	}
	if got := e.stub.Finalizations(); len(got) != 1 || got[0].SessionID != 1 {
		t.Fatalf("finalizations = %+v", got)
	}

	status, res = e.call(t, tok, http.MethodPost, base+"/finalize", map[string]bool{"confirm": true})
	if status != http.StatusConflict || errCode(res) != response.ErrAlreadyFinalized {
		t.Fatalf("second finalize = %d %+v", status, res.Error)
	}
	status, res = e.call(t, tok, http.MethodPost, base+"/answers", model.SelectAnswerRequest{QuestionID: 102, Choice: "A"})
	if status != http.StatusConflict || errCode(res) != response.ErrNotActive {
		t.Fatalf("answer after finalize = %d %+v", status, res.Error)
	}
}

func TestOpenFailures(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, 1, "aluno")

	tests := []struct {
		name   string
		token  string
		path   string
		status int
		code   response.ErrCode
		alert  string
	}{
		{"no token", "", "/api/v1/simulados/1", http.StatusUnauthorized, response.ErrTokenRequired, ""},
		{"bad token", "garbage", "/api/v1/simulados/1", http.StatusUnauthorized, response.ErrTokenInvalid, ""},
		{"bad id", tok, "/api/v1/simulados/abc", http.StatusBadRequest, response.ErrInvalidID, ""},
		{"zero id", tok, "/api/v1/simulados/0", http.StatusBadRequest, response.ErrInvalidID, ""},
		{"missing", tok, "/api/v1/simulados/999", http.StatusNotFound, response.ErrNotFound, stubapi.MsgSessionNotFound},
		{"foreign", tok, "/api/v1/simulados/4", http.StatusNotFound, response.ErrNotFound, stubapi.MsgSessionNotFound},
		{"empty", tok, "/api/v1/simulados/3", http.StatusNotFound, response.ErrNoQuestions, model.MsgNoQuestions},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, res := e.call(t, tc.token, http.MethodGet, tc.path, nil)
			if status != tc.status || errCode(res) != tc.code {
				t.Fatalf("got %d %+v, want %d %s", status, res.Error, tc.status, tc.code)
			}
			if tc.alert == "" {
				return
			}
			if res.Error.Message != tc.alert {
				t.Fatalf("message = %q, want %q", res.Error.Message, tc.alert)
			}
			if v := decodeView(t, res.Data); v.State != exam.StateError || v.Alert != tc.alert {
				t.Fatalf("view = %+v", v)
			}
		})
	}
}

func TestRetryAfterFailedLoad(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, 1, "aluno")

	if status, _ := e.call(t, tok, http.MethodGet, "/api/v1/simulados/3", nil); status != http.StatusNotFound {
		t.Fatalf("open status = %d", status)
	}
	status, res := e.call(t, tok, http.MethodPost, "/api/v1/simulados/3/retry", nil)
	if status != http.StatusNotFound || errCode(res) != response.ErrNoQuestions {
		t.Fatalf("retry = %d %+v", status, res.Error)
	}

	if status, _ := e.call(t, tok, http.MethodGet, "/api/v1/simulados/1", nil); status != http.StatusOK {
		t.Fatalf("open status = %d", status)
	}
	status, res = e.call(t, tok, http.MethodPost, "/api/v1/simulados/1/retry", nil)
	if status != http.StatusConflict || errCode(res) != response.ErrNotFailed {
		t.Fatalf("retry active = %d %+v", status, res.Error)
	}
}

func TestAlreadyFinalizedSimulado(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, 1, "aluno")

	status, res := e.call(t, tok, http.MethodGet, "/api/v1/simulados/2", nil)
	if status != http.StatusOK {
		t.Fatalf("open status = %d %+v", status, res.Error)
	}
	if v := decodeView(t, res.Data); v.State != exam.StateFinalized || v.Redirect != "/resultado/2" {
		t.Fatalf("view = %+v", v)
	}
	status, res = e.call(t, tok, http.MethodPost, "/api/v1/simulados/2/finalize", map[string]bool{"confirm": true})
	if status != http.StatusConflict || errCode(res) != response.ErrAlreadyFinalized {
		t.Fatalf("finalize = %d %+v", status, res.Error)
	}
}

func TestActionValidation(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, 1, "aluno")
	const base = "/api/v1/simulados/1"

	status, res := e.call(t, tok, http.MethodPost, base+"/answers", model.SelectAnswerRequest{QuestionID: 101, Choice: "A"})
	if status != http.StatusNotFound || errCode(res) != response.ErrSessionNotOpen {
		t.Fatalf("answer before open = %d %+v", status, res.Error)
	}

	if status, _ := e.call(t, tok, http.MethodGet, base, nil); status != http.StatusOK {
		t.Fatalf("open status = %d", status)
	}

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   response.ErrCode
	}{
		{"bad choice", "/answers", map[string]interface{}{"question_id": 101, "choice": "F"}, http.StatusBadRequest, response.ErrValidation},
		{"missing question", "/answers", map[string]interface{}{"choice": "A"}, http.StatusBadRequest, response.ErrValidation},
		{"unknown question", "/answers", model.SelectAnswerRequest{QuestionID: 999, Choice: "A"}, http.StatusBadRequest, response.ErrUnknownQuestion},
		{"bad action", "/navigation", map[string]string{"action": "sideways"}, http.StatusBadRequest, response.ErrValidation},
		{"jump without index", "/navigation", map[string]string{"action": "jump"}, http.StatusBadRequest, response.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, res := e.call(t, tok, http.MethodPost, base+tc.path, tc.body)
			if status != tc.status || errCode(res) != tc.code {
				t.Fatalf("got %d %+v, want %d %s", status, res.Error, tc.status, tc.code)
			}
		})
	}

	// Out-of-range jumps clamp to a no-op instead of failing.
	status, res = e.call(t, tok, http.MethodPost, base+"/navigation", map[string]interface{}{"action": "jump", "index": 10})
	if status != http.StatusOK || decodeView(t, res.Data).Index != 0 {
		t.Fatalf("out of range jump = %d %+v", status, res.Error)
	}
}

func TestAbandon(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, 1, "aluno")

	if status, _ := e.call(t, tok, http.MethodGet, "/api/v1/simulados/1", nil); status != http.StatusOK {
		t.Fatalf("open status = %d", status)
	}
	if status, _ := e.call(t, tok, http.MethodDelete, "/api/v1/simulados/1", nil); status != http.StatusOK {
		t.Fatalf("delete status = %d", status)
	}
	if _, ok := e.sessions.Get(1, 1); ok {
		t.Fatal("controller still registered")
	}
	status, res := e.call(t, tok, http.MethodPost, "/api/v1/simulados/1/navigation", map[string]string{"action": "next"})
	if status != http.StatusNotFound || errCode(res) != response.ErrSessionNotOpen {
		t.Fatalf("after delete = %d %+v", status, res.Error)
	}
}

// readUntil reads frames until one carries the wanted event.
func readUntil(t *testing.T, conn *websocket.Conn, event string) map[string]json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame map[string]json.RawMessage
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		var got string
		_ = json.Unmarshal(frame["event"], &got)
		if got == event {
			return frame
		}
	}
	t.Fatalf("no %q event", event)
	return nil
}

func TestSimuladoStream(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/simulados/1/stream?token=" + e.token(t, 1, "aluno")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := readUntil(t, conn, string(ws.EventView))
	v := decodeView(t, frame["view"])
	if v.State != exam.StateActive || v.Total != 3 {
		t.Fatalf("initial view = %+v", v)
	}

	send := func(p ws.RequestPayload) {
		t.Helper()
		if err := conn.WriteJSON(p); err != nil {
			t.Fatal(err)
		}
	}

	send(ws.RequestPayload{Action: ws.ActionPing})
	readUntil(t, conn, string(ws.EventPong))

	send(ws.RequestPayload{Action: ws.ActionSelect, Choice: "C"})
	frame = readUntil(t, conn, string(ws.EventView))
	if v = decodeView(t, frame["view"]); v.Answered != 1 || v.Question.Selected != model.ChoiceC {
		t.Fatalf("after select = %+v", v)
	}

	send(ws.RequestPayload{Action: ws.ActionNext})
	frame = readUntil(t, conn, string(ws.EventView))
	if v = decodeView(t, frame["view"]); v.Index != 1 {
		t.Fatalf("after next = %+v", v)
	}

	send(ws.RequestPayload{Action: ws.ActionSelect, Choice: "Z"})
	frame = readUntil(t, conn, string(ws.EventError))
	var code string
	_ = json.Unmarshal(frame["code"], &code)
	if code != string(response.ErrInvalidChoice) {
		t.Fatalf("bad choice code = %q", code)
	}

	send(ws.RequestPayload{Action: "dance"})
	frame = readUntil(t, conn, string(ws.EventError))
	_ = json.Unmarshal(frame["code"], &code)
	if code != string(response.ErrInvalidPayload) {
		t.Fatalf("unknown action code = %q", code)
	}

	send(ws.RequestPayload{Action: ws.ActionFinalize})
	frame = readUntil(t, conn, string(ws.EventError))
	_ = json.Unmarshal(frame["code"], &code)
	if code != string(response.ErrFinalizeUnconfirmed) {
		t.Fatalf("unconfirmed code = %q", code)
	}

	send(ws.RequestPayload{Action: ws.ActionFinalize, Confirm: true})
	frame = readUntil(t, conn, string(ws.EventFinalized))
	var redirect string
	_ = json.Unmarshal(frame["redirect"], &redirect)
	if redirect != "/resultado/1" {
		t.Fatalf("redirect = %q", redirect)
	}
}

func TestSimuladoStreamRejectsMissingToken(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/ws/v1/simulados/1/stream", nil)
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
