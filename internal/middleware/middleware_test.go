package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator map[string]model.Principal

func (s stubValidator) Principal(token string) (model.Principal, error) {
	p, ok := s[token]
	if !ok {
		return model.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

type stubLookup map[[2]int]*exam.Controller

func (s stubLookup) Get(userID, sessionID int) (*exam.Controller, bool) {
	c, ok := s[[2]int{userID, sessionID}]
	return c, ok
}

func TestRequireStudentJWT(t *testing.T) {
	v := stubValidator{"good": {UserID: 5, Username: "ana", Token: "good"}}
	r := gin.New()
	r.GET("/x", RequireStudentJWT(v), func(c *gin.Context) {
		p, _ := GetPrincipal(c)
		c.String(http.StatusOK, p.Username)
	})

	tests := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Basic good", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
		{"bearer good", http.StatusOK},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Errorf("%q: status %d, want %d", tc.header, w.Code, tc.status)
		}
	}
}

func TestRequireOpenSimulado(t *testing.T) {
	ctrl := exam.NewController(7, nil, exam.Options{})
	v := stubValidator{"tok": {UserID: 1, Token: "tok"}}
	r := gin.New()
	r.GET("/s/:id", RequireStudentJWT(v), ParseSimuladoID(), RequireOpenSimulado(stubLookup{{1, 7}: ctrl}),
		func(c *gin.Context) {
			if GetSimulado(c) != ctrl {
				t.Error("wrong controller in context")
			}
			c.Status(http.StatusNoContent)
		})

	for path, want := range map[string]int{
		"/s/7":   http.StatusNoContent,
		"/s/8":   http.StatusNotFound,
		"/s/abc": http.StatusBadRequest,
		"/s/-1":  http.StatusBadRequest,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: status %d, want %d", path, w.Code, want)
		}
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("b") {
		t.Fatal("other key should have its own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Fatal("bucket should refill after the interval")
	}

	now = now.Add(time.Hour)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Fatalf("stale visitors kept: %d", len(rl.visitors))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, time.Hour)
	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestBrotliCompressesLargeJSON(t *testing.T) {
	big := strings.Repeat("questão ", 500)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"text": big}) })
	r.GET("/small", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q", w.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "questão") {
		t.Fatalf("decoded body = %.60s", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("small body: %q %q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
}
