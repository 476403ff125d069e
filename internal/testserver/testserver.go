// Package testserver provides a local HTTP target with scriptable behavior
// for exercising the load tester end to end.
package testserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Server is an in-process HTTP target. Request bodies can steer individual
// responses: a JSON body with "delayMs" adds response latency, "fail": true
// forces a 500, and "status" forces an arbitrary status code. The /limited
// path enforces a server-side rate limit and answers 429 beyond it.
type Server struct {
	httpServer *httptest.Server
	limiter    *rate.Limiter
	requests   atomic.Int64
	limited    atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit sets the allowance for the /limited path.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New starts a Server. Callers must Close it.
func New(opts ...Option) *Server {
	s := &Server{
		limiter: rate.NewLimiter(rate.Limit(50), 50),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/limited", s.handleLimited)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// Requests returns how many requests the server has handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Throttled returns how many requests the /limited path rejected.
func (s *Server) Throttled() int64 {
	return s.limited.Load()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.respond(w, r)
}

func (s *Server) handleLimited(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if !s.limiter.Allow() {
		s.limited.Add(1)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	s.respond(w, r)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if len(body) > 0 && gjson.ValidBytes(body) {
		if delay := gjson.GetBytes(body, "delayMs"); delay.Exists() {
			time.Sleep(time.Duration(delay.Int()) * time.Millisecond)
		}
		if gjson.GetBytes(body, "fail").Bool() {
			http.Error(w, "forced failure", http.StatusInternalServerError)
			return
		}
		if status := gjson.GetBytes(body, "status"); status.Exists() {
			w.WriteHeader(int(status.Int()))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}
