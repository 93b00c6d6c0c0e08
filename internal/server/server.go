// Package server provides the HTTP handlers and routing for the MCP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/r3labs/sse/v2"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"foreman-mcp/internal/tools"
)

// Config contains server configuration values such as the auth token and rate limits.
type Config struct {
	Name    string
	Version string
	Token   string
	// RateLimit is the number of /mcp requests allowed per second; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// RequestTimeout bounds non-streaming requests.
	RequestTimeout time.Duration
}

// Invoker is the tool layer the server exposes.
type Invoker interface {
	List() []tools.Descriptor
	Invoke(ctx context.Context, name string, args map[string]any) (*tools.Result, error)
}

// Server contains the configured router, tool dispatcher and SSE streams.
type Server struct {
	cfg     Config
	router  *chi.Mux
	tools   Invoker
	logger  *zap.Logger
	limiter *rate.Limiter
	streams *sse.Server

	// sessions maps SSE session ids to the context their tool calls run under.
	sessions sync.Map
	ctx      context.Context
	cancel   context.CancelFunc
	inflight conc.WaitGroup
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config, invoker Invoker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "foreman-mcp"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		tools:   invoker,
		logger:  logger.Named("server"),
		streams: sse.New(),
	}
	s.streams.AutoReplay = false
	s.streams.OnSubscribe = s.sendEndpoint
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Use(s.throttle)

		r.Route("/mcp", func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Post("/", s.handleRPC)
			r.Get("/tools", s.handleListTools)
			r.Post("/call", s.handleCall)
		})

		r.Get("/sse", s.handleSSE)
		r.Post("/messages/", s.handleMessage)
	})

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// Close cancels SSE tool calls still running, waits for them and ends all open
// SSE streams.
func (s *Server) Close() {
	s.cancel()
	s.inflight.Wait()
	s.streams.Close()
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("HTTP request",
				zap.String("requestID", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ListToolsResult{Tools: s.tools.List()})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	res, err := s.tools.Invoke(r.Context(), req.Name, req.Args)
	if err != nil {
		status := http.StatusInternalServerError
		body := map[string]string{"error": err.Error()}
		if kind, ok := tools.KindOf(err); ok {
			status = kind.HTTPStatus()
			body["kind"] = string(kind)
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, CallToolResult{Content: res.Content})
}

// callResult renders a tool outcome as an MCP result. Classified failures are
// tool errors the client should see; anything else is a protocol error.
func (s *Server) callResult(ctx context.Context, req CallRequest) (*CallToolResult, *rpcError) {
	res, err := s.tools.Invoke(ctx, req.Name, req.Args)
	if err == nil {
		return &CallToolResult{Content: res.Content}, nil
	}
	if kind, ok := tools.KindOf(err); ok {
		return &CallToolResult{
			Meta:    map[string]interface{}{"errorKind": string(kind)},
			Content: []tools.Content{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, &rpcError{Code: codeInternalError, Message: "request cancelled"}
	}
	return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
