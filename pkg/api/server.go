package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Host           string        // Host to bind to (default "localhost")
	Port           int           // Port to listen on (default 8080)
	ReadTimeout    time.Duration // Read timeout (default 30s)
	WriteTimeout   time.Duration // Write timeout, 0 for none (rollout streams run long)
	IdleTimeout    time.Duration // Idle timeout (default 60s)
	MaxFastWorkers int           // Max concurrent fast operations (default 100)
	MaxSlowWorkers int           // Max concurrent slow operations (default 4)
	MaxQueued      int           // Requests allowed to wait for a worker, 0 for no limit
	DeepPly        int           // Lookahead that sends an evaluation to the slow workers, 0 to disable
	MaxPly         int           // Deepest evaluation a request may ask for, 0 for no limit
	MaxTrials      int           // Largest rollout a request may ask for, 0 for no limit

	Eval    engine.EvalContext    // defaults for requests without overrides
	Rollout engine.RolloutContext // defaults for rollout requests
	Logger  *zerolog.Logger       // nil discards logs
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Host:           "localhost",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxFastWorkers: 100,
		MaxSlowWorkers: 4,
		MaxQueued:      256,
		DeepPly:        3,
		MaxPly:         3,
		MaxTrials:      46656,
		Eval:           engine.DefaultEvalContext(),
		Rollout:        engine.DefaultRolloutContext(),
	}
}

// Server is the HTTP API server.
type Server struct {
	config   ServerConfig
	handlers *Handlers
	server   *http.Server
	pool     *WorkerPool
	version  string
	log      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(e *engine.Engine, config ServerConfig, version string) *Server {
	pool := NewWorkerPool(PoolConfig{
		MaxFastWorkers: config.MaxFastWorkers,
		MaxSlowWorkers: config.MaxSlowWorkers,
		MaxQueued:      config.MaxQueued,
		DeepPly:        config.DeepPly,
	})
	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Server{
		config:   config,
		handlers: NewHandlers(e, config, version, pool),
		pool:     pool,
		version:  version,
		log:      log,
	}
}

// Pool returns the worker pool for monitoring.
func (s *Server) Pool() *WorkerPool {
	return s.pool
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code for the access log. It passes
// flushing and hijacking through for the streaming endpoints.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// loggingMiddleware logs every request with its status and duration.
func loggingMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		ev := log.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Handler returns the routed API with its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handlers.Health)
	mux.HandleFunc("POST /api/evaluate", s.handlers.Evaluate)
	mux.HandleFunc("POST /api/cubeful", s.handlers.Cubeful)
	mux.HandleFunc("POST /api/moves", s.handlers.Moves)
	mux.HandleFunc("POST /api/cube", s.handlers.Cube)
	mux.HandleFunc("POST /api/rollout", s.handlers.Rollout)
	mux.HandleFunc("GET /api/rollout/sse", s.handlers.RolloutSSE)
	mux.HandleFunc("GET /api/rollout/ws", s.handlers.RolloutWebSocket)
	mux.HandleFunc("GET /api/recommendation/{decision}", s.handlers.Recommendation)

	// Tutor API routes
	mux.HandleFunc("POST /api/tutor/move", s.handlers.HandleTutorMove)
	mux.HandleFunc("POST /api/tutor/cube", s.handlers.HandleTutorCube)
	mux.HandleFunc("POST /api/tutor/game", s.handlers.HandleAnalyzeGame)

	return corsMiddleware(loggingMiddleware(s.log, mux))
}

// prepare builds the http.Server.
func (s *Server) prepare() {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

func (s *Server) serve() error {
	stats := s.pool.Stats()
	s.log.Info().
		Str("version", s.version).
		Str("addr", s.server.Addr).
		Int("fast_workers", stats.MaxFast).
		Int("slow_workers", stats.MaxSlow).
		Int("max_queued", stats.MaxQueued).
		Int("deep_ply", stats.DeepPly).
		Msg("starting API server")

	return s.server.ListenAndServe()
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.prepare()
	return s.serve()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// Channel to listen for errors from server
	errChan := make(chan error, 1)

	s.prepare()
	go func() {
		if err := s.serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Block until cancelled or error
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.log.Info().Msg("shutting down")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info().Msg("server stopped gracefully")
	return nil
}
