package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/runkit/callbacks"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/runnable"
	"github.com/kbukum/runkit/version"
)

// Server serves registered runnables over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	log        *logger.Logger

	metrics  *observability.Metrics
	handlers []callbacks.Handler
	runCfg   func() runnable.Config
	service  string
	version  string
	checkers []observability.HealthChecker

	mu     sync.RWMutex
	routes map[string]runnable.Runnable
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCallbacks attaches handlers to every run started by the server.
func WithCallbacks(handlers ...callbacks.Handler) Option {
	return func(s *Server) { s.handlers = append(s.handlers, handlers...) }
}

// WithBaseConfig sets the config every request config is merged onto.
func WithBaseConfig(fn func() runnable.Config) Option {
	return func(s *Server) { s.runCfg = fn }
}

// WithHealth names the service in /health and adds component checkers. An
// empty version keeps the build version.
func WithHealth(service, ver string, checkers ...observability.HealthChecker) Option {
	return func(s *Server) {
		s.service = service
		if ver != "" {
			s.version = ver
		}
		s.checkers = append(s.checkers, checkers...)
	}
}

// New creates a Server with the standard middleware and /health already
// installed. Register runnables before calling Start.
func New(cfg Config, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		engine:  gin.New(),
		config:  cfg,
		log:     log.WithComponent("serve"),
		runCfg:  func() runnable.Config { return runnable.Config{} },
		service: "runkit",
		version: version.Get().Version,
		routes:  make(map[string]runnable.Runnable),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(
		recovery(s.log),
		requestID(),
		requestTelemetry(s.metrics, s.service),
		bodySizeLimit(cfg.MaxBodySize),
		requestLogger(s.log),
	)
	s.engine.GET("/health", s.health)
	s.engine.GET("/runnables", s.listRunnables)
	s.engine.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, version.Get()) })

	// h2c keeps long-lived streams multiplexed without TLS.
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          time.Duration(cfg.IdleTimeout) * time.Second,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h2c.NewHandler(s.engine, h2s),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s
}

// Register exposes r under path. It panics if path is already taken, like
// route registration in gin.
func (s *Server) Register(path string, r runnable.Runnable) {
	path = "/" + strings.Trim(path, "/")
	s.mu.Lock()
	if _, ok := s.routes[path]; ok {
		s.mu.Unlock()
		panic(fmt.Sprintf("serve: runnable already registered at %s", path))
	}
	s.routes[path] = r
	s.mu.Unlock()

	group := s.engine.Group(path)
	group.POST("/invoke", s.invoke(r))
	group.POST("/batch", s.batch(r))
	group.POST("/stream", s.stream(r))
	group.POST("/stream_events", s.streamEvents(r))

	s.log.Debug("Runnable registered", map[string]interface{}{
		"path":     path,
		"runnable": r.Name(),
	})
}

// Handler returns the root handler, including h2c support.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GinEngine returns the underlying Gin engine for extra routes.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("serve: failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": listener.Addr().String(),
	})
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline. Open
// streams see their request context cancelled.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("serve: shutdown: %w", err)
	}

	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) health(c *gin.Context) {
	h := observability.NewServiceHealth(s.service, s.version).Check(c.Request.Context(), s.checkers...)
	if !h.Healthy() {
		c.JSON(http.StatusServiceUnavailable, h)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) listRunnables(c *gin.Context) {
	s.mu.RLock()
	out := make([]gin.H, 0, len(s.routes))
	for path, r := range s.routes {
		out = append(out, gin.H{"path": path, "name": r.Name(), "kind": runnable.KindOf(r)})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i]["path"].(string) < out[j]["path"].(string) })
	c.JSON(http.StatusOK, gin.H{"runnables": out})
}
