// Package http exposes the service request workflow, the chatbot and the
// notification channel over HTTP. Handlers only translate between JSON and
// application calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// CORSOrigin is the allowed browser origin; "*" allows any, empty disables CORS headers
	CORSOrigin string
	// WebSocketPath is where the notification channel is served
	WebSocketPath string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          3000,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		CORSOrigin:    "http://localhost:3001",
		WebSocketPath: "/ws",
	}
}

// Dependencies groups what the handlers call into
type Dependencies struct {
	Engine   workflow.WorkflowEngine
	Chatbot  ChatService
	Exporter port.RequestExporter
	Notifier Notifier
	// Health reports per-component status; optional
	Health HealthFunc
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given dependencies
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if logger == nil {
		logger = nopLogger{}
	}
	if config.WebSocketPath == "" {
		config.WebSocketPath = "/ws"
	}

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(deps, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.config.CORSOrigin != "" {
		s.router.Use(corsMiddleware(s.config.CORSOrigin))
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", kv...)
			return
		}
		s.logger.Info("HTTP request", kv...)
	}
}

func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		allowed := origin
		if origin == "*" {
			if reqOrigin := c.GetHeader("Origin"); reqOrigin != "" {
				allowed = reqOrigin
			}
		}
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Methods", strings.Join([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions,
		}, ", "))
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	if h.notifier != nil {
		s.router.GET(s.config.WebSocketPath, h.notifier.ServeWS)
	}

	api := s.router.Group("/api")
	{
		requests := api.Group("/service-requests")
		requests.POST("", h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/export", h.ExportRequests)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", h.UpdateRequest)
		requests.POST("/:id/register", h.RegisterRequest)
		requests.POST("/:id/classify", h.ClassifyRequest)
		requests.POST("/:id/handle", h.HandleRequest)
		requests.POST("/:id/close", h.CloseRequest)
		requests.POST("/:id/abort", h.AbortRequest)
		requests.GET("/:id/history", h.GetHistory)
		requests.GET("/:id/ai-logs", h.GetAILogs)

		chatbot := api.Group("/chatbot")
		chatbot.POST("/conversation", h.Converse)
		chatbot.GET("/welcome", h.Welcome)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
