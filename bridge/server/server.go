// Package server provides the HTTP server for the zkLogin gateway.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/suilotto/zkgateway/auth"
	"github.com/suilotto/zkgateway/bridge/handlers"
)

const (
	DefaultHTTPAddr = ":8080"
)

// Config holds server configuration.
type Config struct {
	HTTPAddr  string
	JWTSecret []byte
}

// Server represents the HTTP server.
type Server struct {
	config   *Config
	echo     *echo.Echo
	upgrader *websocket.Upgrader
	flow     *auth.Flow
	executor handlers.TransactionExecutor
}

// NewServer creates a new server instance.
func NewServer(config *Config, flow *auth.Flow, executor handlers.TransactionExecutor) *Server {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins in development
		},
	}

	return &Server{
		config:   config,
		echo:     echo.New(),
		upgrader: upgrader,
		flow:     flow,
		executor: executor,
	}
}

// Echo returns the underlying Echo instance for testing.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(client *asynq.Client) error {
	s.setupMiddleware()
	s.SetupRoutes(client)

	addr := s.config.HTTPAddr
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	return s.echo.Start(addr)
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
}

// SetupRoutes configures all routes. Exported for handler tests that drive
// the router without binding a listener.
func (s *Server) SetupRoutes(client *asynq.Client) {
	healthChecker := handlers.NewHealthChecker(client)

	// Public endpoints (no authentication required)
	s.echo.GET("/health", healthChecker.HealthHandler)   // Liveness probe
	s.echo.GET("/ready", healthChecker.ReadinessHandler) // Readiness probe

	s.echo.POST("/auth/nonce", handlers.NonceHandler(s.flow))
	s.echo.GET("/auth/callback", handlers.CallbackHandler(s.flow, s.config.JWTSecret))
	s.echo.POST("/auth/callback", handlers.CallbackHandler(s.flow, s.config.JWTSecret))
	s.echo.GET("/auth/session/:session_id", handlers.SessionHandler(s.flow))
	s.echo.DELETE("/auth/session/:session_id", handlers.LogoutHandler(s.flow))

	// WebSocket endpoint for real-time login state updates
	s.echo.GET("/auth/events/:session_id", handlers.EventsHandler(s.upgrader, s.flow))

	// JWT middleware configuration
	jwtConfig := echojwt.Config{
		SigningKey:    s.config.JWTSecret,
		SigningMethod: "HS256",
	}

	// Protected transaction endpoints group with JWT middleware
	tx := s.echo.Group("/tx")
	tx.Use(echojwt.WithConfig(jwtConfig))
	tx.POST("/submit", handlers.SubmitHandler(s.flow, s.executor))
}
