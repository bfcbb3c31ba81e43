package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/enclaro/backend/internal/analysis"
	"github.com/enclaro/backend/internal/history"
)

// AnalysisService is the orchestrator surface the routing layer depends on.
type AnalysisService interface {
	Analyze(ctx context.Context, req analysis.Request) (string, error)
	History(ctx context.Context, email string) ([]history.Record, error)
}

// Server represents the API server
type Server struct {
	echo    *echo.Echo
	port    int
	service AnalysisService
}

// NewServer creates a new API server
func NewServer(port int, service AnalysisService) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:    e,
		port:    port,
		service: service,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Liveness endpoints used by the hosting platform
	s.echo.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":     "alive",
			"env_render": os.Getenv("RENDER"),
			"port":       os.Getenv("PORT"),
		})
	})
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	api := s.echo.Group("/api")
	api.POST("/analyze", s.analyzeText)
	api.GET("/history", s.getHistory)
}

// Start begins the API server and blocks until an interrupt arrives.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
