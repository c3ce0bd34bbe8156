package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trainbox/trainbox/internal/executor"
	"github.com/trainbox/trainbox/internal/history"
	"github.com/trainbox/trainbox/internal/metrics"
)

// Server holds the API server dependencies.
type Server struct {
	echo        *echo.Echo
	registry    *executor.Registry
	pipelineLog *executor.PipelineLog
	history     *history.Store

	pythonBin          string
	modelsDir          string
	pipelineConfigPath string
}

// Opts configures a new API server.
type Opts struct {
	Registry           *executor.Registry
	PipelineLog        *executor.PipelineLog
	History            *history.Store // optional
	PythonBin          string
	ModelsDir          string
	PipelineConfigPath string
}

// NewServer creates a new API server with all routes configured.
func NewServer(opts Opts) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:               e,
		registry:           opts.Registry,
		pipelineLog:        opts.PipelineLog,
		history:            opts.History,
		pythonBin:          opts.PythonBin,
		modelsDir:          opts.ModelsDir,
		pipelineConfigPath: opts.PipelineConfigPath,
	}

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Script execution
	e.GET("/api/script/ws/execute", s.executeScript)
	e.GET("/api/process/active", s.activeProcesses)
	e.GET("/api/runs", s.listRuns)

	// Model files
	e.GET("/api/models", s.listModels)
	e.POST("/api/model/delete", s.deleteModel)
	e.GET("/api/model/report/:name", s.modelReport)

	// Pipeline configuration
	e.POST("/api/pipeline/save", s.savePipelineConfig)
	e.GET("/api/pipeline/load", s.loadPipelineConfig)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Close shuts down the server.
func (s *Server) Close() error {
	return s.echo.Close()
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
