package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// defaultPipelineConfig is served when no configuration has been saved yet.
func defaultPipelineConfig() map[string]interface{} {
	return map[string]interface{}{
		"pipeline": map[string]interface{}{
			"stages":    []interface{}{},
			"variables": map[string]interface{}{},
		},
	}
}

// savePipelineConfig persists the pipeline configuration document verbatim.
func (s *Server) savePipelineConfig(c echo.Context) error {
	var cfg map[string]interface{}
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if err := os.MkdirAll(filepath.Dir(s.pipelineConfigPath), 0755); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if err := os.WriteFile(s.pipelineConfigPath, data, 0644); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Pipeline configuration saved successfully",
		"config":  cfg,
	})
}

// loadPipelineConfig returns the saved configuration, or an empty default
// when none exists.
func (s *Server) loadPipelineConfig(c echo.Context) error {
	data, err := os.ReadFile(s.pipelineConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusOK, defaultPipelineConfig())
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	var cfg map[string]interface{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "corrupt pipeline configuration: " + err.Error(),
		})
	}
	return c.JSON(http.StatusOK, cfg)
}
