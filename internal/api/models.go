package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trainbox/trainbox/pkg/types"
)

// listModels returns every trained model file with the metrics parsed from
// its sibling info file, newest first.
func (s *Server) listModels(c echo.Context) error {
	entries, err := os.ReadDir(s.modelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusOK, []types.ModelInfo{})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	models := []types.ModelInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".pt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		m := parseModelMetrics(s.modelsDir, name)
		m.Path = name
		m.LastModified = info.ModTime().Unix()
		m.HasReport = fileExists(filepath.Join(s.modelsDir, baseName(name)+".html"))
		models = append(models, m)
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].LastModified > models[j].LastModified
	})
	return c.JSON(http.StatusOK, models)
}

// deleteModel removes a model file together with its sibling report and info
// files.
func (s *Server) deleteModel(c echo.Context) error {
	var req types.DeleteModelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	// Model names are bare filenames; reject anything that escapes the dir.
	name := filepath.Base(req.Name)
	if name != req.Name || name == "." || name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid model name"})
	}

	modelPath := filepath.Join(s.modelsDir, name)
	if !fileExists(modelPath) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "model " + name + " not found",
		})
	}

	if err := os.Remove(modelPath); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	base := baseName(name)
	_ = os.Remove(filepath.Join(s.modelsDir, base+".html"))
	_ = os.Remove(filepath.Join(s.modelsDir, base+".txt"))

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Model " + name + " and related files deleted successfully",
	})
}

// modelReport serves the HTML training report for a model.
func (s *Server) modelReport(c echo.Context) error {
	name := filepath.Base(c.Param("name"))
	htmlPath := filepath.Join(s.modelsDir, baseName(name)+".html")
	if !fileExists(htmlPath) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "HTML report not found for this model",
		})
	}
	return c.File(htmlPath)
}

// parseModelMetrics reads precision/recall/mAP values from the model's
// sibling .txt info file. Missing files or lines yield zero metrics.
func parseModelMetrics(dir, modelName string) types.ModelInfo {
	var m types.ModelInfo

	data, err := os.ReadFile(filepath.Join(dir, baseName(modelName)+".txt"))
	if err != nil {
		return m
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "Precision (P):"):
			m.Precision = parseMetricValue(line)
		case strings.Contains(line, "Recall (R):"):
			m.Recall = parseMetricValue(line)
		case strings.Contains(line, "mAP50-95:"):
			m.MAP5095 = parseMetricValue(line)
		case strings.Contains(line, "mAP50:"):
			m.MAP50 = parseMetricValue(line)
		}
	}
	return m
}

// parseMetricValue extracts the number after the last colon of a metric line.
func parseMetricValue(line string) float64 {
	i := strings.LastIndex(line, ":")
	if i < 0 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line[i+1:]), 64)
	if err != nil {
		return 0
	}
	return v
}

func baseName(modelName string) string {
	return strings.TrimSuffix(modelName, ".pt")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
