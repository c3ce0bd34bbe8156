package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("TRAINBOX_PORT")
	os.Unsetenv("TRAINBOX_LOGS_DIR")
	os.Unsetenv("TRAINBOX_PYTHON_BIN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.LogsDir != "logs" {
		t.Errorf("expected logs dir logs, got %s", cfg.LogsDir)
	}
	if cfg.PythonBin != "python3" {
		t.Errorf("expected python3, got %s", cfg.PythonBin)
	}
	if cfg.PipelineConfigPath != "config/training-pipeline.json" {
		t.Errorf("unexpected pipeline config path %s", cfg.PipelineConfigPath)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("TRAINBOX_PORT", "9999")
	os.Setenv("TRAINBOX_MODELS_DIR", "/srv/models")
	os.Setenv("TRAINBOX_PYTHON_BIN", "/usr/bin/python3.12")
	defer func() {
		os.Unsetenv("TRAINBOX_PORT")
		os.Unsetenv("TRAINBOX_MODELS_DIR")
		os.Unsetenv("TRAINBOX_PYTHON_BIN")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.ModelsDir != "/srv/models" {
		t.Errorf("expected models dir /srv/models, got %s", cfg.ModelsDir)
	}
	if cfg.PythonBin != "/usr/bin/python3.12" {
		t.Errorf("expected /usr/bin/python3.12, got %s", cfg.PythonBin)
	}
}

func TestLoadBadInt(t *testing.T) {
	os.Setenv("TRAINBOX_PORT", "not-a-number")
	defer os.Unsetenv("TRAINBOX_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port on bad value, got %d", cfg.Port)
	}
}
