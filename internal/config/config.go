package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the trainbox server.
type Config struct {
	Port int

	// Directories
	LogsDir   string // pipeline log lives at <LogsDir>/pipeline.log
	ModelsDir string // trained model files (.pt + sibling .txt/.html)
	DataDir   string // sqlite run history

	// Script execution
	PythonBin string // interpreter used for .py scripts

	// Pipeline configuration document
	PipelineConfigPath string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      envOrDefaultInt("TRAINBOX_PORT", 8080),
		LogsDir:   envOrDefault("TRAINBOX_LOGS_DIR", "logs"),
		ModelsDir: envOrDefault("TRAINBOX_MODELS_DIR", "models"),
		DataDir:   envOrDefault("TRAINBOX_DATA_DIR", "data"),
		PythonBin: envOrDefault("TRAINBOX_PYTHON_BIN", "python3"),

		PipelineConfigPath: envOrDefault("TRAINBOX_PIPELINE_CONFIG", "config/training-pipeline.json"),
	}
	return cfg, nil
}

func envOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func envOrDefaultInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultValue
}
