package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mcclellann/lomap/pkg/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr    = ":8080"
	DefaultDataDir = "data"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig holds the configuration of the API server.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LogConfig     `yaml:"logging"`
}

// Load reads the YAML file at path, if it exists, then applies environment
// overrides and defaults. A .env file in the working directory is loaded
// first if there is one.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Server.Addr = GetEnvOrDefaultAsString("LOMAP_ADDR", cfg.Server.Addr)
	cfg.Storage.DataDir = GetEnvOrDefaultAsString("LOMAP_DATA_DIR", cfg.Storage.DataDir)
	cfg.Logging.Level = GetEnvOrDefaultAsString("LOMAP_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = GetEnvOrDefaultAsString("LOMAP_LOG_FORMAT", cfg.Logging.Format)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the values a logger and store will be built from.
func (c *AppConfig) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if !strings.Contains(c.Server.Addr, ":") {
		return fmt.Errorf("server.addr must be host:port, got %q", c.Server.Addr)
	}
	return nil
}

// GetEnvOrDefaultAsString returns the value of the env variable, or
// defaultVal when it is unset or blank.
func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return defaultVal
}
