// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/pkg/bitint"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. A .env file in the working directory is loaded into the environment
// first; ENV_* variables then override the loaded values and the result is validated.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "eqviewer.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		if path == "" {
			return nil, fmt.Errorf("invalid default configuration: %w", err)
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks struct constraints and the PortAudio buffer size.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if !bitint.ValidBufferSize(cfg.Playback.FramesPerBuffer, MaxBufferFrames) {
		return fmt.Errorf("playback.frames_per_buffer must be a power of two <= %d, got %d",
			MaxBufferFrames, cfg.Playback.FramesPerBuffer)
	}
	return nil
}

// LogLevel resolves the effective log level; debug mode wins over log.level.
func (cfg *Config) LogLevel() applog.LogLevel {
	if cfg.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(cfg.Log.Level)
	return level
}

// applyEnvOverrides reads ENV_* variables. Values that fail to parse are
// ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("configuration: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.Log.Level = val
		applog.Infof("configuration: Overriding log.level from env: %s", val)
	}

	// ENV_SERVICE_{...}
	// These are specific to the remote backends.

	// ENV_SERVICE_BASE_URL
	if val, ok := os.LookupEnv("ENV_SERVICE_BASE_URL"); ok {
		cfg.Service.BaseURL = val
		applog.Infof("configuration: Overriding service.base_url from env: %s", val)
	}
	// ENV_AI_BASE_URL
	if val, ok := os.LookupEnv("ENV_AI_BASE_URL"); ok {
		cfg.Service.AIBaseURL = val
		applog.Infof("configuration: Overriding service.ai_base_url from env: %s", val)
	}
	// ENV_SERVICE_TIMEOUT
	if val, ok := os.LookupEnv("ENV_SERVICE_TIMEOUT"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Service.Timeout = dur
			applog.Infof("configuration: Overriding service.timeout from env: %s", dur)
		} else {
			applog.Warnf("configuration: Ignoring ENV_SERVICE_TIMEOUT=%q: %v", val, err)
		}
	}

	// ENV_LISTEN_ADDR
	if val, ok := os.LookupEnv("ENV_LISTEN_ADDR"); ok {
		cfg.Server.ListenAddr = val
		applog.Infof("configuration: Overriding server.listen_addr from env: %s", val)
	}
}
