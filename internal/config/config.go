// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the bridge configuration from YAML, .env files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// EnvPrefix prefixes every automatic environment override
	EnvPrefix = "AGENTBRIDGE"

	maxUpstreamTimeout = 60 * time.Second
	maxSignedURLExpiry = 7 * 24 * time.Hour
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// EnvFile is the .env file that was loaded, if any
	EnvFile string `mapstructure:"-"`

	// Environment names the deployment; OverlayFile is the config.<env>.yaml
	// merged over the base file, if one was found
	Environment string `mapstructure:"-"`
	OverlayFile string `mapstructure:"-"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DiscoveryConfig identifies the Discovery Engine app to query
type DiscoveryConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	APIVersion    string        `mapstructure:"api_version"`
	ProjectNumber string        `mapstructure:"project_number"`
	Location      string        `mapstructure:"location"`
	Collection    string        `mapstructure:"collection"`
	EngineID      string        `mapstructure:"engine_id"`
	LanguageCode  string        `mapstructure:"language_code"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains the signing key for document links
type StorageConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	SignedURLExpiry time.Duration `mapstructure:"signed_url_expiry"`
}

// ChatConfig contains Google Chat request verification settings
type ChatConfig struct {
	Audience string `mapstructure:"audience"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading. Environment selects
// the config.<env>.yaml overlay read next to the base config file.
type LoadOptions struct {
	ConfigPath       string
	LoadEnvFile      bool
	Environment      string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over config file values
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		LoadEnvFile:      true,
		Environment:      getEnvironment(),
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envFile := ""
	if opts.LoadEnvFile {
		envFile = loadEnvFile()
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set configuration file path
	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overlay, err := mergeEnvironmentConfig(v, opts.Environment)
	if err != nil {
		return nil, err
	}

	// Set explicit environment variable mappings
	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.EnvFile = envFile
	config.Environment = opts.Environment
	config.OverlayFile = overlay

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Discovery Engine defaults
	v.SetDefault("discovery.endpoint", "https://discoveryengine.googleapis.com")
	v.SetDefault("discovery.api_version", "v1alpha")
	v.SetDefault("discovery.location", "global")
	v.SetDefault("discovery.collection", "default_collection")
	v.SetDefault("discovery.language_code", "ko")
	v.SetDefault("discovery.timeout", 20*time.Second)

	// Storage defaults
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.signed_url_expiry", time.Hour)

	// Chat defaults
	v.SetDefault("chat.audience", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal
	v.SetDefault("discovery.project_number", "")
	v.SetDefault("discovery.engine_id", "")
}

// setConfigFile sets the configuration file path with fallback logic. With no
// explicit path and no file in the default locations, configuration comes
// from defaults and the environment only.
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	// Use provided config path
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// mergeEnvironmentConfig merges config.<env>.yaml from the directory of the
// base config file over the values read so far. A missing overlay is not an
// error.
func mergeEnvironmentConfig(v *viper.Viper, environment string) (string, error) {
	base := v.ConfigFileUsed()
	if environment == "" || base == "" {
		return "", nil
	}

	ext := filepath.Ext(base)
	overlay := filepath.Join(filepath.Dir(base), "config."+environment+ext)
	if overlay == base {
		return "", nil
	}
	if _, err := os.Stat(overlay); err != nil {
		return "", nil
	}

	v.SetConfigFile(overlay)
	if err := v.MergeInConfig(); err != nil {
		return "", fmt.Errorf("failed to merge %s config: %w", environment, err)
	}
	return overlay, nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"PORT":                        "server.port",
		"GOOGLE_CLOUD_PROJECT_NUMBER": "discovery.project_number",
		"DISCOVERY_ENGINE_ID":         "discovery.engine_id",
		"DISCOVERY_ENGINE_LOCATION":   "discovery.location",
		"DISCOVERY_ENGINE_ENDPOINT":   "discovery.endpoint",
		"GCS_KEY_FILE":                "storage.credentials_file",
		"CHAT_AUDIENCE":               "chat.audience",
		"LOG_LEVEL":                   "logging.level",
		"LOG_FORMAT":                  "logging.format",
		"LOG_OUTPUT":                  "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// loadEnvFile loads the first .env found in the working directory or one of
// its parents. Existing environment variables are never overridden.
func loadEnvFile() string {
	possiblePaths := []string{".env", "../.env", "../../.env"}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}

	return ""
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	// Validate required fields
	if config.Discovery.ProjectNumber == "" {
		errors = append(errors, ValidationError{
			Field:   "discovery.project_number",
			Message: "project number is required. Set via config file or GOOGLE_CLOUD_PROJECT_NUMBER environment variable",
		})
	}

	if config.Discovery.EngineID == "" {
		errors = append(errors, ValidationError{
			Field:   "discovery.engine_id",
			Message: "engine id is required. Set via config file or DISCOVERY_ENGINE_ID environment variable",
		})
	}

	if config.Discovery.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "discovery.endpoint",
			Message: "Discovery Engine endpoint is required",
		})
	}

	if config.Discovery.LanguageCode == "" {
		errors = append(errors, ValidationError{
			Field:   "discovery.language_code",
			Message: "language code is required",
		})
	}

	// Validate numeric values
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if config.Discovery.Timeout <= 0 || config.Discovery.Timeout > maxUpstreamTimeout {
		errors = append(errors, ValidationError{
			Field:   "discovery.timeout",
			Message: fmt.Sprintf("timeout must be greater than 0 and at most %s", maxUpstreamTimeout),
		})
	}

	if config.Storage.SignedURLExpiry <= 0 || config.Storage.SignedURLExpiry > maxSignedURLExpiry {
		errors = append(errors, ValidationError{
			Field:   "storage.signed_url_expiry",
			Message: fmt.Sprintf("signed_url_expiry must be greater than 0 and at most %s", maxSignedURLExpiry),
		})
	}

	// Validate enum values
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	// Validate file paths
	if config.Storage.CredentialsFile != "" {
		if err := validateFileExists(config.Storage.CredentialsFile); err != nil {
			errors = append(errors, ValidationError{
				Field:   "storage.credentials_file",
				Message: fmt.Sprintf("credentials file is not readable: %v", err),
			})
		}
	}

	// Return all validation errors
	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.Storage.CredentialsFile != "" {
		masked.Storage.CredentialsFile = maskValue(masked.Storage.CredentialsFile)
	}
	if masked.Chat.Audience != "" {
		masked.Chat.Audience = maskValue(masked.Chat.Audience)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateFileExists checks that path is an existing regular file
func validateFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory: %s", path)
	}

	return nil
}

// getEnvironment returns the current environment (development, production, etc.)
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "development"
}

// WatchConfig reloads the configuration whenever the config file changes and
// passes every valid result to callback.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("no config file to watch: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       v.ConfigFileUsed(),
			Environment:      getEnvironment(),
			ValidateRequired: true,
		})
		if err != nil {
			logger.Warn("Failed to reload config, keeping previous settings", zap.Error(err))
			return
		}

		callback(config)
	})
	v.WatchConfig()

	return nil
}
