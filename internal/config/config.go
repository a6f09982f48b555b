// Package config provides configuration loading and validation for the
// trust scoring service. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/trustswarm/prophetrank/internal/scoring"
)

// Config holds all configuration values for the service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis leaderboard cache. Optional; the service runs without it.
	RedisURL string `koanf:"redis_url"`

	// JWT secrets guarding admin operations. PreviousJWTSecret is accepted
	// during rotation and may be empty.
	JWTSecret         string `koanf:"jwt_secret"`
	PreviousJWTSecret string `koanf:"previous_jwt_secret"`

	// Scoring parameters
	Weights         scoring.Weights `koanf:"weights"`
	RecencyDays     int             `koanf:"recency_days"`
	CalibrationBins int             `koanf:"calibration_bins"`

	// Leaderboard
	LeaderboardLimit int      `koanf:"leaderboard_limit"`
	Categories       []string `koanf:"categories"`

	// Background recompute job
	RecomputeIntervalMinutes int `koanf:"recompute_interval_minutes"`
	ComputeWorkers           int `koanf:"compute_workers"`

	// Report exports
	ExportDir string `koanf:"export_dir"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidInterval    = errors.New("RECOMPUTE_INTERVAL_MINUTES must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort                     = 8080
	DefaultEnv                      = "development"
	DefaultRecencyDays              = 30
	DefaultCalibrationBins          = 10
	DefaultLeaderboardLimit         = 50
	DefaultRecomputeIntervalMinutes = 15
	DefaultComputeWorkers           = 4
	DefaultExportDir                = "reports"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error
// is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try TRUST_PORT first, then PORT for platform compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"TRUST_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	recencyDays, err := getEnvIntOrDefault("TRUST_RECENCY_DAYS", k.Int("recency_days"), DefaultRecencyDays)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	calibrationBins, err := getEnvIntOrDefault("TRUST_CALIBRATION_BINS", k.Int("calibration_bins"), DefaultCalibrationBins)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	leaderboardLimit, err := getEnvIntOrDefault("TRUST_LEADERBOARD_LIMIT", k.Int("leaderboard_limit"), DefaultLeaderboardLimit)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	recomputeInterval, err := getEnvIntOrDefault("TRUST_RECOMPUTE_INTERVAL_MINUTES", k.Int("recompute_interval_minutes"), DefaultRecomputeIntervalMinutes)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	computeWorkers, err := getEnvIntOrDefault("TRUST_COMPUTE_WORKERS", k.Int("compute_workers"), DefaultComputeWorkers)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	weights, weightErrs := loadWeights(k)
	loadErrs = append(loadErrs, weightErrs...)

	categories := k.Strings("categories")
	if val := os.Getenv("TRUST_CATEGORIES"); val != "" {
		categories = splitAndTrim(val)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                     port,
		Env:                      getEnvOrDefaultMulti([]string{"TRUST_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:              getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:                 getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:                getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		PreviousJWTSecret:        getEnvOrKoanf("PREVIOUS_JWT_SECRET", k, "previous_jwt_secret"),
		Weights:                  weights,
		RecencyDays:              recencyDays,
		CalibrationBins:          calibrationBins,
		LeaderboardLimit:         leaderboardLimit,
		Categories:               categories,
		RecomputeIntervalMinutes: recomputeInterval,
		ComputeWorkers:           computeWorkers,
		ExportDir:                getEnvOrDefault("TRUST_EXPORT_DIR", k.String("export_dir"), DefaultExportDir),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// loadWeights merges the weight configuration from the file with per-weight
// environment overrides. When nothing is configured the defaults apply.
func loadWeights(k *koanf.Koanf) (scoring.Weights, []error) {
	weights := scoring.DefaultWeights()
	var errs []error

	if k.Exists("weights") {
		if err := k.Unmarshal("weights", &weights); err != nil {
			return weights, []error{fmt.Errorf("failed to parse weights: %w", err)}
		}
	}

	overrides := []struct {
		envKey string
		field  *float64
	}{
		{"TRUST_WEIGHT_ACCURACY", &weights.Accuracy},
		{"TRUST_WEIGHT_CALIBRATION", &weights.Calibration},
		{"TRUST_WEIGHT_CONFIDENCE", &weights.Confidence},
		{"TRUST_WEIGHT_RECENCY", &weights.Recency},
	}
	for _, o := range overrides {
		val := os.Getenv(o.envKey)
		if val == "" {
			continue
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a valid float: %w", o.envKey, err))
			continue
		}
		*o.field = f
	}

	return weights, errs
}

// RecencyWindow returns the recency window as a duration.
func (c *Config) RecencyWindow() time.Duration {
	return time.Duration(c.RecencyDays) * 24 * time.Hour
}

// RecomputeInterval returns the recompute interval as a duration.
func (c *Config) RecomputeInterval() time.Duration {
	return time.Duration(c.RecomputeIntervalMinutes) * time.Minute
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: a zero value from a YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// splitAndTrim splits a comma-separated list and drops empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks that all required configuration values are present and
// that the scoring parameters are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.RecomputeIntervalMinutes <= 0 {
		errs = append(errs, ErrInvalidInterval)
	}
	if c.RecencyDays <= 0 {
		errs = append(errs, fmt.Errorf("recency_days must be positive, got %d", c.RecencyDays))
	}
	if c.CalibrationBins <= 0 {
		errs = append(errs, fmt.Errorf("calibration_bins must be positive, got %d", c.CalibrationBins))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       fmt.Sprintf("%d", c.Port),
		"env":                        c.Env,
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"redis_url":                  maskDatabaseURL(c.RedisURL),
		"jwt_secret":                 maskSecret(c.JWTSecret),
		"previous_jwt_secret":        maskSecret(c.PreviousJWTSecret),
		"weights":                    fmt.Sprintf("%+v", c.Weights),
		"recency_days":               fmt.Sprintf("%d", c.RecencyDays),
		"calibration_bins":           fmt.Sprintf("%d", c.CalibrationBins),
		"leaderboard_limit":          fmt.Sprintf("%d", c.LeaderboardLimit),
		"categories":                 strings.Join(c.Categories, ","),
		"recompute_interval_minutes": fmt.Sprintf("%d", c.RecomputeIntervalMinutes),
		"compute_workers":            fmt.Sprintf("%d", c.ComputeWorkers),
		"export_dir":                 c.ExportDir,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
