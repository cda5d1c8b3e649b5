// README: Config loader: .env, optional YAML file, then env overrides for every section.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type MapsConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Language  string        `yaml:"language"`
	Region    string        `yaml:"region"`
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
}

type OptimizerConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	AvoidTolls bool          `yaml:"avoid_tolls"`
}

type LocationConfig struct {
	MinMoveMeters float64       `yaml:"min_move_meters"`
	MaxAge        time.Duration `yaml:"max_age"`
}

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
		// RateLimit is requests per second per caller on provider-backed routes.
		RateLimit float64 `yaml:"rate_limit"`
		Burst     int     `yaml:"burst"`
	} `yaml:"http"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	Session struct {
		Namespace string `yaml:"namespace"`
	} `yaml:"session"`
	Maps      MapsConfig      `yaml:"maps"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Location  LocationConfig  `yaml:"location"`
	AI        struct {
		GeminiKey string `yaml:"gemini_key"`
		Model     string `yaml:"model"`
	} `yaml:"ai"`
	Firebase struct {
		ProjectID       string `yaml:"project_id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`
}

func defaults() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.RateLimit = 5
	cfg.HTTP.Burst = 10
	cfg.Session.Namespace = "routetrip"
	cfg.Maps.Language = "en"
	cfg.Maps.RateLimit = 10
	cfg.Maps.Timeout = 15 * time.Second
	cfg.Optimizer.Timeout = 30 * time.Second
	cfg.Location.MinMoveMeters = 10
	cfg.Location.MaxAge = 30 * time.Minute
	return cfg
}

// Load reads .env (if present), then ROUTETRIP_CONFIG_FILE (if set), then environment variables.
// Empty DB DSN, Redis address, Gemini key or Firebase project disable those integrations.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("ROUTETRIP_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.HTTP.Addr = envOrDefault("ROUTETRIP_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.RateLimit = envOrDefaultFloat("ROUTETRIP_HTTP_RATE_LIMIT", cfg.HTTP.RateLimit)
	cfg.HTTP.Burst = envOrDefaultInt("ROUTETRIP_HTTP_BURST", cfg.HTTP.Burst)
	cfg.DB.DSN = envOrDefault("ROUTETRIP_DB_DSN", cfg.DB.DSN)
	cfg.Redis.Addr = envOrDefault("ROUTETRIP_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Session.Namespace = envOrDefault("ROUTETRIP_SESSION_NAMESPACE", cfg.Session.Namespace)

	cfg.Maps.APIKey = envOrDefault("GOOGLE_MAPS_API_KEY", cfg.Maps.APIKey)
	cfg.Maps.BaseURL = envOrDefault("ROUTETRIP_MAPS_BASE_URL", cfg.Maps.BaseURL)
	cfg.Maps.Language = envOrDefault("ROUTETRIP_MAPS_LANGUAGE", cfg.Maps.Language)
	cfg.Maps.Region = envOrDefault("ROUTETRIP_MAPS_REGION", cfg.Maps.Region)
	cfg.Maps.RateLimit = envOrDefaultInt("ROUTETRIP_MAPS_RATE_LIMIT", cfg.Maps.RateLimit)
	cfg.Maps.Timeout = envOrDefaultDuration("ROUTETRIP_MAPS_TIMEOUT", cfg.Maps.Timeout)

	cfg.Optimizer.Timeout = envOrDefaultDuration("ROUTETRIP_OPTIMIZE_TIMEOUT", cfg.Optimizer.Timeout)
	cfg.Optimizer.AvoidTolls = envOrDefaultBool("ROUTETRIP_AVOID_TOLLS", cfg.Optimizer.AvoidTolls)

	cfg.Location.MinMoveMeters = envOrDefaultFloat("ROUTETRIP_LOCATION_MIN_MOVE_METERS", cfg.Location.MinMoveMeters)
	cfg.Location.MaxAge = envOrDefaultDuration("ROUTETRIP_LOCATION_MAX_AGE", cfg.Location.MaxAge)

	cfg.AI.GeminiKey = envOrDefault("GEMINI_API_KEY", cfg.AI.GeminiKey)
	cfg.AI.Model = envOrDefault("ROUTETRIP_GEMINI_MODEL", cfg.AI.Model)

	cfg.Firebase.ProjectID = envOrDefault("ROUTETRIP_FIREBASE_PROJECT_ID", cfg.Firebase.ProjectID)
	cfg.Firebase.CredentialsFile = envOrDefault("ROUTETRIP_FIREBASE_CREDENTIALS", cfg.Firebase.CredentialsFile)

	if cfg.Optimizer.Timeout <= 0 {
		return Config{}, fmt.Errorf("optimizer timeout must be positive, got %s", cfg.Optimizer.Timeout)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
