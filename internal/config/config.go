package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. INTEGRALQ_SERVER_PORT.
const EnvPrefix = "INTEGRALQ"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	LLM       LLMConfig       `yaml:"llm" envconfig:"LLM"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// AnalysisConfig tunes the ingestion pipeline and session handling.
type AnalysisConfig struct {
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	MaxFiles        int           `yaml:"max_files" envconfig:"MAX_FILES" validate:"min=1"`
	MaxConcurrent   int64         `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT" validate:"min=1"`
	BarTopN         int           `yaml:"bar_top_n" envconfig:"BAR_TOP_N" validate:"min=1"`
	PieTopN         int           `yaml:"pie_top_n" envconfig:"PIE_TOP_N" validate:"min=1"`
	ForecastHorizon int           `yaml:"forecast_horizon" envconfig:"FORECAST_HORIZON" validate:"min=1,max=36"`
	SessionTTL      time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" validate:"gt=0"`
	PreviewRows     int           `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" validate:"gte=0"`
	// InferenceSampleSize and InferenceThreshold drive column type inference:
	// a column is numeric or date when at least the threshold share of its
	// first sampled non-null values qualify.
	InferenceSampleSize int     `yaml:"inference_sample_size" envconfig:"INFERENCE_SAMPLE_SIZE" validate:"min=1"`
	InferenceThreshold  float64 `yaml:"inference_threshold" envconfig:"INFERENCE_THRESHOLD" validate:"gt=0,lte=1"`
	SOPFile             string  `yaml:"sop_file" envconfig:"SOP_FILE"`
	EnablePreferences   bool    `yaml:"enable_preferences" envconfig:"ENABLE_PREFERENCES"`
}

// LLMConfig selects the narrative provider. Provider "none" always uses the
// template summary.
type LLMConfig struct {
	Provider    string        `yaml:"provider" envconfig:"PROVIDER" validate:"oneof=none ollama openai"`
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	Model       string        `yaml:"model" envconfig:"MODEL"`
	APIKey      string        `yaml:"api_key" envconfig:"API_KEY"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	Temperature float64       `yaml:"temperature" envconfig:"TEMPERATURE" validate:"gte=0,lte=2"`
	MaxRetries  int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"gte=0,lte=5"`
}

// DatabaseConfig configures the audit and preference store.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Type     string `yaml:"type" envconfig:"TYPE" validate:"oneof=sqlite postgres"`
	Path     string `yaml:"path" envconfig:"PATH"`
	Host     string `yaml:"host" envconfig:"HOST"`
	Port     int    `yaml:"port" envconfig:"PORT"`
	User     string `yaml:"user" envconfig:"USER"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DBName   string `yaml:"dbname" envconfig:"DBNAME"`
	SSLMode  string `yaml:"sslmode" envconfig:"SSLMODE"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=silent error warn info"`
}

// TelemetryConfig controls tracing and metrics.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment variables. A .env file in the working directory is
// loaded into the environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML document onto cfg. Keys absent from the
// file keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func findConfigFile() string {
	locations := []string{
		"integralq.yaml",
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/integralq.log",
		},
		Analysis: AnalysisConfig{
			MaxUploadBytes:      50 << 20,
			MaxFiles:            10,
			MaxConcurrent:       4,
			BarTopN:             7,
			PieTopN:             5,
			ForecastHorizon:     6,
			SessionTTL:          2 * time.Hour,
			PreviewRows:         20,
			InferenceSampleSize: 100,
			InferenceThreshold:  0.8,
			EnablePreferences:   true,
		},
		LLM: LLMConfig{
			Provider:    "none",
			Timeout:     20 * time.Second,
			Temperature: 0.3,
			MaxRetries:  1,
		},
		Database: DatabaseConfig{
			Enabled:  true,
			Type:     "sqlite",
			Path:     "data/integralq.db",
			Port:     5432,
			SSLMode:  "disable",
			LogLevel: "warn",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "integralq",
			MetricsEnabled: true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
