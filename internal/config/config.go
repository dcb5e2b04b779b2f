package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "TENDERS"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Assistant AssistantConfig `yaml:"assistant" envconfig:"ASSISTANT"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// DataConfig describes where the tender dataset comes from and how rows are classified.
type DataConfig struct {
	// Source is a file path, an http(s) URL or a sheets://<spreadsheet-id>/<range> reference.
	Source       string        `yaml:"source" envconfig:"SOURCE" default:"data/tenders.csv" validate:"required"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxBytes     int64         `yaml:"max_bytes" envconfig:"MAX_BYTES" default:"67108864" validate:"gt=0"`
	LoadOnStart  bool          `yaml:"load_on_start" envconfig:"LOAD_ON_START" default:"true"`

	// Winner names that mean "not awarded". Empty lists fall back to the built-in markers.
	NoBidsMarkers      []string `yaml:"no_bids_markers" envconfig:"NO_BIDS_MARKERS"`
	InvalidBidsMarkers []string `yaml:"invalid_bids_markers" envconfig:"INVALID_BIDS_MARKERS"`
	PlaceholderMarkers []string `yaml:"placeholder_markers" envconfig:"PLACEHOLDER_MARKERS"`

	Sheets SheetsConfig `yaml:"sheets" envconfig:"SHEETS"`
}

// SheetsConfig holds credentials for sheets:// sources.
type SheetsConfig struct {
	APIKey          string `yaml:"api_key" envconfig:"API_KEY"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// TelemetryConfig controls OpenTelemetry exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
}

// AssistantConfig configures the canned-answer assistant sessions.
type AssistantConfig struct {
	SessionTTL      time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"30m" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL" default:"10m" validate:"gt=0"`
	MaxMessageLen   int           `yaml:"max_message_len" envconfig:"MAX_MESSAGE_LEN" default:"500" validate:"gt=0"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load loads configuration from a .env file, environment variables and an
// optional YAML config file. Environment values win over file values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs fills values from the file that were not set explicitly in the
// environment. A value counts as explicit when its env variable is present.
func mergeConfigs(fileConfig, envConfig Config) Config {
	pick := func(name string, apply func()) {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + name); !ok {
			apply()
		}
	}

	if fileConfig.Server.Port != 0 {
		pick("SERVER_PORT", func() { envConfig.Server.Port = fileConfig.Server.Port })
	}
	if fileConfig.Server.ReadTimeout != 0 {
		pick("SERVER_READ_TIMEOUT", func() { envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout })
	}
	if fileConfig.Server.WriteTimeout != 0 {
		pick("SERVER_WRITE_TIMEOUT", func() { envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout })
	}
	if len(fileConfig.Security.AllowedOrigins) > 0 {
		pick("SECURITY_ALLOWED_ORIGINS", func() { envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins })
	}
	if fileConfig.Logging.Level != "" {
		pick("LOGGING_LEVEL", func() { envConfig.Logging.Level = fileConfig.Logging.Level })
	}
	if fileConfig.Logging.Output != "" {
		pick("LOGGING_OUTPUT", func() { envConfig.Logging.Output = fileConfig.Logging.Output })
	}
	if fileConfig.Data.Source != "" {
		pick("DATA_SOURCE", func() { envConfig.Data.Source = fileConfig.Data.Source })
	}
	if len(fileConfig.Data.NoBidsMarkers) > 0 {
		pick("DATA_NO_BIDS_MARKERS", func() { envConfig.Data.NoBidsMarkers = fileConfig.Data.NoBidsMarkers })
	}
	if len(fileConfig.Data.InvalidBidsMarkers) > 0 {
		pick("DATA_INVALID_BIDS_MARKERS", func() { envConfig.Data.InvalidBidsMarkers = fileConfig.Data.InvalidBidsMarkers })
	}
	if len(fileConfig.Data.PlaceholderMarkers) > 0 {
		pick("DATA_PLACEHOLDER_MARKERS", func() { envConfig.Data.PlaceholderMarkers = fileConfig.Data.PlaceholderMarkers })
	}
	if fileConfig.Data.Sheets.APIKey != "" {
		pick("DATA_SHEETS_API_KEY", func() { envConfig.Data.Sheets.APIKey = fileConfig.Data.Sheets.APIKey })
	}
	if fileConfig.Data.Sheets.CredentialsFile != "" {
		pick("DATA_SHEETS_CREDENTIALS_FILE", func() { envConfig.Data.Sheets.CredentialsFile = fileConfig.Data.Sheets.CredentialsFile })
	}
	if fileConfig.Telemetry.TraceExporter != "" {
		pick("TELEMETRY_TRACE_EXPORTER", func() { envConfig.Telemetry.TraceExporter = fileConfig.Telemetry.TraceExporter })
	}

	return envConfig
}

// Validate checks struct tags and normalizes a few logging values.
func (c *Config) Validate() error {
	// Logs are always JSON.
	c.Logging.Format = "json"
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
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
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Data: DataConfig{
			Source:       "data/tenders.csv",
			FetchTimeout: 30 * time.Second,
			MaxBytes:     64 << 20,
			LoadOnStart:  true,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		},
		Assistant: AssistantConfig{
			SessionTTL:      30 * time.Minute,
			CleanupInterval: 10 * time.Minute,
			MaxMessageLen:   500,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
