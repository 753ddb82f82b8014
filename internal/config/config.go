package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
	Pipeline   PipelineConfig   `yaml:"pipeline" envconfig:"PIPELINE"`
	MarketData MarketDataConfig `yaml:"market_data" envconfig:"MARKET_DATA"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gt=0"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT" validate:"gt=0"`
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
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gt=0"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gt=0"`
}

// PipelineConfig contains unification pipeline configuration
type PipelineConfig struct {
	DefaultVariant    string        `yaml:"default_variant" envconfig:"DEFAULT_VARIANT" validate:"omitempty,oneof=base dashboard saindo_hoje"`
	CSVDelimiter      string        `yaml:"csv_delimiter" envconfig:"CSV_DELIMITER" validate:"len=1"`
	MaxUploadSize     int64         `yaml:"max_upload_size" envconfig:"MAX_UPLOAD_SIZE" validate:"gt=0"`
	ReportTTL         time.Duration `yaml:"report_ttl" envconfig:"REPORT_TTL" validate:"gt=0"`
	MaxStoredRuns     int           `yaml:"max_stored_runs" envconfig:"MAX_STORED_RUNS" validate:"gt=0"`
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs" envconfig:"MAX_CONCURRENT_RUNS" validate:"gt=0"`
}

// DelimiterRune returns the configured CSV delimiter as a rune, falling
// back to the default when the value is empty.
func (p PipelineConfig) DelimiterRune() rune {
	if p.CSVDelimiter == "" {
		return []rune(DefaultCSVDelimiter)[0]
	}
	return []rune(p.CSVDelimiter)[0]
}

// MarketDataConfig contains quote lookup configuration
type MarketDataConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint     string        `yaml:"endpoint" envconfig:"ENDPOINT" validate:"omitempty,url"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" validate:"gt=0"`
	RPS          float64       `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst        int           `yaml:"burst" envconfig:"BURST" validate:"gt=0"`
	LocalSuffix  string        `yaml:"local_suffix" envconfig:"LOCAL_SUFFIX"`
	MaxBatchSize int           `yaml:"max_batch_size" envconfig:"MAX_BATCH_SIZE" validate:"gt=0"`
}

// Load loads configuration in layers: defaults, then the YAML config file if
// one exists, then OPSUNIFY_* environment variables, validated at the end.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("OPSUNIFY", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg. Keys absent
// from the file keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths pins the executable directory so every relative path resolves
// against it rather than the working directory.
func (c *Config) resolvePaths() error {
	if c.Paths.ExecutableDir != "" {
		return nil
	}
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}
	c.Paths.ExecutableDir = paths.ExecutableDir
	return nil
}

// Validate checks the configuration against its struct tags and normalizes
// the logging fields the rest of the system assumes.
func (c *Config) Validate() error {
	// Structured JSON logs are assumed by the log pipeline; silently coerce
	// rather than fail on the one field with a single accepted value.
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "stdout" && c.Logging.Output != "file" && c.Logging.Output != "both" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if err := validator.New().Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid %s: failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}

// ResolvedPaths returns the Paths tree rooted at the configured executable
// directory.
func (c *Config) ResolvedPaths() *Paths {
	return NewPaths(c.Paths.ExecutableDir)
}

// EnsureDirectories creates every directory the configuration points at.
func (c *Config) EnsureDirectories() error {
	return c.ResolvedPaths().EnsureDirectories()
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv("OPSUNIFY_CONFIG"); path != "" {
		return path
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
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: DefaultRunTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			Output:      "both",
			FilePath:    "logs/app.log",
			Development: false,
		},
		Paths: PathsConfig{
			DataDir: DefaultDataDir,
			LogsDir: DefaultLogsDir,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
		Pipeline: PipelineConfig{
			DefaultVariant:    "",
			CSVDelimiter:      DefaultCSVDelimiter,
			MaxUploadSize:     DefaultMaxUploadSize,
			ReportTTL:         DefaultReportTTL,
			MaxStoredRuns:     DefaultMaxStoredRuns,
			MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		},
		MarketData: MarketDataConfig{
			Enabled:      false,
			Endpoint:     DefaultQuoteEndpoint,
			Timeout:      DefaultHTTPTimeout,
			CacheTTL:     QuoteCacheDuration,
			RPS:          DefaultQuoteRPS,
			Burst:        DefaultQuoteBurst,
			LocalSuffix:  DefaultLocalSuffix,
			MaxBatchSize: DefaultQuoteBatchSize,
		},
	}
}
