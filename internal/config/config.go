package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	License   LicenseConfig   `yaml:"license" envconfig:"LICENSE"`
	Oracle    OracleConfig    `yaml:"oracle" envconfig:"ORACLE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration   `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig throttles the licensing endpoints across all callers
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// LicenseConfig controls challenge issuance.
// A RequestTTL of zero keeps unanswered challenges until they are consumed.
type LicenseConfig struct {
	Preamble      string        `yaml:"preamble" envconfig:"PREAMBLE"`
	RequestTTL    time.Duration `yaml:"request_ttl" envconfig:"REQUEST_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL"`
}

// OracleConfig selects and configures the ownership oracle
type OracleConfig struct {
	Kind    string        `yaml:"kind" envconfig:"KIND"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	Mock    MockConfig    `yaml:"mock" envconfig:"MOCK"`
	OpenSea OpenSeaConfig `yaml:"opensea" envconfig:"OPENSEA"`
	OnChain OnChainConfig `yaml:"onchain" envconfig:"ONCHAIN"`
	Breaker BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

// MockConfig configures the static oracle used in development
type MockConfig struct {
	Answer bool `yaml:"answer" envconfig:"ANSWER"`
}

// OpenSeaConfig configures the marketplace API oracle
type OpenSeaConfig struct {
	BaseURL         string  `yaml:"base_url" envconfig:"BASE_URL"`
	ContractAddress string  `yaml:"contract_address" envconfig:"CONTRACT_ADDRESS"`
	TokenID         string  `yaml:"token_id" envconfig:"TOKEN_ID"`
	APIKey          string  `yaml:"api_key" envconfig:"API_KEY"`
	RPS             float64 `yaml:"rps" envconfig:"RPS"`
	Burst           int     `yaml:"burst" envconfig:"BURST"`
}

// OnChainConfig configures the JSON-RPC token contract oracle
type OnChainConfig struct {
	RPCURL          string `yaml:"rpc_url" envconfig:"RPC_URL"`
	ContractAddress string `yaml:"contract_address" envconfig:"CONTRACT_ADDRESS"`
	TokenID         string `yaml:"token_id" envconfig:"TOKEN_ID"`
	Standard        string `yaml:"standard" envconfig:"STANDARD"`
}

// BreakerConfig configures the circuit breaker wrapped around the oracle
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled" envconfig:"ENABLED"`
	MaxRequests         uint32        `yaml:"max_requests" envconfig:"MAX_REQUESTS"`
	Interval            time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Timeout             time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" envconfig:"CONSECUTIVE_FAILURES"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	MaxMessageSize  int64         `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, an optional YAML file and
// NFTGATE_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
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

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Validate checks ranges and required values and normalises enum fields
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive when enabled")
	}

	if c.License.RequestTTL < 0 {
		return fmt.Errorf("license request ttl must not be negative")
	}

	if c.License.RequestTTL > 0 && c.License.SweepInterval <= 0 {
		return fmt.Errorf("license sweep interval must be positive when request ttl is set")
	}

	if strings.TrimSpace(c.License.Preamble) == "" {
		return fmt.Errorf("license preamble must not be empty")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
		c.Logging.Output = strings.ToLower(c.Logging.Output)
	default:
		return fmt.Errorf("unsupported logging output: %s", c.Logging.Output)
	}

	if err := c.Oracle.validate(); err != nil {
		return err
	}

	return c.validateTimeouts()
}

// validateTimeouts requires oracle timeout < request timeout < write timeout.
// With no request timeout the oracle timeout must stay under the write timeout.
func (c *Config) validateTimeouts() error {
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server request timeout must not be negative")
	}

	if c.Server.RequestTimeout > 0 {
		if c.Server.RequestTimeout <= c.Oracle.Timeout {
			return fmt.Errorf("server request timeout (%s) must exceed oracle timeout (%s)",
				c.Server.RequestTimeout, c.Oracle.Timeout)
		}
		if c.Server.WriteTimeout <= c.Server.RequestTimeout {
			return fmt.Errorf("server write timeout (%s) must exceed request timeout (%s)",
				c.Server.WriteTimeout, c.Server.RequestTimeout)
		}
		return nil
	}

	if c.Server.WriteTimeout <= c.Oracle.Timeout {
		return fmt.Errorf("server write timeout (%s) must exceed oracle timeout (%s)",
			c.Server.WriteTimeout, c.Oracle.Timeout)
	}
	return nil
}

func (o *OracleConfig) validate() error {
	o.Kind = strings.ToLower(o.Kind)

	switch o.Kind {
	case OracleKindMock:
	case OracleKindOpenSea:
		if o.OpenSea.ContractAddress == "" || o.OpenSea.TokenID == "" {
			return fmt.Errorf("opensea oracle requires contract_address and token_id")
		}
		if o.OpenSea.RPS < 0 {
			return fmt.Errorf("opensea rps must not be negative")
		}
	case OracleKindOnChain:
		if o.OnChain.RPCURL == "" || o.OnChain.ContractAddress == "" || o.OnChain.TokenID == "" {
			return fmt.Errorf("onchain oracle requires rpc_url, contract_address and token_id")
		}
		o.OnChain.Standard = strings.ToLower(o.OnChain.Standard)
		if o.OnChain.Standard != TokenStandardERC1155 && o.OnChain.Standard != TokenStandardERC721 {
			return fmt.Errorf("unsupported token standard: %s", o.OnChain.Standard)
		}
	default:
		return fmt.Errorf("unsupported oracle kind: %q", o.Kind)
	}

	if o.Timeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive")
	}

	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"nftgate.yaml",
		"configs/nftgate.yaml",
		"../configs/nftgate.yaml",
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
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/nftgate.log",
		},
		License: LicenseConfig{
			Preamble:      DefaultPreamble,
			RequestTTL:    DefaultRequestTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Oracle: OracleConfig{
			Kind:    OracleKindMock,
			Timeout: DefaultOracleTimeout,
			Mock: MockConfig{
				Answer: true,
			},
			OpenSea: OpenSeaConfig{
				BaseURL: DefaultOpenSeaBaseURL,
				RPS:     2,
				Burst:   4,
			},
			OnChain: OnChainConfig{
				Standard: TokenStandardERC1155,
			},
			Breaker: BreakerConfig{
				Enabled:             true,
				MaxRequests:         3,
				Interval:            2 * time.Minute,
				Timeout:             10 * time.Second,
				ConsecutiveFailures: 5,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    ServiceName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageSize:  4096,
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
