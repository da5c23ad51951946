package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Ledger configuration
	RPCURL                   string        `yaml:"rpc_url"`
	ChainID                  int64         `yaml:"chain_id"`
	SignerPrivateKey         string        `yaml:"signer_private_key"`
	BundleMarketplaceAddress string        `yaml:"bundle_marketplace_address"`
	FinalityConfirmations    uint64        `yaml:"finality_confirmations"`
	FinalityTimeout          time.Duration `yaml:"finality_timeout"`
	ReceiptPollInterval      time.Duration `yaml:"receipt_poll_interval"`
	ProbeConcurrency         int           `yaml:"probe_concurrency"`
	SessionIdleTimeout       time.Duration `yaml:"session_idle_timeout"`

	// Off-chain bundle service
	APIBaseURL string        `yaml:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout"`

	// AWS configuration
	AWSRegion    string `yaml:"aws_region"`
	OrphanTable  string `yaml:"orphan_table"`
	EventBusName string `yaml:"event_bus_name"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableMetrics  bool     `yaml:"enable_metrics"`
	EnableTracing  bool     `yaml:"enable_tracing"`
	OTLPEndpoint   string   `yaml:"otlp_endpoint"`
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerAddress:         ":8080",
		Environment:           "development",
		LogLevel:              "info",
		ChainID:               250,
		FinalityConfirmations: 1,
		ReceiptPollInterval:   2 * time.Second,
		ProbeConcurrency:      8,
		SessionIdleTimeout:    30 * time.Minute,
		APITimeout:            30 * time.Second,
		AWSRegion:             "us-west-2",
		JWTIssuer:             "artion-backend",
		EnableMetrics:         true,
		OTLPEndpoint:          "localhost:4317",
		EnableCORS:            true,
		AllowedOrigins:        []string{"*"},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadEnv() error {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.RPCURL = getEnv("RPC_URL", c.RPCURL)
	c.ChainID = int64(getEnvInt("CHAIN_ID", int(c.ChainID)))
	c.SignerPrivateKey = getEnv("SIGNER_PRIVATE_KEY", c.SignerPrivateKey)
	c.BundleMarketplaceAddress = getEnv("BUNDLE_MARKETPLACE_ADDRESS", c.BundleMarketplaceAddress)
	c.FinalityConfirmations = uint64(getEnvInt("FINALITY_CONFIRMATIONS", int(c.FinalityConfirmations)))
	c.ProbeConcurrency = getEnvInt("PROBE_CONCURRENCY", c.ProbeConcurrency)

	var err error
	if c.FinalityTimeout, err = getEnvDuration("FINALITY_TIMEOUT", c.FinalityTimeout); err != nil {
		return err
	}
	if c.ReceiptPollInterval, err = getEnvDuration("RECEIPT_POLL_INTERVAL", c.ReceiptPollInterval); err != nil {
		return err
	}
	if c.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout); err != nil {
		return err
	}

	c.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", c.APIBaseURL), "/")
	if c.APITimeout, err = getEnvDuration("API_TIMEOUT", c.APITimeout); err != nil {
		return err
	}

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.OrphanTable = getEnv("ORPHAN_TABLE", c.OrphanTable)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	var errs []error

	if c.BundleMarketplaceAddress != "" && !common.IsHexAddress(c.BundleMarketplaceAddress) {
		errs = append(errs, fmt.Errorf("BUNDLE_MARKETPLACE_ADDRESS is not a hex address"))
	}
	if c.FinalityTimeout < 0 {
		errs = append(errs, fmt.Errorf("FINALITY_TIMEOUT cannot be negative"))
	}
	if c.ReceiptPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("RECEIPT_POLL_INTERVAL must be positive"))
	}
	if c.ProbeConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("PROBE_CONCURRENCY must be positive"))
	}
	if c.SessionIdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_TIMEOUT cannot be negative"))
	}

	if c.IsProduction() {
		required := []struct{ key, value string }{
			{"RPC_URL", c.RPCURL},
			{"SIGNER_PRIVATE_KEY", c.SignerPrivateKey},
			{"BUNDLE_MARKETPLACE_ADDRESS", c.BundleMarketplaceAddress},
			{"API_BASE_URL", c.APIBaseURL},
			{"JWT_SECRET", c.JWTSecret},
		}
		for _, r := range required {
			if r.value == "" {
				errs = append(errs, fmt.Errorf("%s is required in production", r.key))
			}
		}
	}

	return errors.Join(errs...)
}

// HasLedger reports whether enough ledger settings exist to dial a node
func (c *Config) HasLedger() bool {
	return c.RPCURL != "" && c.SignerPrivateKey != "" && c.BundleMarketplaceAddress != ""
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "90s". A bare integer is read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
