package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artion-backend/infrastructure/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := config.LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, int64(250), cfg.ChainID)
	assert.Equal(t, time.Duration(0), cfg.FinalityTimeout, "no finality timeout unless configured")
	assert.Equal(t, 8, cfg.ProbeConcurrency)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.False(t, cfg.HasLedger())
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_url: http://file-node:8545
chain_id: 4002
finality_timeout: 90s
api_base_url: https://api.example.com
allowed_origins: ["https://a.example"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RPC_URL", "http://env-node:8545")
	t.Setenv("FINALITY_CONFIRMATIONS", "3")
	t.Setenv("API_TIMEOUT", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")

	// Act
	cfg, err := config.LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "http://env-node:8545", cfg.RPCURL, "environment wins over file")
	assert.Equal(t, int64(4002), cfg.ChainID)
	assert.Equal(t, 90*time.Second, cfg.FinalityTimeout)
	assert.Equal(t, uint64(3), cfg.FinalityConfirmations)
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.AllowedOrigins)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("FINALITY_TIMEOUT", "soon")

	_, err := config.LoadConfig()

	assert.ErrorContains(t, err, "FINALITY_TIMEOUT")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{
			name:   "development defaults",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "production requires ledger and auth settings",
			mutate:  func(c *config.Config) { c.Environment = "production" },
			wantErr: "SIGNER_PRIVATE_KEY is required in production",
		},
		{
			name: "complete production config",
			mutate: func(c *config.Config) {
				c.Environment = "production"
				c.RPCURL = "http://node"
				c.SignerPrivateKey = "abc"
				c.BundleMarketplaceAddress = "0x00000000000000000000000000000000000000bb"
				c.APIBaseURL = "https://api"
				c.JWTSecret = "secret"
			},
		},
		{
			name:    "bad marketplace address",
			mutate:  func(c *config.Config) { c.BundleMarketplaceAddress = "nope" },
			wantErr: "BUNDLE_MARKETPLACE_ADDRESS",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *config.Config) { c.ProbeConcurrency = 0 },
			wantErr: "PROBE_CONCURRENCY",
		},
		{
			name:    "negative idle timeout",
			mutate:  func(c *config.Config) { c.SessionIdleTimeout = -time.Second },
			wantErr: "SESSION_IDLE_TIMEOUT",
		},
		{
			name:   "zero idle timeout keeps sessions",
			mutate: func(c *config.Config) { c.SessionIdleTimeout = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
