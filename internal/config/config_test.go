package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DefaultPreamble, cfg.License.Preamble)
				assert.Equal(t, DefaultRequestTTL, cfg.License.RequestTTL)
				assert.Equal(t, OracleKindMock, cfg.Oracle.Kind)
				assert.True(t, cfg.Oracle.Mock.Answer)
				assert.True(t, cfg.Oracle.Breaker.Enabled)
				assert.Equal(t, "console", cfg.Logging.Output)
			},
		},
		{
			name: "env overrides defaults",
			env: map[string]string{
				"NFTGATE_SERVER_PORT":                     "9090",
				"NFTGATE_LICENSE_REQUEST_TTL":             "90s",
				"NFTGATE_ORACLE_KIND":                     "OpenSea",
				"NFTGATE_ORACLE_OPENSEA_CONTRACT_ADDRESS": "0x495f947276749ce646f68ac8c248420045cb7b5e",
				"NFTGATE_ORACLE_OPENSEA_TOKEN_ID":         "42",
				"NFTGATE_SERVER_ALLOWED_ORIGINS":          "https://a.example,https://b.example",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 90*time.Second, cfg.License.RequestTTL)
				assert.Equal(t, OracleKindOpenSea, cfg.Oracle.Kind)
				assert.Equal(t, "42", cfg.Oracle.OpenSea.TokenID)
				assert.Equal(t, DefaultOpenSeaBaseURL, cfg.Oracle.OpenSea.BaseURL)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "yaml file is overlaid and env still wins",
			file: `
server:
  port: 7000
license:
  preamble: "Sign in"
  request_ttl: 2m
oracle:
  kind: onchain
  onchain:
    rpc_url: http://localhost:8545
    contract_address: "0x0000000000000000000000000000000000000001"
    token_id: "7"
    standard: ERC721
`,
			env: map[string]string{
				"NFTGATE_SERVER_PORT": "7001",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7001, cfg.Server.Port)
				assert.Equal(t, "Sign in", cfg.License.Preamble)
				assert.Equal(t, 2*time.Minute, cfg.License.RequestTTL)
				assert.Equal(t, OracleKindOnChain, cfg.Oracle.Kind)
				assert.Equal(t, TokenStandardERC721, cfg.Oracle.OnChain.Standard)
				// untouched sections keep defaults
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name:    "opensea without token is rejected",
			env:     map[string]string{"NFTGATE_ORACLE_KIND": "opensea"},
			wantErr: "opensea oracle requires",
		},
		{
			name:    "unknown oracle kind is rejected",
			env:     map[string]string{"NFTGATE_ORACLE_KIND": "ledger"},
			wantErr: "unsupported oracle kind",
		},
		{
			name:    "invalid port is rejected",
			env:     map[string]string{"NFTGATE_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "malformed duration fails env parsing",
			env:     map[string]string{"NFTGATE_LICENSE_REQUEST_TTL": "soon"},
			wantErr: "failed to load config from env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NFTGATE_CONFIG_FILE", "")
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "nftgate.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0600))
				t.Setenv("NFTGATE_CONFIG_FILE", path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("zero ttl disables expiry without sweep interval", func(t *testing.T) {
		cfg := Default()
		cfg.License.RequestTTL = 0
		cfg.License.SweepInterval = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("ttl requires sweep interval", func(t *testing.T) {
		cfg := Default()
		cfg.License.SweepInterval = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("blank preamble", func(t *testing.T) {
		cfg := Default()
		cfg.License.Preamble = "  "
		assert.Error(t, cfg.Validate())
	})

	t.Run("logging output is normalised", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Output = "BOTH"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "both", cfg.Logging.Output)
	})

	t.Run("unknown token standard", func(t *testing.T) {
		cfg := Default()
		cfg.Oracle.Kind = OracleKindOnChain
		cfg.Oracle.OnChain = OnChainConfig{
			RPCURL:          "http://localhost:8545",
			ContractAddress: "0x01",
			TokenID:         "1",
			Standard:        "erc20",
		}
		assert.ErrorContains(t, cfg.Validate(), "unsupported token standard")
	})

	t.Run("default timeouts are nested", func(t *testing.T) {
		cfg := Default()
		assert.Less(t, cfg.Oracle.Timeout, cfg.Server.RequestTimeout)
		assert.Less(t, cfg.Server.RequestTimeout, cfg.Server.WriteTimeout)
	})

	t.Run("request timeout must exceed oracle timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Oracle.Timeout = cfg.Server.RequestTimeout
		assert.ErrorContains(t, cfg.Validate(), "must exceed oracle timeout")
	})

	t.Run("write timeout must exceed request timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Server.WriteTimeout = 15 * time.Second
		assert.ErrorContains(t, cfg.Validate(), "must exceed request timeout")
	})

	t.Run("without request timeout write timeout must exceed oracle timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Server.RequestTimeout = 0
		cfg.Server.WriteTimeout = cfg.Oracle.Timeout
		assert.ErrorContains(t, cfg.Validate(), "must exceed oracle timeout")

		cfg.Server.WriteTimeout = cfg.Oracle.Timeout + time.Second
		assert.NoError(t, cfg.Validate())
	})

	t.Run("env timeouts that invert the order are rejected", func(t *testing.T) {
		t.Setenv("NFTGATE_CONFIG_FILE", "")
		t.Setenv("NFTGATE_SERVER_WRITE_TIMEOUT", "15s")
		_, err := Load()
		assert.ErrorContains(t, err, "must exceed request timeout")
	})
}
