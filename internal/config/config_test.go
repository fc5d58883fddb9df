// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, "nr-bulk-delete", cfg.Logger().ServiceName)
	assert.Equal(t, RegionUS, cfg.NerdGraph().Region)
	assert.Equal(t, EndpointUS, cfg.NerdGraph().ResolvedEndpoint())
	assert.Zero(t, cfg.NerdGraph().RequestsPerSecond)
	assert.Equal(t, 30*time.Second, cfg.Network().Timeout)
	assert.False(t, cfg.Network().Proxy.Enabled)
	assert.Equal(t, "magenta", cfg.Logger().Colors.Fatal)
	assert.NoError(t, cfg.Validate(), "defaults must always validate")
}

func TestResolvedEndpoint(t *testing.T) {
	assert.Equal(t, EndpointUS, NerdGraphConfig{Region: RegionUS}.ResolvedEndpoint())
	assert.Equal(t, EndpointEU, NerdGraphConfig{Region: RegionEU}.ResolvedEndpoint())
	assert.Equal(t, EndpointEU, NerdGraphConfig{Region: "EU"}.ResolvedEndpoint())
	assert.Equal(t, "http://localhost:9999/graphql",
		NerdGraphConfig{Region: RegionEU, Endpoint: "http://localhost:9999/graphql"}.ResolvedEndpoint(),
		"explicit endpoint wins over region")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid Defaults", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Unknown Region", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.NerdGraphCfg.Region = "apac"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nerdgraph.region must be")
	})

	t.Run("Relative Endpoint", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.NerdGraphCfg.Endpoint = "/graphql"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nerdgraph.endpoint must be an absolute URL")
	})

	t.Run("Negative Rate", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.NerdGraphCfg.RequestsPerSecond = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requests_per_second must not be negative")
	})

	t.Run("Zero Timeout", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.NetworkCfg.Timeout = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network.timeout must be a positive duration")
	})

	t.Run("Proxy Without Address", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.NetworkCfg.Proxy.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network.proxy.address")
	})
}

func TestRunConfigValidation(t *testing.T) {
	valid := RunConfig{APIKey: "NRAK-TEST", AccountID: 1234567, Query: "name LIKE 'staging-%'"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantMsg string
	}{
		{"missing api key", func(r *RunConfig) { r.APIKey = "" }, "--api-key"},
		{"zero account id", func(r *RunConfig) { r.AccountID = 0 }, "--account-id"},
		{"negative account id", func(r *RunConfig) { r.AccountID = -5 }, "--account-id"},
		{"missing query", func(r *RunConfig) { r.Query = "" }, "--query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := valid
			tt.mutate(&rc)
			err := rc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAML Overrides Defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlConfig := []byte(`
logger:
  level: debug
nerdgraph:
  region: eu
  requests_per_second: 2.5
network:
  timeout: 5s
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.Equal(t, EndpointEU, cfg.NerdGraph().ResolvedEndpoint())
		assert.Equal(t, 2.5, cfg.NerdGraph().RequestsPerSecond)
		assert.Equal(t, 5*time.Second, cfg.Network().Timeout)
		// Untouched keys keep their defaults.
		assert.Equal(t, "console", cfg.Logger().Format)
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		t.Setenv("NRDELETE_NERDGRAPH_REGION", "eu")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, RegionEU, cfg.NerdGraph().Region)
	})

	t.Run("Environment Only Proxy", func(t *testing.T) {
		t.Setenv("NRDELETE_NETWORK_PROXY_ENABLED", "true")
		t.Setenv("NRDELETE_NETWORK_PROXY_ADDRESS", "http://proxy:3128")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.True(t, cfg.Network().Proxy.Enabled)
		assert.Equal(t, "http://proxy:3128", cfg.Network().Proxy.Address)
	})

	t.Run("Environment Headers", func(t *testing.T) {
		t.Setenv("NRDELETE_NETWORK_HEADERS", "X-Team=sre, X-Env=prod")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"X-Team": "sre", "X-Env": "prod"}, cfg.Network().Headers)
	})

	t.Run("Malformed Environment Headers", func(t *testing.T) {
		t.Setenv("NRDELETE_NETWORK_HEADERS", "X-Team")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want Name=Value")
	})

	t.Run("Region Is Case Insensitive", func(t *testing.T) {
		t.Setenv("NRDELETE_NERDGRAPH_REGION", " EU ")

		v := viper.New()
		SetDefaults(v)
		BindEnv(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, RegionEU, cfg.NerdGraph().Region)
		assert.Equal(t, EndpointEU, cfg.NerdGraph().ResolvedEndpoint())
	})

	t.Run("Headers From YAML", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		BindEnv(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString("network:\n  headers:\n    x-team: sre\n")))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sre", cfg.Network().Headers["x-team"])
	})

	t.Run("Invalid Values Rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("nerdgraph.region", "mars")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestRunConfigRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	rc := RunConfig{APIKey: "k", AccountID: 1, Query: "q", DryRun: true}
	cfg.SetRunConfig(rc)
	assert.Equal(t, rc, cfg.Run())
}

func TestConfigSatisfiesInterface(t *testing.T) {
	var cfg Interface = NewDefaultConfig()
	cfg.SetRunConfig(RunConfig{APIKey: "k", AccountID: 7, Query: "q"})
	assert.Equal(t, 7, cfg.Run().AccountID)
	assert.Equal(t, RegionUS, cfg.NerdGraph().Region)
}
