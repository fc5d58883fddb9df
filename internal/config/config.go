// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// NerdGraph endpoints per New Relic data center region.
const (
	RegionUS = "us"
	RegionEU = "eu"

	EndpointUS = "https://api.newrelic.com/graphql"
	EndpointEU = "https://api.eu.newrelic.com/graphql"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	NerdGraph() NerdGraphConfig
	Network() NetworkConfig
	Run() RunConfig
	SetRunConfig(rc RunConfig)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	NerdGraphCfg NerdGraphConfig `mapstructure:"nerdgraph" yaml:"nerdgraph"`
	NetworkCfg   NetworkConfig   `mapstructure:"network" yaml:"network"`
	// RunCfg gets its marching orders from CLI flags, not the config file.
	RunCfg RunConfig `mapstructure:"-" yaml:"-"`
}

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) NerdGraph() NerdGraphConfig { return c.NerdGraphCfg }
func (c *Config) Network() NetworkConfig     { return c.NetworkCfg }
func (c *Config) Run() RunConfig             { return c.RunCfg }

func (c *Config) SetRunConfig(rc RunConfig) { c.RunCfg = rc }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// NerdGraphConfig points the client at the right New Relic API.
type NerdGraphConfig struct {
	Region string `mapstructure:"region" yaml:"region"`
	// Endpoint overrides the region lookup when set.
	Endpoint          string  `mapstructure:"endpoint" yaml:"endpoint"`
	UserAgent         string  `mapstructure:"user_agent" yaml:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// ResolvedEndpoint returns the explicit endpoint or the one for the configured region.
func (n NerdGraphConfig) ResolvedEndpoint() string {
	if n.Endpoint != "" {
		return n.Endpoint
	}
	if strings.EqualFold(strings.TrimSpace(n.Region), RegionEU) {
		return EndpointEU
	}
	return EndpointUS
}

// ProxyConfig defines the configuration for an outbound proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// NetworkConfig tunes the network behavior of the application.
type NetworkConfig struct {
	Timeout         time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Headers         map[string]string `mapstructure:"headers" yaml:"headers"`
	Proxy           ProxyConfig       `mapstructure:"proxy" yaml:"proxy"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// RunConfig carries the per-invocation inputs supplied on the command line.
type RunConfig struct {
	APIKey    string `validate:"required"`
	AccountID int    `validate:"gt=0"`
	Query     string `validate:"required"`
	DryRun    bool
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHooks()); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "nr-bulk-delete")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- NerdGraph --
	v.SetDefault("nerdgraph.region", RegionUS)
	v.SetDefault("nerdgraph.endpoint", "")
	v.SetDefault("nerdgraph.user_agent", "nr-bulk-delete")
	v.SetDefault("nerdgraph.requests_per_second", 0.0)

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.proxy.enabled", false)
	v.SetDefault("network.proxy.address", "")
	v.SetDefault("network.ignore_tls_errors", false)
}

// EnvPrefix namespaces every environment override, e.g. NRDELETE_NERDGRAPH_REGION.
const EnvPrefix = "NRDELETE"

// BindEnv lets environment variables override file and default values.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows; maps have no leaf default.
	_ = v.BindEnv("network.headers")
}

// decodeHooks keeps viper's default hooks and adds "K=V,K2=V2" parsing for
// header maps supplied as a single environment string.
func decodeHooks() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToHeadersHook,
	))
}

func stringToHeadersHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
		return data, nil
	}
	headers := map[string]string{}
	for _, pair := range strings.Split(data.(string), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want Name=Value", pair)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHooks()); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.NerdGraphCfg.Region = strings.ToLower(strings.TrimSpace(cfg.NerdGraphCfg.Region))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.NerdGraphCfg.Region != RegionUS && c.NerdGraphCfg.Region != RegionEU {
		return fmt.Errorf("nerdgraph.region must be %q or %q, got %q", RegionUS, RegionEU, c.NerdGraphCfg.Region)
	}
	if c.NerdGraphCfg.Endpoint != "" {
		u, err := url.Parse(c.NerdGraphCfg.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("nerdgraph.endpoint must be an absolute URL, got %q", c.NerdGraphCfg.Endpoint)
		}
	}
	if c.NerdGraphCfg.RequestsPerSecond < 0 {
		return fmt.Errorf("nerdgraph.requests_per_second must not be negative")
	}
	if c.NetworkCfg.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.NetworkCfg.Proxy.Enabled {
		if _, err := url.Parse(c.NetworkCfg.Proxy.Address); err != nil || c.NetworkCfg.Proxy.Address == "" {
			return fmt.Errorf("network.proxy.address must be a valid URL when the proxy is enabled")
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks that every mandatory run input is present.
func (r RunConfig) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %q check", flagName(verrs[0].Field()), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// flagName maps a RunConfig field to the CLI flag that sets it.
func flagName(field string) string {
	switch field {
	case "APIKey":
		return "--api-key"
	case "AccountID":
		return "--account-id"
	case "Query":
		return "--query"
	}
	return field
}
