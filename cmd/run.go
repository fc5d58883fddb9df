package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nr-bulk-delete/internal/config"
	"github.com/xkilldash9x/nr-bulk-delete/internal/deleter"
	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph"
	"github.com/xkilldash9x/nr-bulk-delete/internal/network"
	"github.com/xkilldash9x/nr-bulk-delete/internal/observability"
)

// defaultConfigName is looked up in the working directory when --config is not given.
const defaultConfigName = "nr-bulk-delete"

func (o *options) runConfig() config.RunConfig {
	return config.RunConfig{
		APIKey:    o.apiKey,
		AccountID: o.accountID,
		Query:     o.query,
		DryRun:    o.dryRun,
	}
}

// runDelete resolves configuration from every source and performs the run.
func runDelete(cmd *cobra.Command, opts *options) error {
	v := viper.New()
	config.SetDefaults(v)
	if err := initializeConfig(cmd, v, opts); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	cfg.SetRunConfig(opts.runConfig())
	return runWithConfig(cmd, cfg)
}

// runWithConfig wires logging, the NerdGraph client and the executor
// together from a loaded configuration, then performs the run.
func runWithConfig(cmd *cobra.Command, cfg config.Interface) error {
	ctx := cmd.Context()

	observability.InitializeLogger(cfg.Logger())
	runID := uuid.New().String()
	logger := observability.GetLogger().With(zap.String("runID", runID))

	endpoint := cfg.NerdGraph().ResolvedEndpoint()
	logger.Info("Starting bulk delete",
		zap.String("version", Version),
		zap.Int("account_id", cfg.Run().AccountID),
		zap.String("endpoint", endpoint),
		zap.Bool("dry_run", cfg.Run().DryRun),
		zap.Float64("requests_per_second", cfg.NerdGraph().RequestsPerSecond))

	clientCfg, err := network.ClientConfigFrom(cfg.Network())
	if err != nil {
		return fmt.Errorf("invalid network configuration: %w", err)
	}
	clientCfg.Logger = logger.Named("httpclient")
	httpClient := network.NewClient(clientCfg)
	defer httpClient.CloseIdleConnections()

	api := nerdgraph.NewClient(nerdgraph.Options{
		Endpoint:   endpoint,
		APIKey:     cfg.Run().APIKey,
		UserAgent:  fmt.Sprintf("%s/%s", cfg.NerdGraph().UserAgent, Version),
		RunID:      runID,
		Headers:    cfg.Network().Headers,
		HTTPClient: httpClient.Client,
		Logger:     logger.Named("nerdgraph"),
	})

	executor := deleter.NewExecutor(api, cmd.OutOrStdout(),
		deleter.WithLogger(logger.Named("deleter")),
		deleter.WithRateLimit(cfg.NerdGraph().RequestsPerSecond),
		deleter.WithDryRun(cfg.Run().DryRun),
	)

	_, err = executor.Run(ctx, cfg.Run().AccountID, cfg.Run().Query)
	if err != nil && !errors.Is(err, deleter.ErrPartialFailure) {
		logger.Error("Bulk delete failed", zap.Error(err))
	}
	return err
}

// initializeConfig layers, lowest to highest precedence: defaults, config
// file, environment (optionally seeded from --env-file), then flags.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *options) error {
	if opts.envFile != "" {
		path, err := homedir.Expand(opts.envFile)
		if err != nil {
			return fmt.Errorf("could not resolve env file path '%s': %w", opts.envFile, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("error loading env file: %w", err)
		}
	}

	if opts.cfgFile != "" {
		path, err := homedir.Expand(opts.cfgFile)
		if err != nil {
			return fmt.Errorf("could not resolve config path '%s': %w", opts.cfgFile, err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config.BindEnv(v)
	return bindFlags(cmd, v)
}

// flagKeys maps ambient flags onto their config keys.
var flagKeys = map[string]string{
	"region":    "nerdgraph.region",
	"endpoint":  "nerdgraph.endpoint",
	"rate":      "nerdgraph.requests_per_second",
	"timeout":   "network.timeout",
	"log-level": "logger.level",
}

// bindFlags lets explicitly set flags override every other source.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flagName, key := range flagKeys {
		f := cmd.Flags().Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		v.Set(key, strings.TrimSpace(f.Value.String()))
	}
	return nil
}
