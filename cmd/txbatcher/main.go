package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"txbatcher/internal/config"
	"txbatcher/internal/dispatch"
	"txbatcher/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"endpoint":           "endpoint",
	"to":                 "to",
	"value":              "value",
	"gas-limit":          "gasLimit",
	"data":               "data",
	"fee-policy":         "feePolicy",
	"gas-price":          "gasPrice",
	"priority-fee":       "priorityFee",
	"premium":            "premium",
	"fallback-gas-price": "fallbackGasPrice",
	"batch-size":         "batchSize",
	"batch-count":        "batchCount",
	"interval":           "interval",
	"nonce-tag":          "nonceTag",
	"request-timeout":    "requestTimeout",
	"handshake-timeout":  "handshakeTimeout",
	"inbound-buffer":     "inboundBuffer",
	"dedup-cache-size":   "dedupCacheSize",
	"log-level":          "logLevel",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:   "txbatcher",
		Short: "Send batches of sequentially nonced signed transactions",
		Long: "txbatcher signs transactions from one account with consecutive nonces and\n" +
			"submits them in JSON-RPC batches over HTTP(S) or WebSocket.\n\n" +
			"The private key is read from TXBATCHER_PRIVATE_KEY (a .env file is honoured).",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			config.Register(v)
			if err := config.ReadFile(v, configPath); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to a JSON, YAML or TOML config file")
	f.StringVar(&envFile, "env-file", ".env", "path to a dotenv file")
	f.StringP("endpoint", "e", "", "JSON-RPC endpoint (http://, https://, ws:// or wss://)")
	f.String("to", "", "recipient address (default: the sender)")
	f.String("value", config.DefaultValue, "value per transaction in wei")
	f.Uint64("gas-limit", config.DefaultGasLimit, "gas limit per transaction")
	f.StringP("data", "d", "", "payload template, may contain one [start-end] range")
	f.String("fee-policy", string(config.DefaultFeePolicy), "fee policy: legacy, priority or dynamic")
	f.String("gas-price", "", "legacy gas price in gwei")
	f.String("priority-fee", "", "priority fee in gwei")
	f.String("premium", config.DefaultPremium, "dynamic policy premium in gwei")
	f.String("fallback-gas-price", config.DefaultFallbackGasPrice, "dynamic policy fallback in gwei, or \"off\"")
	f.IntP("batch-size", "s", config.DefaultBatchSize, "transactions per batch")
	f.IntP("batch-count", "n", config.DefaultBatchCount, "maximum number of batches")
	f.Duration("interval", config.DefaultInterval, "pause between HTTP batches")
	f.String("nonce-tag", config.DefaultNonceTag, "starting nonce block tag: latest or pending")
	f.Duration("request-timeout", config.DefaultRequestTimeout, "HTTP request and socket write timeout")
	f.Duration("handshake-timeout", config.DefaultHandshakeTimeout, "WebSocket handshake timeout")
	f.Int("inbound-buffer", config.DefaultInboundBuffer, "buffered inbound socket messages")
	f.Int("dedup-cache-size", config.DefaultDedupCacheSize, "notification dedup cache size")
	f.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(name))
	}

	return cmd
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("feePolicy", string(cfg.FeePolicy)).
		Int("batchSize", cfg.BatchSize).
		Int("batchCount", cfg.BatchCount).
		Dur("interval", cfg.Interval).
		Msg("starting txbatcher")
	logger.Debug().Interface("config", cfg.Redacted()).Msg("effective config")

	r, err := session.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open session")
		return err
	}

	res, runErr := r.Run(ctx)
	if err := r.Close(); err != nil {
		logger.Warn().Err(err).Msg("error during shutdown")
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info().Uint64("lastNonce", res.LastNonce).Msg("stopped by signal")
			return nil
		}
		logger.Error().Err(runErr).Str("state", string(res.State)).Msg("run aborted")
		return runErr
	}

	logResult(logger, res)
	return nil
}

func logResult(logger zerolog.Logger, res dispatch.Result) {
	ev := logger.Info().
		Str("state", string(res.State)).
		Int("batches", res.Batches).
		Int("transactions", res.Transactions).
		Int("failedSubmissions", res.FailedSubmissions).
		Dur("elapsed", res.Elapsed)
	if res.Transactions > 0 {
		ev = ev.Uint64("firstNonce", res.FirstNonce).Uint64("lastNonce", res.LastNonce)
	}
	ev.Msg("done")
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
