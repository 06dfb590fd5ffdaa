package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"txbatcher/internal/runerr"
)

// EnvPrefix is prepended to every environment variable, e.g. TXBATCHER_ENDPOINT
const EnvPrefix = "TXBATCHER"

// Register installs defaults and environment lookups on v. Keys must be
// known to viper before Unmarshal can see their environment values.
func Register(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("endpoint", "")
	v.SetDefault("privateKey", "")
	v.SetDefault("to", "")
	v.SetDefault("value", DefaultValue)
	v.SetDefault("gasLimit", DefaultGasLimit)
	v.SetDefault("data", "")
	v.SetDefault("feePolicy", string(DefaultFeePolicy))
	v.SetDefault("gasPrice", "")
	v.SetDefault("priorityFee", "")
	v.SetDefault("premium", DefaultPremium)
	v.SetDefault("fallbackGasPrice", DefaultFallbackGasPrice)
	v.SetDefault("batchSize", DefaultBatchSize)
	v.SetDefault("batchCount", DefaultBatchCount)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("nonceTag", DefaultNonceTag)
	v.SetDefault("requestTimeout", DefaultRequestTimeout)
	v.SetDefault("handshakeTimeout", DefaultHandshakeTimeout)
	v.SetDefault("inboundBuffer", DefaultInboundBuffer)
	v.SetDefault("dedupCacheSize", DefaultDedupCacheSize)
	v.SetDefault("logLevel", DefaultLogLevel)

	// the key is easier to read with an underscore
	_ = v.BindEnv("privateKey", EnvPrefix+"_PRIVATE_KEY", EnvPrefix+"_PRIVATEKEY")
}

// ReadFile merges a JSON, YAML or TOML config file into v
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", runerr.ErrConfig, err)
	}
	return nil
}

// Load decodes, defaults and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", runerr.ErrConfig, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %v", runerr.ErrConfig, err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.FeePolicy = FeePolicy(strings.ToLower(strings.TrimSpace(string(cfg.FeePolicy))))
	cfg.NonceTag = strings.ToLower(strings.TrimSpace(cfg.NonceTag))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.FallbackGasPrice = strings.ToLower(strings.TrimSpace(cfg.FallbackGasPrice))

	if cfg.Value == "" {
		cfg.Value = DefaultValue
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.FeePolicy == "" {
		cfg.FeePolicy = DefaultFeePolicy
	}
	if cfg.Premium == "" {
		cfg.Premium = DefaultPremium
	}
	if cfg.FallbackGasPrice == "" {
		cfg.FallbackGasPrice = DefaultFallbackGasPrice
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchCount == 0 {
		cfg.BatchCount = DefaultBatchCount
	}
	// Interval 0 is valid and disables pacing
	if cfg.NonceTag == "" {
		cfg.NonceTag = DefaultNonceTag
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.InboundBuffer == 0 {
		cfg.InboundBuffer = DefaultInboundBuffer
	}
	if cfg.DedupCacheSize == 0 {
		cfg.DedupCacheSize = DefaultDedupCacheSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// validate checks the configuration for errors. Values that need parsing
// (key, amounts, template) are checked when the session is opened.
func validate(cfg *Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	lower := strings.ToLower(cfg.Endpoint)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") &&
		!strings.HasPrefix(lower, "ws://") && !strings.HasPrefix(lower, "wss://") {
		return fmt.Errorf("endpoint must start with http://, https://, ws:// or wss://")
	}

	if cfg.PrivateKey == "" {
		return fmt.Errorf("privateKey is required")
	}

	if cfg.Data == "" {
		return fmt.Errorf("data is required")
	}

	switch cfg.FeePolicy {
	case FeeLegacy:
		if cfg.GasPrice == "" {
			return fmt.Errorf("gasPrice is required for the legacy fee policy")
		}
	case FeePriority:
		if cfg.PriorityFee == "" {
			return fmt.Errorf("priorityFee is required for the priority fee policy")
		}
	case FeeDynamic:
	default:
		return fmt.Errorf("feePolicy must be one of: legacy, priority, dynamic")
	}

	if cfg.BatchSize < 0 {
		return fmt.Errorf("batchSize must be positive")
	}
	if cfg.BatchCount < 0 {
		return fmt.Errorf("batchCount must be positive")
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}

	if cfg.NonceTag != "latest" && cfg.NonceTag != "pending" {
		return fmt.Errorf("nonceTag must be latest or pending")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}
	if cfg.HandshakeTimeout < 0 {
		return fmt.Errorf("handshakeTimeout must be non-negative")
	}
	if cfg.InboundBuffer < 0 {
		return fmt.Errorf("inboundBuffer must be non-negative")
	}
	if cfg.DedupCacheSize < 0 {
		return fmt.Errorf("dedupCacheSize must be non-negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	return nil
}
