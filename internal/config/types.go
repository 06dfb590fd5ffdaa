package config

import "time"

// FeePolicy selects how transaction fees are priced
type FeePolicy string

const (
	FeeLegacy   FeePolicy = "legacy"
	FeePriority FeePolicy = "priority"
	FeeDynamic  FeePolicy = "dynamic"
)

// FallbackDisabled turns off the dynamic policy fallback price
const FallbackDisabled = "off"

// Config represents one run of the dispatcher
type Config struct {
	Endpoint   string `mapstructure:"endpoint"`
	PrivateKey string `mapstructure:"privateKey"`
	To         string `mapstructure:"to"`    // defaults to the sender
	Value      string `mapstructure:"value"` // wei
	GasLimit   uint64 `mapstructure:"gasLimit"`
	Data       string `mapstructure:"data"`

	FeePolicy        FeePolicy `mapstructure:"feePolicy"`
	GasPrice         string    `mapstructure:"gasPrice"`         // gwei, legacy
	PriorityFee      string    `mapstructure:"priorityFee"`      // gwei, priority
	Premium          string    `mapstructure:"premium"`          // gwei, dynamic
	FallbackGasPrice string    `mapstructure:"fallbackGasPrice"` // gwei, dynamic; "off" disables

	BatchSize  int           `mapstructure:"batchSize"`
	BatchCount int           `mapstructure:"batchCount"`
	Interval   time.Duration `mapstructure:"interval"`
	NonceTag   string        `mapstructure:"nonceTag"`

	RequestTimeout   time.Duration `mapstructure:"requestTimeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
	InboundBuffer    int           `mapstructure:"inboundBuffer"`
	DedupCacheSize   int           `mapstructure:"dedupCacheSize"`

	LogLevel string `mapstructure:"logLevel"`
}

// Default values
const (
	DefaultGasLimit         = 25024
	DefaultValue            = "0"
	DefaultFeePolicy        = FeeLegacy
	DefaultPremium          = "0"
	DefaultFallbackGasPrice = "20"
	DefaultBatchSize        = 30
	DefaultBatchCount       = 100
	DefaultInterval         = 20 * time.Second
	DefaultNonceTag         = "latest"
	DefaultRequestTimeout   = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultInboundBuffer    = 1024
	DefaultDedupCacheSize   = 10000
	DefaultLogLevel         = "info"
)

// FallbackEnabled returns false when the dynamic fallback price is turned off
func (c *Config) FallbackEnabled() bool {
	return c.FallbackGasPrice != FallbackDisabled
}

// Redacted returns a copy with the private key masked, safe to log
func (c Config) Redacted() Config {
	if c.PrivateKey != "" {
		c.PrivateKey = "***"
	}
	return c
}
