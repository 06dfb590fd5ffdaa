package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txbatcher/internal/runerr"
)

func newViper(t *testing.T, values map[string]interface{}) *viper.Viper {
	t.Helper()
	v := viper.New()
	Register(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func minimal() map[string]interface{} {
	return map[string]interface{}{
		"endpoint":   "https://bsc-dataseed.example.org",
		"privateKey": "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"data":       "data:,[1-10]",
		"gasPrice":   "3",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, minimal()))
	require.NoError(t, err)

	assert.Equal(t, FeeLegacy, cfg.FeePolicy)
	assert.Equal(t, uint64(DefaultGasLimit), cfg.GasLimit)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultBatchCount, cfg.BatchCount)
	assert.Equal(t, 20*time.Second, cfg.Interval)
	assert.Equal(t, "latest", cfg.NonceTag)
	assert.Equal(t, DefaultFallbackGasPrice, cfg.FallbackGasPrice)
	assert.True(t, cfg.FallbackEnabled())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, DefaultInboundBuffer, cfg.InboundBuffer)
	assert.Equal(t, DefaultDedupCacheSize, cfg.DedupCacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0", cfg.Value)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TXBATCHER_ENDPOINT", "wss://node.example.org/ws")
	t.Setenv("TXBATCHER_PRIVATE_KEY", "abc")
	t.Setenv("TXBATCHER_DATA", "0xdeadbeef")
	t.Setenv("TXBATCHER_FEEPOLICY", "Dynamic")
	t.Setenv("TXBATCHER_BATCHSIZE", "7")
	t.Setenv("TXBATCHER_INTERVAL", "1500ms")

	cfg, err := Load(newViper(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "wss://node.example.org/ws", cfg.Endpoint)
	assert.Equal(t, "abc", cfg.PrivateKey)
	assert.Equal(t, FeeDynamic, cfg.FeePolicy)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Interval)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "endpoint: http://127.0.0.1:8545\n" +
		"privateKey: key\n" +
		"data: hello\n" +
		"feePolicy: priority\n" +
		"priorityFee: \"1.5\"\n" +
		"batchCount: 3\n" +
		"interval: 0s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	v := newViper(t, nil)
	require.NoError(t, ReadFile(v, path))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, FeePriority, cfg.FeePolicy)
	assert.Equal(t, "1.5", cfg.PriorityFee)
	assert.Equal(t, 3, cfg.BatchCount)
	assert.Equal(t, time.Duration(0), cfg.Interval)

	err = ReadFile(newViper(t, nil), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, runerr.ErrConfig)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"no endpoint", map[string]interface{}{"endpoint": ""}},
		{"bad scheme", map[string]interface{}{"endpoint": "ftp://node"}},
		{"no key", map[string]interface{}{"privateKey": ""}},
		{"no data", map[string]interface{}{"data": ""}},
		{"legacy without price", map[string]interface{}{"gasPrice": ""}},
		{"priority without fee", map[string]interface{}{"feePolicy": "priority"}},
		{"unknown policy", map[string]interface{}{"feePolicy": "eip4844"}},
		{"negative batch size", map[string]interface{}{"batchSize": -1}},
		{"negative interval", map[string]interface{}{"interval": "-1s"}},
		{"bad nonce tag", map[string]interface{}{"nonceTag": "earliest"}},
		{"bad log level", map[string]interface{}{"logLevel": "trace"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := minimal()
			for k, v := range tt.values {
				values[k] = v
			}
			_, err := Load(newViper(t, values))
			assert.ErrorIs(t, err, runerr.ErrConfig)
		})
	}
}

func TestLoad_FallbackOffIsCaseInsensitive(t *testing.T) {
	for _, in := range []string{"off", "OFF", " Off "} {
		values := minimal()
		values["feePolicy"] = "dynamic"
		values["fallbackGasPrice"] = in

		cfg, err := Load(newViper(t, values))
		require.NoError(t, err, in)
		assert.False(t, cfg.FallbackEnabled(), in)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{PrivateKey: "secret", Endpoint: "http://x"}
	r := cfg.Redacted()
	assert.Equal(t, "***", r.PrivateKey)
	assert.Equal(t, "secret", cfg.PrivateKey)
}
