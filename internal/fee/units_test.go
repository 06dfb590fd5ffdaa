package fee

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txbatcher/internal/runerr"
)

func TestParseGwei(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"20", 20_000_000_000},
		{"0", 0},
		{" 1.5 ", 1_500_000_000},
		{"0.000000001", 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGwei(tt.in)
			require.NoError(t, err)
			assertBig(t, big.NewInt(tt.want), got)
		})
	}
}

func TestParseGwei_Invalid(t *testing.T) {
	// "0.0000000032" is 3.2 wei
	for _, in := range []string{"", "abc", "-1", "1,5", "0.0000000032"} {
		_, err := ParseGwei(in)
		assert.ErrorIs(t, err, runerr.ErrConfig, "input %q", in)
	}
}

func TestFormatGwei(t *testing.T) {
	assert.Equal(t, "20", FormatGwei(GweiToWei(20)))
	assert.Equal(t, "1.5", FormatGwei(big.NewInt(1_500_000_000)))
	assert.Equal(t, "0", FormatGwei(big.NewInt(0)))
	assert.Equal(t, "<nil>", FormatGwei(nil))
}
