package fee

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txbatcher/internal/runerr"
)

type stubOracle struct {
	prices []*big.Int
	errs   []error
	calls  int
}

func (o *stubOracle) SuggestGasPrice(context.Context) (*big.Int, error) {
	i := o.calls
	o.calls++
	var err error
	if i < len(o.errs) {
		err = o.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(o.prices) {
		return o.prices[i], nil
	}
	return nil, nil
}

func TestLegacy_FixedAcrossBatches(t *testing.T) {
	l, err := NewLegacy(big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, PolicyLegacy, l.Policy())

	for batch := 0; batch < 3; batch++ {
		f, err := l.ForBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.True(t, f.IsLegacy())
		assert.Equal(t, int64(5), f.GasPrice.Int64())
		assert.Nil(t, f.GasTipCap)
		assert.Nil(t, f.GasFeeCap)
	}
}

func TestLegacy_RejectsInvalid(t *testing.T) {
	_, err := NewLegacy(big.NewInt(-1))
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)

	_, err = NewLegacy(nil)
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)

	_, err = NewLegacy(new(big.Int).Lsh(big.NewInt(1), 256))
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)
}

func TestPriority_FeeCapFromBaseFee(t *testing.T) {
	p, err := NewPriority(GweiToWei(2), GweiToWei(10))
	require.NoError(t, err)

	f, err := p.ForBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, f.IsLegacy())
	assertBig(t, GweiToWei(2), f.GasTipCap)
	assertBig(t, GweiToWei(22), f.GasFeeCap)
}

func TestPriority_NoBaseFee(t *testing.T) {
	p, err := NewPriority(big.NewInt(7), nil)
	require.NoError(t, err)

	f, err := p.ForBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.GasTipCap.Int64())
	assert.Equal(t, int64(7), f.GasFeeCap.Int64())
}

func TestDynamic_AddsPremium(t *testing.T) {
	oracle := &stubOracle{prices: []*big.Int{GweiToWei(3), GweiToWei(4)}}
	d, err := NewDynamic(oracle, GweiToWei(1), GweiToWei(DefaultFallbackGwei), zerolog.Nop())
	require.NoError(t, err)

	f, err := d.ForBatch(context.Background(), 0)
	require.NoError(t, err)
	assertBig(t, GweiToWei(4), f.GasPrice)

	f, err = d.ForBatch(context.Background(), 1)
	require.NoError(t, err)
	assertBig(t, GweiToWei(5), f.GasPrice)

	assert.Equal(t, 2, oracle.calls)
}

func TestDynamic_FallbackOnSampleFailure(t *testing.T) {
	oracle := &stubOracle{
		errs:   []error{errors.New("connection refused"), nil},
		prices: []*big.Int{nil, GweiToWei(1)},
	}
	d, err := NewDynamic(oracle, big.NewInt(0), GweiToWei(DefaultFallbackGwei), zerolog.Nop())
	require.NoError(t, err)

	f, err := d.ForBatch(context.Background(), 0)
	require.NoError(t, err)
	assertBig(t, GweiToWei(20), f.GasPrice)

	f, err = d.ForBatch(context.Background(), 1)
	require.NoError(t, err)
	assertBig(t, GweiToWei(1), f.GasPrice)
}

func TestDynamic_FallbackOnOverflow(t *testing.T) {
	oracle := &stubOracle{prices: []*big.Int{new(big.Int).Set(maxFee)}}
	d, err := NewDynamic(oracle, big.NewInt(1), big.NewInt(9), zerolog.Nop())
	require.NoError(t, err)

	f, err := d.ForBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), f.GasPrice.Int64())
}

func TestDynamic_NoFallbackIsFatal(t *testing.T) {
	oracle := &stubOracle{errs: []error{errors.New("timeout")}}
	d, err := NewDynamic(oracle, big.NewInt(0), nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = d.ForBatch(context.Background(), 0)
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)
}

func TestNewDynamic_Validation(t *testing.T) {
	_, err := NewDynamic(nil, big.NewInt(0), nil, zerolog.Nop())
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)

	_, err = NewDynamic(&stubOracle{}, big.NewInt(-1), nil, zerolog.Nop())
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)

	_, err = NewDynamic(&stubOracle{}, big.NewInt(0), big.NewInt(-5), zerolog.Nop())
	assert.ErrorIs(t, err, runerr.ErrFeePolicy)
}

func TestFields_Equal(t *testing.T) {
	a := Fields{GasPrice: big.NewInt(5)}
	b := Fields{GasPrice: big.NewInt(5)}
	c := Fields{GasTipCap: big.NewInt(5), GasFeeCap: big.NewInt(5)}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "gasPrice=0.000000005 gwei", a.String())
}

func assertBig(t *testing.T, want, got *big.Int) {
	t.Helper()
	require.NotNil(t, got)
	assert.Zero(t, want.Cmp(got), "want %s, got %s", want, got)
}
