package fee

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"txbatcher/internal/runerr"
)

var (
	gwei = big.NewInt(params.GWei)

	// maxFee is the largest value a fee field can carry (2^256 - 1)
	maxFee = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ParseGwei converts a decimal gwei amount such as "20" or "0.0000000032"
// into wei. Amounts finer than one wei are rejected rather than rounded.
func ParseGwei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty gwei amount", runerr.ErrConfig)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: invalid gwei amount %q", runerr.ErrConfig, s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%w: gwei amount %q is negative", runerr.ErrConfig, s)
	}

	r.Mul(r, new(big.Rat).SetInt(gwei))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: gwei amount %q has more precision than one wei", runerr.ErrConfig, s)
	}

	wei := new(big.Int).Set(r.Num())
	if err := checkFee("amount", wei); err != nil {
		return nil, err
	}
	return wei, nil
}

// GweiToWei converts a whole gwei amount into wei
func GweiToWei(g uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(g), gwei)
}

// FormatGwei renders a wei amount in gwei for logs
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "<nil>"
	}
	s := new(big.Rat).SetFrac(wei, gwei).FloatString(9)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// checkFee rejects nil, negative and oversized values
func checkFee(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: %s is not set", runerr.ErrFeePolicy, name)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s %s is negative", runerr.ErrFeePolicy, name, v)
	}
	if v.Cmp(maxFee) > 0 {
		return fmt.Errorf("%w: %s overflows 256 bits", runerr.ErrFeePolicy, name)
	}
	return nil
}
