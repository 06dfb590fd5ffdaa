package fee

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"txbatcher/internal/runerr"
)

// Policy names a fee policy
type Policy string

const (
	PolicyLegacy   Policy = "legacy"
	PolicyPriority Policy = "priority"
	PolicyDynamic  Policy = "dynamic"
)

// DefaultFallbackGwei is the dynamic policy price used when the endpoint
// cannot be sampled.
const DefaultFallbackGwei = 20

// Fields holds the fee values attached to a transaction. Exactly one of
// GasPrice (legacy) or GasTipCap/GasFeeCap (EIP-1559) is set.
// Values may be shared between the transactions of a batch and must not be mutated.
type Fields struct {
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// IsLegacy returns true if the fields describe a legacy gas price
func (f Fields) IsLegacy() bool {
	return f.GasPrice != nil
}

// Equal reports whether two field sets carry the same values
func (f Fields) Equal(o Fields) bool {
	return bigEqual(f.GasPrice, o.GasPrice) &&
		bigEqual(f.GasTipCap, o.GasTipCap) &&
		bigEqual(f.GasFeeCap, o.GasFeeCap)
}

// String renders the fields in gwei
func (f Fields) String() string {
	if f.IsLegacy() {
		return fmt.Sprintf("gasPrice=%s gwei", FormatGwei(f.GasPrice))
	}
	return fmt.Sprintf("tip=%s gwei feeCap=%s gwei", FormatGwei(f.GasTipCap), FormatGwei(f.GasFeeCap))
}

// Strategy resolves the fee fields for a batch. ForBatch is called exactly
// once per batch and its result is applied to every transaction in it.
type Strategy interface {
	Policy() Policy
	ForBatch(ctx context.Context, batch int) (Fields, error)
}

// PriceOracle returns the endpoint's current suggested gas price
type PriceOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Legacy attaches one fixed gas price to every transaction
type Legacy struct {
	price *big.Int
}

// NewLegacy creates a fixed legacy price policy
func NewLegacy(price *big.Int) (*Legacy, error) {
	if err := checkFee("gas price", price); err != nil {
		return nil, err
	}
	return &Legacy{price: new(big.Int).Set(price)}, nil
}

// Policy returns PolicyLegacy
func (l *Legacy) Policy() Policy {
	return PolicyLegacy
}

// ForBatch returns the fixed price
func (l *Legacy) ForBatch(context.Context, int) (Fields, error) {
	return Fields{GasPrice: l.price}, nil
}

// Priority attaches a fixed priority fee to every transaction. The operator
// does not choose a fee cap; it is derived once from the base fee observed at
// session start as 2*baseFee + tip, or just the tip when the chain reports no
// base fee.
type Priority struct {
	tip    *big.Int
	feeCap *big.Int
}

// NewPriority creates a fixed priority fee policy. baseFee may be nil.
func NewPriority(tip, baseFee *big.Int) (*Priority, error) {
	if err := checkFee("priority fee", tip); err != nil {
		return nil, err
	}

	feeCap := new(big.Int).Set(tip)
	if baseFee != nil {
		if err := checkFee("base fee", baseFee); err != nil {
			return nil, err
		}
		feeCap.Add(feeCap, new(big.Int).Lsh(baseFee, 1))
	}
	if err := checkFee("fee cap", feeCap); err != nil {
		return nil, err
	}

	return &Priority{tip: new(big.Int).Set(tip), feeCap: feeCap}, nil
}

// Policy returns PolicyPriority
func (p *Priority) Policy() Policy {
	return PolicyPriority
}

// ForBatch returns the fixed tip and fee cap
func (p *Priority) ForBatch(context.Context, int) (Fields, error) {
	return Fields{GasTipCap: p.tip, GasFeeCap: p.feeCap}, nil
}

// Dynamic samples the endpoint gas price before every batch and adds a
// premium. A failed or unusable sample falls back to a fixed price; with no
// fallback configured the batch fails with runerr.ErrFeePolicy.
type Dynamic struct {
	oracle   PriceOracle
	premium  *big.Int
	fallback *big.Int
	logger   zerolog.Logger
}

// NewDynamic creates a sampled legacy price policy. fallback may be nil to
// disable the fallback price.
func NewDynamic(oracle PriceOracle, premium, fallback *big.Int, logger zerolog.Logger) (*Dynamic, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: dynamic policy requires a price oracle", runerr.ErrFeePolicy)
	}
	if err := checkFee("premium", premium); err != nil {
		return nil, err
	}

	d := &Dynamic{
		oracle:  oracle,
		premium: new(big.Int).Set(premium),
		logger:  logger.With().Str("component", "fee").Logger(),
	}
	if fallback != nil {
		if err := checkFee("fallback gas price", fallback); err != nil {
			return nil, err
		}
		d.fallback = new(big.Int).Set(fallback)
	}
	return d, nil
}

// Policy returns PolicyDynamic
func (d *Dynamic) Policy() Policy {
	return PolicyDynamic
}

// ForBatch samples the network price once and returns it plus the premium
func (d *Dynamic) ForBatch(ctx context.Context, batch int) (Fields, error) {
	network, err := d.oracle.SuggestGasPrice(ctx)
	if err == nil {
		if network == nil {
			err = errors.New("oracle returned no price")
		} else {
			price := new(big.Int).Add(network, d.premium)
			if err = checkFee("sampled gas price", price); err == nil {
				d.logger.Info().
					Int("batch", batch).
					Str("network", FormatGwei(network)).
					Str("premium", FormatGwei(d.premium)).
					Str("gasPrice", FormatGwei(price)).
					Msg("gas price sampled")
				return Fields{GasPrice: price}, nil
			}
		}
	}

	if d.fallback == nil {
		return Fields{}, fmt.Errorf("%w: gas price sample failed and no fallback is set: %v", runerr.ErrFeePolicy, err)
	}

	d.logger.Warn().
		Err(err).
		Int("batch", batch).
		Str("gasPrice", FormatGwei(d.fallback)).
		Msg("gas price sample failed, using fallback")
	return Fields{GasPrice: d.fallback}, nil
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}
