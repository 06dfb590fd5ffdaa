package session

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"txbatcher/internal/chain"
	"txbatcher/internal/config"
	"txbatcher/internal/dispatch"
	"txbatcher/internal/fee"
	"txbatcher/internal/nonce"
	"txbatcher/internal/payload"
	"txbatcher/internal/runerr"
	"txbatcher/internal/signer"
	"txbatcher/internal/transport"
)

// Session is the immutable description of one run, resolved from the
// configuration and the endpoint before the first batch is built.
type Session struct {
	Endpoint   string
	From       common.Address
	To         common.Address
	Value      *big.Int
	GasLimit   uint64
	ChainID    *big.Int
	StartNonce uint64
	NonceTag   chain.NonceTag
	FeePolicy  fee.Policy
	Template   string
	BatchSize  int
	BatchCount int
	Interval   time.Duration
}

// Chain is the subset of the chain client a session needs
type Chain interface {
	ChainID(ctx context.Context) (*big.Int, error)
	StartingNonce(ctx context.Context, addr common.Address, tag chain.NonceTag) (uint64, error)
	BaseFee(ctx context.Context) (*big.Int, error)
	fee.PriceOracle
}

// Runner owns the resources of an opened session
type Runner struct {
	Session    Session
	Dispatcher *dispatch.Dispatcher
	Transport  transport.Transport

	chain  *chain.Client
	logger zerolog.Logger
}

// local holds everything resolved without network access
type local struct {
	cred      signer.Credential
	to        common.Address
	value     *big.Int
	templater *payload.Templater
	tag       chain.NonceTag
}

// parseLocal checks every offline value so that configuration errors
// surface before any connection is made
func parseLocal(cfg *config.Config) (local, error) {
	var l local
	var err error

	if l.cred, err = signer.ParseCredential(cfg.PrivateKey); err != nil {
		return l, err
	}

	l.to = l.cred.Address()
	if to := strings.TrimSpace(cfg.To); to != "" {
		if !common.IsHexAddress(to) {
			return l, fmt.Errorf("%w: invalid recipient address %q", runerr.ErrConfig, to)
		}
		l.to = common.HexToAddress(to)
	}

	l.value = new(big.Int)
	if _, ok := l.value.SetString(strings.TrimSpace(cfg.Value), 10); !ok || l.value.Sign() < 0 {
		return l, fmt.Errorf("%w: value must be a non-negative wei amount, got %q", runerr.ErrConfig, cfg.Value)
	}

	if l.templater, err = payload.New(cfg.Data); err != nil {
		return l, err
	}

	if l.tag, err = chain.ParseNonceTag(cfg.NonceTag); err != nil {
		return l, err
	}
	return l, nil
}

// newStrategy builds the fee strategy. The priority policy reads the base
// fee once here; the dynamic policy samples oracle once per batch.
func newStrategy(ctx context.Context, cfg *config.Config, c Chain, logger zerolog.Logger) (fee.Strategy, error) {
	switch cfg.FeePolicy {
	case config.FeeLegacy:
		price, err := fee.ParseGwei(cfg.GasPrice)
		if err != nil {
			return nil, err
		}
		return fee.NewLegacy(price)

	case config.FeePriority:
		tip, err := fee.ParseGwei(cfg.PriorityFee)
		if err != nil {
			return nil, err
		}
		baseFee, err := c.BaseFee(ctx)
		if err != nil {
			return nil, err
		}
		if baseFee == nil {
			logger.Warn().Msg("endpoint reports no base fee, fee cap set to the priority fee")
		}
		return fee.NewPriority(tip, baseFee)

	case config.FeeDynamic:
		premium, err := fee.ParseGwei(cfg.Premium)
		if err != nil {
			return nil, err
		}
		var fallback *big.Int
		if cfg.FallbackEnabled() {
			if fallback, err = fee.ParseGwei(cfg.FallbackGasPrice); err != nil {
				return nil, err
			}
		}
		return fee.NewDynamic(c, premium, fallback, logger)

	default:
		return nil, fmt.Errorf("%w: unknown fee policy %q", runerr.ErrConfig, cfg.FeePolicy)
	}
}

// build resolves the session against the endpoint and wires a dispatcher
// around tr. It does not take ownership of c or tr.
func build(ctx context.Context, cfg *config.Config, l local, c Chain, tr transport.Transport, logger zerolog.Logger) (Session, *dispatch.Dispatcher, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return Session{}, nil, err
	}

	from := l.cred.Address()
	start, err := c.StartingNonce(ctx, from, l.tag)
	if err != nil {
		return Session{}, nil, err
	}

	strategy, err := newStrategy(ctx, cfg, c, logger)
	if err != nil {
		return Session{}, nil, err
	}

	s := Session{
		Endpoint:   cfg.Endpoint,
		From:       from,
		To:         l.to,
		Value:      l.value,
		GasLimit:   cfg.GasLimit,
		ChainID:    chainID,
		StartNonce: start,
		NonceTag:   l.tag,
		FeePolicy:  strategy.Policy(),
		Template:   l.templater.Template(),
		BatchSize:  cfg.BatchSize,
		BatchCount: cfg.BatchCount,
		Interval:   cfg.Interval,
	}

	d, err := dispatch.New(dispatch.Params{
		From:       s.From,
		To:         s.To,
		Value:      s.Value,
		GasLimit:   s.GasLimit,
		ChainID:    s.ChainID,
		BatchSize:  s.BatchSize,
		BatchCount: s.BatchCount,
		Interval:   s.Interval,
		Payload:    l.templater,
		Nonces:     nonce.New(s.StartNonce),
		Fees:       strategy,
		Credential: l.cred,
		Transport:  tr,
	}, logger)
	if err != nil {
		return Session{}, nil, err
	}

	ev := logger.Info().
		Str("chainId", s.ChainID.String()).
		Str("from", s.From.Hex()).
		Str("to", s.To.Hex()).
		Uint64("startNonce", s.StartNonce).
		Str("nonceTag", string(s.NonceTag)).
		Str("policy", string(s.FeePolicy)).
		Bool("ranged", l.templater.Ranged())
	if n, ok := l.templater.Remaining(); ok {
		ev = ev.Uint64("payloads", n)
	}
	ev.Msg("session ready")

	return s, d, nil
}

// Open validates cfg, connects to the endpoint and returns a Runner ready
// to Run. Configuration errors are reported before any network activity.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runner, error) {
	l, err := parseLocal(cfg)
	if err != nil {
		return nil, err
	}

	client, err := chain.Dial(ctx, cfg.Endpoint, cfg.RequestTimeout, logger)
	if err != nil {
		return nil, err
	}

	tr, err := transport.New(ctx, cfg.Endpoint, transport.Options{
		RequestTimeout:   cfg.RequestTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		InboundBuffer:    cfg.InboundBuffer,
		DedupCacheSize:   cfg.DedupCacheSize,
		Logger:           logger,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	s, d, err := build(ctx, cfg, l, client, tr, logger)
	if err != nil {
		tr.Close()
		client.Close()
		return nil, err
	}

	return &Runner{
		Session:    s,
		Dispatcher: d,
		Transport:  tr,
		chain:      client,
		logger:     logger,
	}, nil
}

// Run dispatches every batch of the session
func (r *Runner) Run(ctx context.Context) (dispatch.Result, error) {
	return r.Dispatcher.Run(ctx)
}

// Close releases the transport and the chain client
func (r *Runner) Close() error {
	err := r.Transport.Close()
	r.chain.Close()

	s := r.Transport.Stats()
	r.logger.Info().
		Str("transport", string(r.Transport.Kind())).
		Uint64("batches", s.Batches).
		Uint64("transactions", s.Transactions).
		Uint64("failures", s.Failures).
		Uint64("inbound", s.Inbound).
		Msg("transport stats")
	return err
}
