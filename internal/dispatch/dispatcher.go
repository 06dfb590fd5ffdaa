package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"txbatcher/internal/fee"
	"txbatcher/internal/nonce"
	"txbatcher/internal/payload"
	"txbatcher/internal/runerr"
	"txbatcher/internal/signer"
	"txbatcher/internal/transport"
)

// PayloadSource yields transaction data. *payload.Templater implements it.
type PayloadSource interface {
	Next() ([]byte, error)
	Remaining() (uint64, bool)
}

// Params is everything a run needs. It is built once and not modified.
type Params struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	ChainID  *big.Int

	BatchSize  int
	BatchCount int
	Interval   time.Duration

	Payload    PayloadSource
	Nonces     *nonce.Sequencer
	Fees       fee.Strategy
	Credential signer.Credential
	Transport  transport.Transport
}

func (p Params) validate() error {
	switch {
	case p.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", runerr.ErrConfig, p.BatchSize)
	case p.BatchCount <= 0:
		return fmt.Errorf("%w: batch count must be positive, got %d", runerr.ErrConfig, p.BatchCount)
	case p.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative", runerr.ErrConfig)
	case p.Payload == nil:
		return fmt.Errorf("%w: payload source is required", runerr.ErrConfig)
	case p.Nonces == nil:
		return fmt.Errorf("%w: nonce sequencer is required", runerr.ErrConfig)
	case p.Fees == nil:
		return fmt.Errorf("%w: fee strategy is required", runerr.ErrConfig)
	case p.Transport == nil:
		return fmt.Errorf("%w: transport is required", runerr.ErrConfig)
	case !p.Credential.Valid():
		return fmt.Errorf("%w: signing credential is required", runerr.ErrConfig)
	}
	return nil
}

// Result summarizes a finished run
type Result struct {
	State             State
	Batches           int
	Transactions      int
	FailedSubmissions int
	FirstNonce        uint64
	LastNonce         uint64
	NoncesIssued      uint64
	Elapsed           time.Duration
}

// Dispatcher builds, signs and submits batches until the batch count is
// reached or the payload range runs out. It is single use.
type Dispatcher struct {
	params Params
	logger zerolog.Logger
	state  State
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher in the initializing state
func New(params Params, logger zerolog.Logger) (*Dispatcher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.Value == nil {
		params.Value = new(big.Int)
	}
	return &Dispatcher{
		params: params,
		logger: logger.With().Str("component", "dispatcher").Logger(),
		state:  StateInitializing,
		sleep:  sleepCtx,
	}, nil
}

// State returns the current state
func (d *Dispatcher) State() State {
	return d.state
}

// Run drives the session to a terminal state. The returned error is nil for
// StateExhausted and StateBatchLimitReached and set for StateAborted.
// Cancellation of ctx is observed between batches and during pacing only;
// a batch that has started is always built and submitted.
func (d *Dispatcher) Run(ctx context.Context) (Result, error) {
	if d.state != StateInitializing {
		return Result{State: d.state}, fmt.Errorf("dispatcher already used (state %s)", d.state)
	}

	p := d.params
	started := time.Now()
	res := Result{FirstNonce: p.Nonces.Peek()}

	d.state = StateRunning
	d.logger.Info().
		Str("from", p.From.Hex()).
		Str("to", p.To.Hex()).
		Str("policy", string(p.Fees.Policy())).
		Str("transport", string(p.Transport.Kind())).
		Int("batchSize", p.BatchSize).
		Int("batchCount", p.BatchCount).
		Dur("interval", p.Interval).
		Uint64("startNonce", res.FirstNonce).
		Msg("dispatch started")

	finish := func(state State, err error) (Result, error) {
		d.state = state
		res.State = state
		res.Elapsed = time.Since(started)
		res.NoncesIssued = p.Nonces.Issued()
		if res.Transactions > 0 {
			res.LastNonce = res.FirstNonce + uint64(res.Transactions) - 1
		}

		var ev *zerolog.Event
		if err != nil {
			ev = d.logger.Error().Err(err)
		} else {
			ev = d.logger.Info()
		}
		ev.Str("state", string(state)).
			Int("batches", res.Batches).
			Int("transactions", res.Transactions).
			Int("failed", res.FailedSubmissions).
			Uint64("noncesIssued", res.NoncesIssued).
			Dur("elapsed", res.Elapsed).
			Msg("dispatch finished")
		return res, err
	}

	for batch := 0; batch < p.BatchCount; batch++ {
		if err := ctx.Err(); err != nil {
			return finish(StateAborted, err)
		}

		fields, err := p.Fees.ForBatch(ctx, batch)
		if err != nil {
			return finish(StateAborted, err)
		}

		txs, exhausted, err := d.build(batch, fields)
		res.Transactions += len(txs)
		if err != nil {
			return finish(StateAborted, err)
		}

		if len(txs) > 0 {
			err = p.Transport.SubmitBatch(ctx, transport.Batch{Index: batch, Transactions: txs})
			res.Batches++
			if err != nil {
				if runerr.IsFatal(err) {
					return finish(StateAborted, err)
				}
				res.FailedSubmissions++
				d.logger.Warn().
					Err(err).
					Int("batch", batch).
					Uint64("firstNonce", txs[0].Nonce).
					Uint64("lastNonce", txs[len(txs)-1].Nonce).
					Msg("batch submission failed, nonces spent")
			}
		}

		if exhausted {
			return finish(StateExhausted, nil)
		}
		if batch == p.BatchCount-1 {
			break
		}

		if !p.Transport.Streaming() && p.Interval > 0 {
			d.logger.Debug().Dur("interval", p.Interval).Msg("waiting before next batch")
			if err := d.sleep(ctx, p.Interval); err != nil {
				return finish(StateAborted, err)
			}
		}
	}

	return finish(StateBatchLimitReached, nil)
}

// build assembles one batch. exhausted is true when the payload range ran out
// during or right at the end of this batch.
func (d *Dispatcher) build(batch int, fields fee.Fields) (txs []signer.SignedTransaction, exhausted bool, err error) {
	p := d.params
	txs = make([]signer.SignedTransaction, 0, p.BatchSize)

	for i := 0; i < p.BatchSize; i++ {
		data, err := p.Payload.Next()
		if errors.Is(err, payload.ErrRangeExhausted) {
			return txs, true, nil
		}
		if err != nil {
			return txs, false, err
		}

		draft := signer.Draft{
			From:     p.From,
			To:       p.To,
			Nonce:    p.Nonces.Next(),
			GasLimit: p.GasLimit,
			Fee:      fields,
			ChainID:  p.ChainID,
			Value:    p.Value,
			Data:     data,
		}

		signed, err := signer.Sign(draft, p.Credential)
		if err != nil {
			return txs, false, err
		}
		signed.Index = i
		txs = append(txs, signed)
	}

	if n, ok := p.Payload.Remaining(); ok && n == 0 {
		exhausted = true
	}

	d.logger.Debug().
		Int("batch", batch).
		Int("size", len(txs)).
		Str("fee", fields.String()).
		Msg("batch built")
	return txs, exhausted, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
