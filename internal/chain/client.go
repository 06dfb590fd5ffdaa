package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"txbatcher/internal/runerr"
)

// NonceTag selects which transaction count seeds the nonce sequencer
type NonceTag string

const (
	NonceLatest  NonceTag = "latest"
	NoncePending NonceTag = "pending"
)

// ParseNonceTag accepts "latest" (also the empty string) and "pending"
func ParseNonceTag(s string) (NonceTag, error) {
	switch NonceTag(strings.ToLower(strings.TrimSpace(s))) {
	case "", NonceLatest:
		return NonceLatest, nil
	case NoncePending:
		return NoncePending, nil
	default:
		return "", fmt.Errorf("%w: nonce tag must be latest or pending, got %q", runerr.ErrConfig, s)
	}
}

// Client answers the read-only queries made at session start and the
// per-batch gas price samples of the dynamic fee policy.
type Client struct {
	eth     *ethclient.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// Dial connects to the endpoint. HTTP endpoints use a pooled client with the
// given request timeout; WebSocket endpoints open their own connection,
// separate from the one used to submit batches.
func Dial(ctx context.Context, endpoint string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	var opts []rpc.ClientOption
	lower := strings.ToLower(endpoint)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		opts = append(opts, rpc.WithHTTPClient(&http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		}))
	}

	rpcClient, err := rpc.DialOptions(ctx, endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize rpc client: %v", runerr.ErrConnection, err)
	}

	return &Client{
		eth:     ethclient.NewClient(rpcClient),
		timeout: timeout,
		logger:  logger.With().Str("component", "chain").Logger(),
	}, nil
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ChainID returns the chain identifier reported by the endpoint
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_chainId: %v", runerr.ErrConnection, err)
	}
	if id.Sign() <= 0 {
		return nil, fmt.Errorf("%w: endpoint reported chain id %s", runerr.ErrConfig, id)
	}
	return id, nil
}

// StartingNonce returns the transaction count of addr at the given tag
func (c *Client) StartingNonce(ctx context.Context, addr common.Address, tag NonceTag) (uint64, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var (
		n   uint64
		err error
	)
	if tag == NoncePending {
		n, err = c.eth.PendingNonceAt(ctx, addr)
	} else {
		n, err = c.eth.NonceAt(ctx, addr, nil)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: eth_getTransactionCount(%s): %v", runerr.ErrConnection, tag, err)
	}

	c.logger.Debug().
		Str("address", addr.Hex()).
		Str("tag", string(tag)).
		Uint64("nonce", n).
		Msg("starting nonce loaded")
	return n, nil
}

// BaseFee returns the base fee of the latest block, or nil when the chain
// does not report one
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_getBlockByNumber(latest): %v", runerr.ErrConnection, err)
	}
	return head.BaseFee, nil
}

// SuggestGasPrice samples eth_gasPrice. Errors are returned unwrapped; the
// dynamic fee policy decides whether they are fatal.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	return c.eth.SuggestGasPrice(ctx)
}

// Close releases the underlying connection
func (c *Client) Close() {
	c.eth.Close()
}
