package fetcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// FeedOptions parameterise an on-chain aggregator feed.
type FeedOptions struct {
	Code        string
	RPCURL      string
	FeedAddress string
	Timeout     time.Duration
}

// Feed reads a Chainlink-style USD aggregator for crypto instruments whose
// pages are not worth scraping.
type Feed struct {
	opts      FeedOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex

	// decimals is immutable per feed; resolved on first successful call
	// and retried after transient failures.
	decMux      sync.Mutex
	decimals    int32
	decResolved bool
}

// NewFeed builds an on-chain feed source.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	return &Feed{
		opts:   opts,
		logger: logger.With().Str("component", "feed_source").Str("instrument", opts.Code).Logger(),
	}
}

// Fetch reads latestRoundData and scales by the feed's decimals. Failures
// collapse into *ParseError like any other source adapter.
func (f *Feed) Fetch(ctx context.Context) (float64, error) {
	if f.opts.RPCURL == "" {
		return 0, parseErrf(f.opts.Code, "ethereum rpc url not configured")
	}
	if f.opts.FeedAddress == "" {
		return 0, parseErrf(f.opts.Code, "feed address not configured")
	}

	timeout := f.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := f.getClient(ctx)
	if err != nil {
		return 0, parseErrf(f.opts.Code, "dial rpc: %w", err)
	}

	addr := common.HexToAddress(f.opts.FeedAddress)

	if err := f.resolveDecimals(ctx, client, addr); err != nil {
		return 0, parseErrf(f.opts.Code, "resolve decimals: %w", err)
	}

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return 0, parseErrf(f.opts.Code, "pack call: %w", err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return 0, parseErrf(f.opts.Code, "call contract: %w", err)
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return 0, parseErrf(f.opts.Code, "unpack response: %w", err)
	}
	if len(outputs) != 5 {
		return 0, parseErrf(f.opts.Code, "unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return 0, parseErrf(f.opts.Code, "non-positive feed answer")
	}

	value := decimal.NewFromBigInt(answer, -f.decimals).InexactFloat64()
	f.logger.Debug().Float64("value", value).Msg("feed answer read")
	return value, nil
}

func (f *Feed) resolveDecimals(ctx context.Context, client *ethclient.Client, addr common.Address) error {
	f.decMux.Lock()
	defer f.decMux.Unlock()

	if f.decResolved {
		return nil
	}

	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return err
	}
	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil {
		return err
	}
	d, ok := outputs[0].(uint8)
	if !ok {
		return errors.New("failed to decode decimals output")
	}

	f.decimals = int32(d)
	f.decResolved = true
	return nil
}

func (f *Feed) getClient(ctx context.Context) (*ethclient.Client, error) {
	f.clientMux.Lock()
	defer f.clientMux.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	client, err := ethclient.DialContext(ctx, f.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

var _ RateSource = (*Feed)(nil)
