package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/matchbox/internal/crypto"
	"github.com/alanyoungcy/matchbox/internal/domain"
)

const (
	defaultGasLimit     = uint64(2_000_000)
	defaultPollInterval = 3 * time.Second
)

// ErrReadOnly is returned when a write is attempted without a Transactor.
var ErrReadOnly = errors.New("chain: no transactor configured")

// Backend is the subset of ethclient.Client the contract wrappers use.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is an RPC connection to the chain.
type Client struct {
	rpcClient *rpc.Client
	*ethclient.Client
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial: %w", err)
	}
	return &Client{rpcClient: rc, Client: ethclient.NewClient(rc)}, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Transactor builds, signs and submits transactions from one account.
// Submissions are serialized so concurrent callers never share a nonce.
type Transactor struct {
	backend      Backend
	signer       *crypto.Signer
	pollInterval time.Duration
	logger       *slog.Logger

	mu sync.Mutex
}

// NewTransactor creates a Transactor.
func NewTransactor(backend Backend, signer *crypto.Signer, logger *slog.Logger) *Transactor {
	return &Transactor{
		backend:      backend,
		signer:       signer,
		pollInterval: defaultPollInterval,
		logger:       logger.With(slog.String("component", "transactor")),
	}
}

// From returns the sending account.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// SetPollInterval changes how often WaitMined polls for a receipt.
func (t *Transactor) SetPollInterval(d time.Duration) {
	if d > 0 {
		t.pollInterval = d
	}
}

// Transact sends a call to `to` with calldata and returns the signed,
// submitted transaction.
func (t *Transactor) Transact(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.signer.Address()
	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: nonce: %w", err)
	}

	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w", err)
	}
	// 10% over the suggestion for faster inclusion.
	gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(11)), big.NewInt(10))

	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		t.logger.Warn("chain: gas estimate failed, using default",
			slog.String("to", to.Hex()),
			slog.Uint64("limit", defaultGasLimit),
			slog.String("error", err.Error()),
		)
		gas = defaultGasLimit
	}
	gas = gas * 12 / 10

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gas, gasPrice, data)
	signed, err := t.signer.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("chain: %w: %v", domain.ErrSigningFailed, err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: send tx: %w", err)
	}

	t.logger.Info("chain: transaction sent",
		slog.String("to", to.Hex()),
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)
	return signed, nil
}

// WaitMined polls for the receipt of hash until it is mined or ctx ends.
// A reverted transaction returns its receipt together with domain.ErrReverted.
func (t *Transactor) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("chain: tx %s: %w", hash.Hex(), domain.ErrReverted)
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			t.logger.Debug("chain: receipt poll failed",
				slog.String("tx", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain: wait for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// call runs a read-only contract method and unpacks its outputs.
func call(ctx context.Context, backend Backend, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("chain: %s returned nothing", method)
	}
	return values, nil
}
