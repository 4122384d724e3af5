// Package ethchain is the chain-aware RPC facade: per-chain clients,
// the server's HD signing key, and the escrow contract binding.
package ethchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrUnsupportedChain is returned for operations on a chainId that has no
// configured RPC endpoint.
var ErrUnsupportedChain = errors.New("unsupported chain")

// DefaultCallTimeout bounds every outbound RPC call.
const DefaultCallTimeout = 30 * time.Second

const receiptPollInterval = 2 * time.Second

// Client manages one lazily-dialed RPC client per configured chain and owns
// the server's signing key.
type Client struct {
	mu      sync.Mutex
	rpcURLs map[int64]string
	clients map[int64]*ethclient.Client

	signer  *Signer
	timeout time.Duration
	log     *zap.Logger
}

// NewClient creates a client for the given chainId -> RPC URL set. signer
// may be nil for read-only use.
func NewClient(chains map[int64]string, signer *Signer, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	urls := make(map[int64]string, len(chains))
	for id, url := range chains {
		urls[id] = url
	}
	return &Client{
		rpcURLs: urls,
		clients: make(map[int64]*ethclient.Client),
		signer:  signer,
		timeout: DefaultCallTimeout,
		log:     log.Named("ethchain"),
	}
}

// SignerAddress returns the address of the server's settler key.
func (c *Client) SignerAddress() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// SupportedChains lists the configured chain ids.
func (c *Client) SupportedChains() []int64 {
	ids := make([]int64, 0, len(c.rpcURLs))
	for id := range c.rpcURLs {
		ids = append(ids, id)
	}
	return ids
}

// dial returns the RPC client for chainID, connecting on first use.
func (c *Client) dial(chainID int64) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ec, ok := c.clients[chainID]; ok {
		return ec, nil
	}
	url, ok := c.rpcURLs[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	ec, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	c.clients[chainID] = ec
	c.log.Info("connected to chain", zap.Int64("chainId", chainID))
	return ec, nil
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// GetBalance returns the wei balance of addr at the latest block.
func (c *Client) GetBalance(ctx context.Context, addr common.Address, chainID int64) (*big.Int, error) {
	ec, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return ec.BalanceAt(ctx, addr, nil)
}

// GetPendingNonce returns the next nonce for addr including pending txs.
func (c *Client) GetPendingNonce(ctx context.Context, addr common.Address, chainID int64) (uint64, error) {
	ec, err := c.dial(chainID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return ec.PendingNonceAt(ctx, addr)
}

// CurrentBlock returns the latest block number.
func (c *Client) CurrentBlock(ctx context.Context, chainID int64) (uint64, error) {
	ec, err := c.dial(chainID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return ec.BlockNumber(ctx)
}

// FilterLogs runs a log filter query against the chain.
func (c *Client) FilterLogs(ctx context.Context, chainID int64, q ethereum.FilterQuery) ([]types.Log, error) {
	ec, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return ec.FilterLogs(ctx, q)
}

// CallView executes a read-only contract call at the latest block.
func (c *Client) CallView(ctx context.Context, chainID int64, to common.Address, data []byte) ([]byte, error) {
	ec, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// BroadcastSigned decodes and submits a raw signed transaction, returning
// its hash.
func (c *Client) BroadcastSigned(ctx context.Context, rawTx []byte, chainID int64) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, fmt.Errorf("decode raw tx: %w", err)
	}
	ec, err := c.dial(chainID)
	if err != nil {
		return common.Hash{}, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	if err := ec.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: %w", err)
	}
	return tx.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined or ctx expires.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, chainID int64) (*types.Receipt, error) {
	ec, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := ec.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// SendContractTx builds, signs, and submits a state-changing contract call
// with the server's key, then waits for the receipt.
func (c *Client) SendContractTx(ctx context.Context, chainID int64, to common.Address, calldata []byte) (*types.Receipt, error) {
	if c.signer == nil {
		return nil, errors.New("no signing key configured")
	}
	ec, err := c.dial(chainID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	from := c.signer.Address()
	nonce, err := ec.PendingNonceAt(callCtx, from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	head, err := ec.HeaderByNumber(callCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	tipCap, err := ec.SuggestGasTipCap(callCtx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	// feeCap = 2*baseFee + tip leaves headroom for base fee growth while
	// the tx is pending.
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gasLimit, err := ec.EstimateGas(callCtx, ethereum.CallMsg{From: from, To: &to, Data: calldata})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Data:      calldata,
	})
	signed, err := c.signer.SignTx(tx, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if err := ec.SendTransaction(callCtx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	c.log.Info("contract tx sent",
		zap.Int64("chainId", chainID),
		zap.String("to", to.Hex()),
		zap.String("txHash", signed.Hash().Hex()))

	return c.WaitForReceipt(ctx, signed.Hash(), chainID)
}

// ValidateConnectivity checks each configured chain by asking it for its
// chain id and verifying it matches the configuration.
func (c *Client) ValidateConnectivity(ctx context.Context) map[int64]bool {
	out := make(map[int64]bool, len(c.rpcURLs))
	for id := range c.rpcURLs {
		out[id] = c.checkChain(ctx, id)
	}
	return out
}

func (c *Client) checkChain(ctx context.Context, chainID int64) bool {
	ec, err := c.dial(chainID)
	if err != nil {
		c.log.Warn("chain unreachable", zap.Int64("chainId", chainID), zap.Error(err))
		return false
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	reported, err := ec.ChainID(ctx)
	if err != nil {
		c.log.Warn("chain id query failed", zap.Int64("chainId", chainID), zap.Error(err))
		return false
	}
	if reported.Int64() != chainID {
		c.log.Warn("rpc endpoint reports wrong chain",
			zap.Int64("configured", chainID),
			zap.Int64("reported", reported.Int64()))
		return false
	}
	return true
}

// Close releases all dialed connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ec := range c.clients {
		ec.Close()
		delete(c.clients, id)
	}
}
