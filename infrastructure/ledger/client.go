// Package ledger talks to an EVM node: operator approval reads and writes,
// the bundle marketplace listing, and receipt-based finality tracking.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"artion-backend/application/ports"
)

// Backend is the node surface the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	ReceiptSource
}

// Settings configures a ledger client
type Settings struct {
	RPCURL                string
	ChainID               int64
	PrivateKey            string
	MarketplaceAddress    string
	FinalityConfirmations uint64
	FinalityTimeout       time.Duration
	ReceiptPollInterval   time.Duration
}

// Client implements ports.Ledger against an EVM node with a local signing key.
type Client struct {
	backend     Backend
	key         *ecdsa.PrivateKey
	chainID     *big.Int
	from        common.Address
	marketplace common.Address
	waiter      *FinalityWaiter
	guard       *outstandingGuard
	logger      *zap.Logger

	// submitMu serializes nonce assignment and broadcast
	submitMu  sync.Mutex
	nextNonce *uint64
}

var _ ports.Ledger = (*Client)(nil)

// Dial connects to the node at settings.RPCURL and builds a client.
func Dial(ctx context.Context, settings Settings, logger *zap.Logger) (*Client, *ethclient.Client, error) {
	rpc, err := ethclient.DialContext(ctx, settings.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to node: %w", err)
	}

	key, err := ParsePrivateKey(settings.PrivateKey)
	if err != nil {
		rpc.Close()
		return nil, nil, err
	}

	client, err := NewClient(rpc, key, big.NewInt(settings.ChainID), common.HexToAddress(settings.MarketplaceAddress),
		NewFinalityWaiter(rpc, settings.FinalityConfirmations, settings.FinalityTimeout, settings.ReceiptPollInterval, logger),
		logger)
	if err != nil {
		rpc.Close()
		return nil, nil, err
	}
	return client, rpc, nil
}

// NewClient creates a ledger client over an existing backend.
func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, marketplace common.Address, waiter *FinalityWaiter, logger *zap.Logger) (*Client, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	if marketplace == (common.Address{}) {
		return nil, errors.New("marketplace address is required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	return &Client{
		backend:     backend,
		key:         key,
		chainID:     chainID,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		marketplace: marketplace,
		waiter:      waiter,
		guard:       newOutstandingGuard(),
		logger:      logger,
	}, nil
}

// ParsePrivateKey decodes a hex key with or without a 0x prefix
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	return key, nil
}

// Account returns the signer address
func (c *Client) Account(ctx context.Context) (common.Address, error) {
	return c.from, nil
}

// IsApprovedForAll reads operator approval from an ERC-721 or ERC-1155 contract.
func (c *Client) IsApprovedForAll(ctx context.Context, contract, owner, operator common.Address) (bool, error) {
	bound := bind.NewBoundContract(contract, approvalABI, c.backend, c.backend, c.backend)

	var out []interface{}
	err := bound.Call(&bind.CallOpts{Context: ctx, From: owner}, &out, methodIsApprovedForAll, owner, operator)
	if err != nil {
		return false, fmt.Errorf("isApprovedForAll on %s: %w", contract.Hex(), err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("isApprovedForAll on %s: unexpected result count %d", contract.Hex(), len(out))
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// SetApprovalForAll submits an operator approval transaction
func (c *Client) SetApprovalForAll(ctx context.Context, contract, operator common.Address, approved bool) (ports.TxHandle, error) {
	data, err := approvalABI.Pack(methodSetApprovalForAll, operator, approved)
	if err != nil {
		return ports.TxHandle{}, fmt.Errorf("failed to encode setApprovalForAll: %w", err)
	}
	return c.submit(ctx, contract, approvalABI, data, methodSetApprovalForAll)
}

// ListBundle submits the marketplace listing transaction
func (c *Client) ListBundle(ctx context.Context, params ports.ListBundleParams) (ports.TxHandle, error) {
	data, err := EncodeListItem(params)
	if err != nil {
		return ports.TxHandle{}, fmt.Errorf("failed to encode listItem: %w", err)
	}
	return c.submit(ctx, c.marketplace, marketplaceABI, data, methodListItem)
}

// WaitForFinality blocks until tx is final and frees its contract for the
// next submission.
func (c *Client) WaitForFinality(ctx context.Context, tx ports.TxHandle) error {
	defer c.guard.release(tx.Contract, tx.Hash)

	receipt, err := c.waiter.Wait(ctx, tx.Hash)
	if err != nil {
		return err
	}
	c.logger.Info("Transaction final",
		zap.String("tx_hash", tx.Hash.Hex()),
		zap.String("contract", tx.Contract.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed))
	return nil
}

func (c *Client) submit(ctx context.Context, contract common.Address, contractABI abi.ABI, data []byte, method string) (ports.TxHandle, error) {
	if err := c.guard.reserve(contract); err != nil {
		return ports.TxHandle{}, fmt.Errorf("%s on %s: %w", method, contract.Hex(), err)
	}

	tx, err := c.broadcast(ctx, contract, contractABI, data)
	if err != nil {
		c.guard.release(contract, common.Hash{})
		return ports.TxHandle{}, fmt.Errorf("%s on %s: %w", method, contract.Hex(), classifySendError(err))
	}
	c.guard.bind(contract, tx.Hash())

	c.logger.Info("Transaction submitted",
		zap.String("method", method),
		zap.String("contract", contract.Hex()),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	return ports.TxHandle{Hash: tx.Hash(), Contract: contract, Nonce: tx.Nonce()}, nil
}

func (c *Client) broadcast(ctx context.Context, contract common.Address, contractABI abi.ABI, data []byte) (*types.Transaction, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	if c.nextNonce == nil {
		pending, err := c.backend.PendingNonceAt(ctx, c.from)
		if err != nil {
			return nil, fmt.Errorf("failed to read nonce: %w", err)
		}
		c.nextNonce = &pending
	}
	opts.Nonce = new(big.Int).SetUint64(*c.nextNonce)

	bound := bind.NewBoundContract(contract, contractABI, c.backend, c.backend, c.backend)
	tx, err := bound.RawTransact(opts, data)
	if err != nil {
		// Re-read the nonce from the node on the next submission.
		c.nextNonce = nil
		return nil, err
	}
	next := tx.Nonce() + 1
	c.nextNonce = &next
	return tx, nil
}

// classifySendError maps node refusals caused by contract execution to
// ports.ErrTxRejected.
func classifySendError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %v", ports.ErrTxRejected, err)
	}
	return err
}
