package blockchain

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
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// DefaultPollInterval is how often receipts are polled while waiting
const DefaultPollInterval = 2 * time.Second

// Client implements usecase.ChainClient on top of ethclient. It dials lazily
// so commands that never touch the chain work offline.
type Client struct {
	network      *config.Network
	log          *slog.Logger
	PollInterval time.Duration

	mu      sync.Mutex
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID uint64
	signer  usecase.Signer
}

// NewClient creates a chain client for the resolved network
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	return &Client{
		network:      cfg.Network,
		log:          log.With("component", "chain"),
		PollInterval: DefaultPollInterval,
	}
}

// connect dials the RPC endpoint and checks it serves the configured chain
func (c *Client) connect(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		return c.eth, nil
	}
	if c.network == nil || c.network.RPCURL == "" {
		return nil, fmt.Errorf("no RPC endpoint configured: %w", domain.ErrRPCUnavailable)
	}

	rpcClient, err := rpc.DialContext(ctx, c.network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w: %w", c.network.Name, domain.ErrRPCUnavailable, err)
	}
	eth := ethclient.NewClient(rpcClient)

	networkChainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to get chain ID from %s: %w: %w", c.network.Name, domain.ErrRPCUnavailable, err)
	}

	// A zero chain id in config means trust the endpoint
	if c.network.ChainID != 0 && networkChainID.Uint64() != c.network.ChainID {
		rpcClient.Close()
		return nil, fmt.Errorf("%w: %s expects chain %d, endpoint serves %d",
			domain.ErrNetworkMismatch, c.network.Name, c.network.ChainID, networkChainID.Uint64())
	}

	c.rpc = rpcClient
	c.eth = eth
	c.chainID = networkChainID.Uint64()
	c.log.Debug("connected", "network", c.network.Name, "chainId", c.chainID)
	return eth, nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc, c.eth = nil, nil
	}
}

// ChainID returns the chain id reported by the endpoint
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	if _, err := c.connect(ctx); err != nil {
		return 0, err
	}
	return c.chainID, nil
}

// Signer returns the configured deployer account. A private key wins over
// an impersonated address; local nodes fall back to their first unlocked account.
func (c *Client) Signer(ctx context.Context) (usecase.Signer, error) {
	if _, err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signer != nil {
		return c.signer, nil
	}

	signer, err := c.resolveSigner(ctx)
	if err != nil {
		return nil, err
	}
	c.signer = signer
	return signer, nil
}

func (c *Client) resolveSigner(ctx context.Context) (usecase.Signer, error) {
	switch {
	case c.network.PrivateKey != "":
		return NewKeySigner(c.network.PrivateKey)

	case c.network.Impersonate != "":
		signer, err := NewNodeSigner(c.network.Impersonate)
		if err != nil {
			return nil, err
		}
		method := c.network.Dialect.Method("impersonateAccount")
		if err := c.rpc.CallContext(ctx, nil, method, signer.address); err != nil {
			return nil, fmt.Errorf("impersonating %s: %w: %w", signer.Address(), domain.ErrStateMutationUnsupported, err)
		}
		return signer, nil

	case c.network.IsLocal():
		var accounts []common.Address
		if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
			return nil, fmt.Errorf("listing node accounts: %w", err)
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("node on %s has no unlocked accounts", c.network.Name)
		}
		return &NodeSigner{address: accounts[0]}, nil
	}

	return nil, fmt.Errorf("no deployer configured for network %s: set private_key or impersonate", c.network.Name)
}

// DeployContract sends a contract creation transaction without waiting for it
func (c *Client) DeployContract(ctx context.Context, req usecase.DeployRequest, signer usecase.Signer) (*usecase.Submission, error) {
	eth, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, len(req.Bytecode)+len(req.ConstructorArgs))
	data = append(data, req.Bytecode...)
	data = append(data, req.ConstructorArgs...)

	switch s := signer.(type) {
	case *KeySigner:
		return c.deployWithKey(ctx, eth, s, data)
	case *NodeSigner:
		return c.deployThroughNode(ctx, eth, s, data)
	default:
		return nil, fmt.Errorf("unsupported signer %T", signer)
	}
}

func (c *Client) deployWithKey(ctx context.Context, eth *ethclient.Client, s *KeySigner, data []byte) (*usecase.Submission, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, new(big.Int).SetUint64(c.chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	if c.network.GasPrice != nil {
		opts.GasPrice = new(big.Int).Set(c.network.GasPrice)
	}

	// An empty ABI packs nothing, data already carries the encoded arguments
	address, tx, _, err := bind.DeployContract(opts, abi.ABI{}, data, eth)
	if err != nil {
		return nil, fmt.Errorf("failed to send deployment: %w", err)
	}

	return &usecase.Submission{
		Address: address.Hex(),
		TxHash:  tx.Hash().Hex(),
		Nonce:   tx.Nonce(),
	}, nil
}

type sendTxArgs struct {
	From     common.Address `json:"from"`
	Data     hexutil.Bytes  `json:"data"`
	GasPrice *hexutil.Big   `json:"gasPrice,omitempty"`
}

func (c *Client) deployThroughNode(ctx context.Context, eth *ethclient.Client, s *NodeSigner, data []byte) (*usecase.Submission, error) {
	nonce, err := eth.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", s.Address(), err)
	}

	args := sendTxArgs{From: s.address, Data: data}
	if c.network.GasPrice != nil {
		args.GasPrice = (*hexutil.Big)(c.network.GasPrice)
	}

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return nil, fmt.Errorf("failed to send deployment: %w", err)
	}

	return &usecase.Submission{
		Address: crypto.CreateAddress(s.address, nonce).Hex(),
		TxHash:  hash.Hex(),
		Nonce:   nonce,
	}, nil
}

// WaitConfirmations blocks until n blocks were mined on top of txHash
func (c *Client) WaitConfirmations(ctx context.Context, txHash string, n uint64) (uint64, error) {
	eth, err := c.connect(ctx)
	if err != nil {
		return 0, err
	}
	c.log.Debug("waiting for confirmations", "tx", txHash, "confirmations", n)
	return waitConfirmations(ctx, eth, txHash, n, c.PollInterval)
}

// TransactionStatus reports where a transaction stands without waiting
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (*usecase.TxStatus, error) {
	eth, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	hash := common.HexToHash(txHash)

	receipt, err := eth.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		_, pending, txErr := eth.TransactionByHash(ctx, hash)
		if errors.Is(txErr, ethereum.NotFound) {
			return &usecase.TxStatus{}, nil
		}
		if txErr != nil {
			return nil, fmt.Errorf("failed to get transaction: %w", txErr)
		}
		return &usecase.TxStatus{Found: true, Mined: !pending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	status := &usecase.TxStatus{
		Found:   true,
		Mined:   true,
		Success: receipt.Status == 1,
	}
	if receipt.BlockNumber != nil {
		status.BlockNumber = receipt.BlockNumber.Uint64()
		head, err := eth.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get block number: %w", err)
		}
		if head > status.BlockNumber {
			status.Confirmations = head - status.BlockNumber
		}
	}
	return status, nil
}

var _ usecase.ChainClient = (*Client)(nil)
