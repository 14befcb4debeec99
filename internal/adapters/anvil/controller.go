package anvil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// methodNotFound is the JSON-RPC code nodes answer unknown methods with
const methodNotFound = -32601

// Controller mutates development node state over JSON-RPC. It speaks the
// anvil_ or hardhat_ namespace, detected from web3_clientVersion unless the
// network configures one.
type Controller struct {
	network *config.Network
	log     *slog.Logger

	mu      sync.Mutex
	client  *rpc.Client
	dialect config.Dialect
}

// NewController creates a controller for the resolved network
func NewController(cfg *config.RuntimeConfig, log *slog.Logger) *Controller {
	c := &Controller{network: cfg.Network, log: log.With("component", "devnet")}
	if cfg.Network != nil {
		c.dialect = cfg.Network.Dialect
	}
	return c
}

func (c *Controller) connect(ctx context.Context) (*rpc.Client, config.Dialect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		if c.network == nil || c.network.RPCURL == "" {
			return nil, "", fmt.Errorf("no RPC endpoint configured: %w", domain.ErrRPCUnavailable)
		}
		client, err := rpc.DialContext(ctx, c.network.RPCURL)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", domain.ErrRPCUnavailable, err)
		}
		c.client = client
	}

	if c.dialect == "" {
		var version string
		if err := c.client.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
			return nil, "", fmt.Errorf("failed to identify node: %w: %w", domain.ErrRPCUnavailable, err)
		}
		c.dialect = config.DialectAnvil
		if strings.Contains(strings.ToLower(version), "hardhat") {
			c.dialect = config.DialectHardhat
		}
		c.log.Debug("detected node", "client", version, "dialect", c.dialect)
	}
	return c.client, c.dialect, nil
}

// Close releases the RPC connection
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// call invokes a raw method name
func (c *Controller) call(ctx context.Context, result any, method string, args ...any) error {
	client, _, err := c.connect(ctx)
	if err != nil {
		return err
	}
	c.log.Debug("rpc", "method", method)
	return mapError(method, client.CallContext(ctx, result, method, args...))
}

// callNamespaced invokes name under the node's dialect prefix
func (c *Controller) callNamespaced(ctx context.Context, result any, name string, args ...any) error {
	_, dialect, err := c.connect(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, result, dialect.Method(name), args...)
}

func mapError(method string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFound {
		return fmt.Errorf("%s: %w", method, domain.ErrStateMutationUnsupported)
	}
	return fmt.Errorf("%s: %w", method, err)
}

type forking struct {
	JSONRPCURL  string `json:"jsonRpcUrl"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// ForkAt resets the node to a fork of sourceURL. Block zero means latest.
func (c *Controller) ForkAt(ctx context.Context, sourceURL string, blockNumber uint64) error {
	if sourceURL == "" {
		return fmt.Errorf("fork source URL is required")
	}
	params := map[string]any{"forking": forking{JSONRPCURL: sourceURL, BlockNumber: blockNumber}}
	return c.callNamespaced(ctx, nil, "reset", params)
}

// SetNextBlockTimestamp sets the timestamp of the next mined block. It must
// be later than the current head.
func (c *Controller) SetNextBlockTimestamp(ctx context.Context, timestamp uint64) error {
	var head struct {
		Timestamp hexutil.Uint64 `json:"timestamp"`
	}
	if err := c.call(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return err
	}
	if timestamp <= uint64(head.Timestamp) {
		return &domain.InvalidTimestampError{Requested: timestamp, Head: uint64(head.Timestamp)}
	}
	return c.call(ctx, nil, "evm_setNextBlockTimestamp", timestamp)
}

// Impersonate lets the node accept unsigned transactions from address
func (c *Controller) Impersonate(ctx context.Context, address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	return c.callNamespaced(ctx, nil, "impersonateAccount", addr)
}

func (c *Controller) StopImpersonating(ctx context.Context, address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	return c.callNamespaced(ctx, nil, "stopImpersonatingAccount", addr)
}

// Mine mines blocks immediately
func (c *Controller) Mine(ctx context.Context, blocks uint64) error {
	return c.callNamespaced(ctx, nil, "mine", hexutil.Uint64(blocks))
}

func (c *Controller) SetBalance(ctx context.Context, address string, wei *big.Int) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	return c.callNamespaced(ctx, nil, "setBalance", addr, (*hexutil.Big)(wei))
}

var _ usecase.NetworkStateController = (*Controller)(nil)

// parseAddress rejects input HexToAddress would silently zero or truncate.
func parseAddress(address string) (common.Address, error) {
	if !domain.IsValidAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address %q", address)
	}
	return common.HexToAddress(address), nil
}
