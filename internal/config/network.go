package config

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sahilm/fuzzy"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

const (
	// LocalNetwork is always available, pointing at a node on the default port
	LocalNetwork    = "local"
	LocalRPCURL     = "http://127.0.0.1:8545"
	LocalChainID    = 31337
	etherscanV2API  = "https://api.etherscan.io/v2/api"
	chainIDCacheTTL = 24 * time.Hour
)

// wellKnownChainIDs fills in chain ids for networks named after public chains
var wellKnownChainIDs = map[string]uint64{
	"mainnet":          1,
	"ethereum":         1,
	"sepolia":          11155111,
	"holesky":          17000,
	"hoodi":            560048,
	"optimism":         10,
	"optimism-sepolia": 11155420,
	"base":             8453,
	"base-sepolia":     84532,
	"arbitrum":         42161,
	"arbitrum-sepolia": 421614,
	"polygon":          137,
	"gnosis":           100,
	"bsc":              56,
	"celo":             42220,
	"local":            LocalChainID,
	"anvil":            LocalChainID,
	"hardhat":          LocalChainID,
}

// explorerURLs are the browser explorers of chains the Etherscan v2 API serves
var explorerURLs = map[uint64]string{
	1:        "https://etherscan.io",
	11155111: "https://sepolia.etherscan.io",
	17000:    "https://holesky.etherscan.io",
	560048:   "https://hoodi.etherscan.io",
	10:       "https://optimistic.etherscan.io",
	11155420: "https://sepolia-optimism.etherscan.io",
	8453:     "https://basescan.org",
	84532:    "https://sepolia.basescan.org",
	42161:    "https://arbiscan.io",
	421614:   "https://sepolia.arbiscan.io",
	137:      "https://polygonscan.com",
	100:      "https://gnosisscan.io",
	56:       "https://bscscan.com",
	42220:    "https://celoscan.io",
}

// NetworkResolver resolves network names from tulip.toml into runtime
// network configurations
type NetworkResolver struct {
	networks  map[string]config.NetworkConfig
	cachePath string

	mu    sync.Mutex
	cache *chainIDCache
}

type chainIDCache struct {
	RPCs      map[string]uint64 `json:"rpcs"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewNetworkResolver creates a resolver over the project's networks. The
// local network is added unless the project defines one.
func NewNetworkResolver(dataDir string, project *config.ProjectConfig) *NetworkResolver {
	networks := make(map[string]config.NetworkConfig)
	if project != nil {
		for name, n := range project.Networks {
			networks[name] = n
		}
	}
	if _, ok := networks[LocalNetwork]; !ok {
		networks[LocalNetwork] = config.NetworkConfig{RPCURL: LocalRPCURL, ChainID: LocalChainID}
	}

	r := &NetworkResolver{networks: networks}
	if dataDir != "" {
		r.cachePath = filepath.Join(dataDir, "chain-ids.json")
	}
	return r
}

// GetNetworks returns configured network names, sorted
func (r *NetworkResolver) GetNetworks(_ context.Context) []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a network from configuration alone
func (r *NetworkResolver) Lookup(name string) (*config.Network, error) {
	raw, ok := r.networks[name]
	if !ok {
		msg := fmt.Sprintf("unknown network %q", name)
		if suggestion := r.suggest(name); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		return nil, fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return buildNetwork(name, raw)
}

// ResolveNetwork resolves a network and, when its chain id is not configured,
// asks the endpoint. Answers are cached in the data directory.
func (r *NetworkResolver) ResolveNetwork(ctx context.Context, name string) (*config.Network, error) {
	network, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if network.ChainID != 0 {
		return network, nil
	}

	chainID, err := r.chainID(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id for network %s: %w", name, err)
	}
	network.ChainID = chainID
	applyExplorerDefaults(network)
	return network, nil
}

func (r *NetworkResolver) suggest(name string) string {
	matches := fuzzy.Find(name, r.GetNetworks(context.Background()))
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func (r *NetworkResolver) chainID(ctx context.Context, rpcURL string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loadCache()
	if id, ok := r.cache.RPCs[rpcURL]; ok && time.Since(r.cache.UpdatedAt) < chainIDCacheTTL {
		return id, nil
	}

	id, err := fetchChainID(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	r.cache.RPCs[rpcURL] = id
	r.cache.UpdatedAt = time.Now()
	// the cache only saves round trips
	_ = r.saveCache()
	return id, nil
}

func fetchChainID(ctx context.Context, rpcURL string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrRPCUnavailable, err)
	}
	defer client.Close()

	var id hexutil.Uint64
	if err := client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrRPCUnavailable, err)
	}
	return uint64(id), nil
}

func (r *NetworkResolver) loadCache() {
	if r.cache != nil {
		return
	}
	r.cache = &chainIDCache{RPCs: make(map[string]uint64)}
	if r.cachePath == "" {
		return
	}
	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		return
	}
	var loaded chainIDCache
	if err := json.Unmarshal(data, &loaded); err == nil && loaded.RPCs != nil {
		r.cache = &loaded
	}
}

func (r *NetworkResolver) saveCache() error {
	if r.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.cachePath, data, 0o644)
}

// buildNetwork validates a configured network and fills defaults
func buildNetwork(name string, raw config.NetworkConfig) (*config.Network, error) {
	n := &config.Network{
		Name:           name,
		ChainID:        raw.ChainID,
		RPCURL:         strings.TrimSpace(raw.RPCURL),
		ExplorerURL:    raw.ExplorerURL,
		ExplorerAPIURL: raw.ExplorerAPIURL,
		ExplorerAPIKey: raw.ExplorerAPIKey,
		Confirmations:  raw.Confirmations,
		PrivateKey:     strings.TrimSpace(raw.PrivateKey),
		Impersonate:    strings.TrimSpace(raw.Impersonate),
	}

	if n.RPCURL == "" {
		n.RPCURL = os.Getenv(RPCEnvVarName(name))
	}
	if n.RPCURL == "" {
		return nil, fmt.Errorf("network %s has no rpc_url (set it in %s or export %s)", name, ProjectFile, RPCEnvVarName(name))
	}
	if n.ChainID == 0 {
		n.ChainID = wellKnownChainIDs[name]
	}
	if n.ExplorerAPIKey == "" {
		n.ExplorerAPIKey = os.Getenv("ETHERSCAN_API_KEY")
	}

	switch d := config.Dialect(strings.ToLower(raw.Dialect)); d {
	case "", config.DialectAnvil, config.DialectHardhat:
		n.Dialect = d
	default:
		return nil, fmt.Errorf("network %s: unknown dialect %q (use anvil or hardhat)", name, raw.Dialect)
	}

	if n.Impersonate != "" && !common.IsHexAddress(n.Impersonate) {
		return nil, fmt.Errorf("network %s: impersonate is not an address: %q", name, n.Impersonate)
	}

	if raw.GasPrice != "" {
		price, err := ParseGasPrice(raw.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		n.GasPrice = price
	}

	applyExplorerDefaults(n)
	return n, nil
}

// applyExplorerDefaults fills explorer endpoints for chains Etherscan serves
func applyExplorerDefaults(n *config.Network) {
	if n.IsLocal() {
		return
	}
	site, known := explorerURLs[n.ChainID]
	if n.ExplorerURL == "" && known {
		n.ExplorerURL = site
	}
	if n.ExplorerAPIURL == "" && known {
		n.ExplorerAPIURL = etherscanV2API
	}
}

// RPCEnvVarName is the variable consulted when a network has no rpc_url:
// sepolia -> SEPOLIA_RPC_URL, base-sepolia -> BASE_SEPOLIA_RPC_URL
func RPCEnvVarName(network string) string {
	name := strings.ToUpper(network)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return name + "_RPC_URL"
}

// ParseGasPrice parses a wei amount, or a decimal amount with a gwei suffix
func ParseGasPrice(s string) (*big.Int, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	unit := big.NewInt(1)
	switch {
	case strings.HasSuffix(raw, "gwei"):
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "gwei"))
		unit = big.NewInt(params.GWei)
	case strings.HasSuffix(raw, "wei"):
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "wei"))
	}

	amount, ok := new(big.Rat).SetString(raw)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid gas price %q", s)
	}
	amount.Mul(amount, new(big.Rat).SetInt(unit))
	if !amount.IsInt() {
		return nil, fmt.Errorf("invalid gas price %q: not a whole number of wei", s)
	}
	return new(big.Int).Set(amount.Num()), nil
}

var _ usecase.NetworkResolver = (*NetworkResolver)(nil)
