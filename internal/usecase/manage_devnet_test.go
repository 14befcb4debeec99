package usecase

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

type recordingController struct {
	calls []string
	err   error
}

func (c *recordingController) record(call string) error {
	c.calls = append(c.calls, call)
	return c.err
}

func (c *recordingController) ForkAt(_ context.Context, _ string, _ uint64) error {
	return c.record("fork")
}

func (c *recordingController) SetNextBlockTimestamp(context.Context, uint64) error {
	return c.record("timestamp")
}

func (c *recordingController) Impersonate(context.Context, string) error {
	return c.record("impersonate")
}

func (c *recordingController) StopImpersonating(context.Context, string) error {
	return c.record("stop")
}

func (c *recordingController) Mine(context.Context, uint64) error { return c.record("mine") }

func (c *recordingController) SetBalance(context.Context, string, *big.Int) error {
	return c.record("balance")
}

func devnetConfig(rpcURL string, chainID uint64) *config.RuntimeConfig {
	return &config.RuntimeConfig{Network: &config.Network{Name: "local", RPCURL: rpcURL, ChainID: chainID}}
}

func TestManageDevnet_ImpersonateAndFund(t *testing.T) {
	controller := &recordingController{}
	uc := NewManageDevnet(devnetConfig("http://127.0.0.1:8545", 31337), controller, nil, NopProgress{})

	result, err := uc.Execute(context.Background(), ManageDevnetParams{
		Operation: DevnetImpersonate,
		Address:   recipientA,
		Balance:   big.NewInt(1e18),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"impersonate", "balance"}, controller.calls)
	assert.Contains(t, result.Message, recipientA)
}

func TestManageDevnet_RefusesLiveNetwork(t *testing.T) {
	controller := &recordingController{}
	uc := NewManageDevnet(devnetConfig("https://mainnet.infura.io/v3/key", 1), controller, nil, NopProgress{})

	_, err := uc.Execute(context.Background(), ManageDevnetParams{Operation: DevnetMine})
	assert.ErrorIs(t, err, domain.ErrStateMutationUnsupported)
	assert.Empty(t, controller.calls)
}

func TestManageDevnet_ForkRedactsSource(t *testing.T) {
	controller := &recordingController{}
	uc := NewManageDevnet(devnetConfig("http://localhost:8545", 31337), controller, nil, NopProgress{})

	result, err := uc.Execute(context.Background(), ManageDevnetParams{
		Operation: DevnetFork,
		SourceURL: "https://mainnet.infura.io/v3/secret",
		Block:     13_000_000,
	})
	require.NoError(t, err)
	assert.NotContains(t, result.Message, "secret")
	assert.Contains(t, result.Message, "13000000")
}

func TestManageDevnet_PropagatesControllerError(t *testing.T) {
	controller := &recordingController{err: &domain.InvalidTimestampError{Requested: 10, Head: 20}}
	uc := NewManageDevnet(devnetConfig("http://localhost:8545", 31337), controller, nil, NopProgress{})

	_, err := uc.Execute(context.Background(), ManageDevnetParams{Operation: DevnetTimestamp, Timestamp: 10})
	var tsErr *domain.InvalidTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, uint64(20), tsErr.Head)
}

func TestManageDevnet_InvalidAddress(t *testing.T) {
	uc := NewManageDevnet(devnetConfig("http://localhost:8545", 31337), &recordingController{}, nil, NopProgress{})

	_, err := uc.Execute(context.Background(), ManageDevnetParams{Operation: DevnetImpersonate, Address: "0xnope"})
	assert.Error(t, err)
}

type fakeNode struct {
	closed bool
	done   chan error
}

func (n *fakeNode) RPCURL() string { return "http://127.0.0.1:9545" }
func (n *fakeNode) Wait() error    { return <-n.done }
func (n *fakeNode) Close() error {
	n.closed = true
	return nil
}

type fakeLauncher struct{ node *fakeNode }

func (l *fakeLauncher) Launch(context.Context, NodeOptions) (RunningNode, error) { return l.node, nil }

func TestManageDevnet_RunNodeStopsOnCancel(t *testing.T) {
	node := &fakeNode{done: make(chan error)}
	uc := NewManageDevnet(devnetConfig("http://localhost:8545", 31337), nil, &fakeLauncher{node: node}, NopProgress{})

	ctx, cancel := context.WithCancel(context.Background())
	var url string
	err := uc.RunNode(ctx, NodeOptions{}, func(rpcURL string) {
		url = rpcURL
		cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9545", url)
	assert.True(t, node.closed)
}
