package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSigner string

func (s fakeSigner) Address() string { return string(s) }

const deployerAddr = "0x00000000000000000000000000000000000000d1"

type waitCall struct {
	TxHash string
	N      uint64
}

// fakeChain hands out sequential addresses and confirms everything at block
// 100 + submission index unless told otherwise.
type fakeChain struct {
	mu       sync.Mutex
	chainID  uint64
	deployed []DeployRequest
	waits    []waitCall
	failOn   map[string]error
	waitErr  map[string]error
	onDeploy func(req DeployRequest)
	onWait   func(txHash string)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID: 31337,
		failOn:  make(map[string]error),
		waitErr: make(map[string]error),
	}
}

func txHashFor(n int) string { return fmt.Sprintf("0x%064x", n) }

func addressFor(n int) string { return fmt.Sprintf("0x%040x", n) }

func (c *fakeChain) ChainID(context.Context) (uint64, error) { return c.chainID, nil }

func (c *fakeChain) Signer(context.Context) (Signer, error) { return fakeSigner(deployerAddr), nil }

func (c *fakeChain) DeployContract(_ context.Context, req DeployRequest, _ Signer) (*Submission, error) {
	if c.onDeploy != nil {
		c.onDeploy(req)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failOn[req.Unit]; err != nil {
		return nil, err
	}
	c.deployed = append(c.deployed, req)
	n := len(c.deployed)
	return &Submission{Address: addressFor(n), TxHash: txHashFor(n), Nonce: uint64(n - 1)}, nil
}

func (c *fakeChain) WaitConfirmations(ctx context.Context, txHash string, n uint64) (uint64, error) {
	if c.onWait != nil {
		c.onWait(txHash)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, waitCall{TxHash: txHash, N: n})
	if err := c.waitErr[txHash]; err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var idx int
	_, _ = fmt.Sscanf(txHash, "0x%x", &idx)
	return 100 + uint64(idx), nil
}

func (c *fakeChain) TransactionStatus(_ context.Context, txHash string) (*TxStatus, error) {
	return &TxStatus{Found: true, Mined: true, Success: true, BlockNumber: 100, Confirmations: 12}, nil
}

func (c *fakeChain) deployedUnits() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.deployed))
	for i, req := range c.deployed {
		names[i] = req.Unit
	}
	return names
}

// fakeArtifacts encodes arguments with fmt so tests can read them back
type fakeArtifacts struct {
	missing   map[string]bool
	encodeErr map[string]error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{missing: make(map[string]bool), encodeErr: make(map[string]error)}
}

func (a *fakeArtifacts) Artifact(_ context.Context, contract string) (*domain.Artifact, error) {
	if a.missing[contract] {
		return nil, fmt.Errorf("contract %s: %w", contract, domain.ErrNotFound)
	}
	return &domain.Artifact{
		Name:              contract,
		SourceName:        "contracts/" + contract + ".sol",
		Bytecode:          []byte{0x60, 0x80, 0x60, 0x40},
		CompilerVersion:   "v0.8.4+commit.c7e474f2",
		StandardJSONInput: []byte(`{"language":"Solidity"}`),
	}, nil
}

func (a *fakeArtifacts) EncodeConstructorArgs(artifact *domain.Artifact, args []any) ([]byte, error) {
	if err := a.encodeErr[artifact.Name]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprint(args...)), nil
}

// memStore keeps JSON snapshots of every save
type memStore struct {
	mu        sync.Mutex
	manifests map[string][]byte
	saves     int
	locked    map[string]bool
	reports   []*domain.VerificationReport
}

func newMemStore() *memStore {
	return &memStore{manifests: make(map[string][]byte), locked: make(map[string]bool)}
}

func (s *memStore) Load(_ context.Context, network string) (*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.manifests[network]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *memStore) Save(_ context.Context, m *domain.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[m.Network] = data
	s.saves++
	return nil
}

func (s *memStore) Lock(_ context.Context, network string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[network] {
		return nil, domain.ErrManifestLocked
	}
	s.locked[network] = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locked, network)
		return nil
	}, nil
}

func (s *memStore) SaveReport(_ context.Context, r *domain.VerificationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *memStore) Path(network string) string { return "deployments/" + network + ".json" }

// stored returns the last saved manifest
func (s *memStore) stored(network string) *domain.Manifest {
	m, err := s.Load(context.Background(), network)
	if err != nil {
		return nil
	}
	return m
}

type explorerReply struct {
	resp *ExplorerResponse
	err  error
}

// fakeExplorer replays scripted answers per address (submissions) and per
// guid (status checks). The last answer repeats once a script runs out.
type fakeExplorer struct {
	mu          sync.Mutex
	verified    map[string]bool
	submits     map[string][]explorerReply
	checks      map[string][]explorerReply
	submitCalls map[string]int
	checkCalls  map[string]int
	requests    []VerificationRequest
	isVerifiedN int
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{
		verified:    make(map[string]bool),
		submits:     make(map[string][]explorerReply),
		checks:      make(map[string][]explorerReply),
		submitCalls: make(map[string]int),
		checkCalls:  make(map[string]int),
	}
}

func next(script []explorerReply, call int) explorerReply {
	if len(script) == 0 {
		return explorerReply{resp: &ExplorerResponse{Outcome: OutcomeVerified}}
	}
	if call >= len(script) {
		return script[len(script)-1]
	}
	return script[call]
}

func (e *fakeExplorer) IsVerified(_ context.Context, address string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isVerifiedN++
	return e.verified[address], nil
}

func (e *fakeExplorer) Submit(_ context.Context, req VerificationRequest) (*ExplorerResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	reply := next(e.submits[req.Address], e.submitCalls[req.Address])
	e.submitCalls[req.Address]++
	if reply.resp != nil && reply.resp.Outcome == OutcomeVerified {
		e.verified[req.Address] = true
	}
	return reply.resp, reply.err
}

func (e *fakeExplorer) CheckStatus(_ context.Context, guid string) (*ExplorerResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	reply := next(e.checks[guid], e.checkCalls[guid])
	e.checkCalls[guid]++
	return reply.resp, reply.err
}

func (e *fakeExplorer) totalSubmissions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for _, n := range e.submitCalls {
		total += n
	}
	return total
}

// recordingMetrics counts observations
type recordingMetrics struct {
	mu            sync.Mutex
	deployments   map[string]int
	verifications map[domain.VerificationStatus]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		deployments:   make(map[string]int),
		verifications: make(map[domain.VerificationStatus]int),
	}
}

func (m *recordingMetrics) ObserveDeployment(_ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[outcome]++
}

func (m *recordingMetrics) ObserveVerification(_ string, status domain.VerificationStatus, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[status]++
}

func (m *recordingMetrics) Flush() error { return nil }
