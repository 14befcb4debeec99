package usecase

import (
	"context"
	"math/big"
	"time"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

// Signer is an account able to send transactions on the active network
type Signer interface {
	Address() string
}

// DeployRequest is a contract creation: bytecode followed by the ABI-encoded
// constructor arguments.
type DeployRequest struct {
	Unit            string
	Contract        string
	Bytecode        []byte
	ConstructorArgs []byte
}

// Submission identifies a sent contract creation transaction
type Submission struct {
	Address string
	TxHash  string
	Nonce   uint64
}

// TxStatus is the on-chain state of a transaction
type TxStatus struct {
	Found         bool
	Mined         bool
	Success       bool
	BlockNumber   uint64
	Confirmations uint64
}

// ChainClient talks to the network deployments go to
type ChainClient interface {
	ChainID(ctx context.Context) (uint64, error)
	Signer(ctx context.Context) (Signer, error)
	DeployContract(ctx context.Context, req DeployRequest, signer Signer) (*Submission, error)
	// WaitConfirmations blocks until n blocks were mined on top of the block
	// including txHash and returns that block number.
	WaitConfirmations(ctx context.Context, txHash string, n uint64) (uint64, error)
	TransactionStatus(ctx context.Context, txHash string) (*TxStatus, error)
}

// ArtifactSource provides compiled contracts
type ArtifactSource interface {
	Artifact(ctx context.Context, contract string) (*domain.Artifact, error)
	// EncodeConstructorArgs converts plan values to the constructor's ABI types and packs them
	EncodeConstructorArgs(artifact *domain.Artifact, args []any) ([]byte, error)
}

// ExplorerOutcome classifies an explorer answer
type ExplorerOutcome string

const (
	OutcomeQueued          ExplorerOutcome = "queued"
	OutcomeVerified        ExplorerOutcome = "verified"
	OutcomeAlreadyVerified ExplorerOutcome = "already_verified"
	OutcomeRejected        ExplorerOutcome = "rejected"
	OutcomeNotIndexed      ExplorerOutcome = "not_indexed"
)

// IsTransient reports whether asking again later may change the answer
func (o ExplorerOutcome) IsTransient() bool {
	return o == OutcomeQueued || o == OutcomeNotIndexed
}

// ExplorerResponse is the explorer's answer to a submission or status check
type ExplorerResponse struct {
	Outcome ExplorerOutcome
	GUID    string
	Reason  string
}

// VerificationRequest carries everything the explorer needs to rebuild a contract
type VerificationRequest struct {
	Address           string
	ContractName      string // fully qualified, source:Name
	CompilerVersion   string
	StandardJSONInput []byte
	// ConstructorArgs is the hex encoding without 0x prefix
	ConstructorArgs string
}

// ExplorerClient submits source verification to a block explorer.
// Errors wrapping domain.ErrExplorerUnavailable are transient.
type ExplorerClient interface {
	IsVerified(ctx context.Context, address string) (bool, error)
	Submit(ctx context.Context, req VerificationRequest) (*ExplorerResponse, error)
	CheckStatus(ctx context.Context, guid string) (*ExplorerResponse, error)
}

// ManifestStore persists manifests and verification reports per network
type ManifestStore interface {
	// Load returns domain.ErrNotFound when no manifest exists for network
	Load(ctx context.Context, network string) (*domain.Manifest, error)
	Save(ctx context.Context, manifest *domain.Manifest) error
	// Lock takes the exclusive run lock, failing with domain.ErrManifestLocked
	Lock(ctx context.Context, network string) (unlock func() error, err error)
	SaveReport(ctx context.Context, report *domain.VerificationReport) error
	Path(network string) string
}

// PlanLoader reads deployment plans
type PlanLoader interface {
	Load(ctx context.Context, path string) (*domain.Plan, error)
}

// NetworkStateController mutates the state of a development node. Each call
// returns once the node acknowledged it.
type NetworkStateController interface {
	ForkAt(ctx context.Context, sourceURL string, blockNumber uint64) error
	SetNextBlockTimestamp(ctx context.Context, timestamp uint64) error
	Impersonate(ctx context.Context, address string) error
	StopImpersonating(ctx context.Context, address string) error
	Mine(ctx context.Context, blocks uint64) error
	SetBalance(ctx context.Context, address string, wei *big.Int) error
}

// NodeOptions configures a local development node
type NodeOptions struct {
	Port     int
	ChainID  uint64
	ForkURL  string
	ForkAt   uint64
	LogLevel string
}

// RunningNode is a started development node
type RunningNode interface {
	RPCURL() string
	Wait() error
	Close() error
}

// NodeLauncher starts local development nodes
type NodeLauncher interface {
	Launch(ctx context.Context, opts NodeOptions) (RunningNode, error)
}

// NetworkResolver resolves configured networks
type NetworkResolver interface {
	GetNetworks(ctx context.Context) []string
	ResolveNetwork(ctx context.Context, name string) (*config.Network, error)
}

// InteractiveSelector asks the operator to confirm or choose
type InteractiveSelector interface {
	Confirm(label string) (bool, error)
	SelectUnit(units []string, label string) (string, error)
}

// MetricsRecorder records run outcomes
type MetricsRecorder interface {
	ObserveDeployment(unit, outcome string, elapsed time.Duration)
	ObserveVerification(unit string, status domain.VerificationStatus, attempts int)
	Flush() error
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) ObserveDeployment(string, string, time.Duration)            {}
func (NopMetrics) ObserveVerification(string, domain.VerificationStatus, int) {}
func (NopMetrics) Flush() error                                               { return nil }

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Unit     string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}
