package anvil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

const (
	// DefaultBinary is looked up on PATH
	DefaultBinary = "anvil"

	stopTimeout  = 5 * time.Second
	readyTimeout = 15 * time.Second
	outputTail   = 4096
)

// Manager launches anvil processes and implements usecase.NodeLauncher
type Manager struct {
	Binary string
	log    *slog.Logger
}

// NewManager creates a launcher for the anvil binary on PATH
func NewManager(log *slog.Logger) *Manager {
	return &Manager{Binary: DefaultBinary, log: log.With("component", "anvil")}
}

// Available reports whether the binary can be found
func (m *Manager) Available() bool {
	_, err := exec.LookPath(m.Binary)
	return err == nil
}

// Launch starts anvil and returns once its RPC endpoint answers
func (m *Manager) Launch(ctx context.Context, opts usecase.NodeOptions) (usecase.RunningNode, error) {
	path, err := exec.LookPath(m.Binary)
	if err != nil {
		return nil, fmt.Errorf("%s not found on PATH (install foundry): %w", m.Binary, err)
	}
	if opts.Port == 0 {
		if opts.Port, err = freePort(); err != nil {
			return nil, err
		}
	}

	args := buildAnvilArgs(opts)
	m.log.Debug("starting node", "binary", path, "args", redactArgs(args))

	out := &tailBuffer{max: outputTail}
	cmd := exec.Command(path, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", m.Binary, err)
	}

	n := &node{
		cmd:    cmd,
		rpcURL: fmt.Sprintf("http://127.0.0.1:%d", opts.Port),
		done:   make(chan struct{}),
		output: out,
	}
	go func() {
		n.err = cmd.Wait()
		close(n.done)
	}()

	if err := waitForRPC(ctx, n.rpcURL, n.done, readyTimeout); err != nil {
		_ = n.Close()
		return nil, fmt.Errorf("%s did not become ready: %w\n%s", m.Binary, err, out.String())
	}
	m.log.Debug("node ready", "rpc", n.rpcURL, "pid", cmd.Process.Pid)
	return n, nil
}

// buildAnvilArgs turns options into anvil flags
func buildAnvilArgs(opts usecase.NodeOptions) []string {
	args := []string{"--port", strconv.Itoa(opts.Port), "--host", "127.0.0.1"}
	if opts.ChainID != 0 {
		args = append(args, "--chain-id", strconv.FormatUint(opts.ChainID, 10))
	}
	if opts.ForkURL != "" {
		args = append(args, "--fork-url", opts.ForkURL)
		if opts.ForkAt != 0 {
			args = append(args, "--fork-block-number", strconv.FormatUint(opts.ForkAt, 10))
		}
	}
	if opts.LogLevel == "silent" {
		args = append(args, "--silent")
	}
	return args
}

// redactArgs hides the fork URL, which usually embeds a provider key
func redactArgs(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "--fork-url" {
			out[i+1] = "<redacted>"
		}
	}
	return out
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForRPC polls web3_clientVersion until the node answers, exits or the
// timeout passes.
func waitForRPC(ctx context.Context, url string, exited <-chan struct{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = ping(ctx, url); lastErr == nil {
			return nil
		}
		select {
		case <-exited:
			return fmt.Errorf("process exited")
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

func ping(ctx context.Context, url string) error {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()
	var version string
	return client.CallContext(ctx, &version, "web3_clientVersion")
}

// node is a running anvil process
type node struct {
	cmd    *exec.Cmd
	rpcURL string
	output *tailBuffer

	done chan struct{}
	err  error

	closeOnce sync.Once
	closeErr  error
}

func (n *node) RPCURL() string { return n.rpcURL }

// Wait blocks until the process exits
func (n *node) Wait() error {
	<-n.done
	return n.err
}

// Close sends SIGTERM and kills the process if it has not exited in time
func (n *node) Close() error {
	n.closeOnce.Do(func() {
		select {
		case <-n.done:
			return
		default:
		}
		if err := n.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			n.closeErr = n.cmd.Process.Kill()
		}
		select {
		case <-n.done:
		case <-time.After(stopTimeout):
			n.closeErr = n.cmd.Process.Kill()
			<-n.done
		}
	})
	return n.closeErr
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if extra := b.buf.Len() - b.max; extra > 0 {
		b.buf.Next(extra)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ usecase.NodeLauncher = (*Manager)(nil)
