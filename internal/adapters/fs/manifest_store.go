package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// ManifestStore keeps one manifest per network under the deployments
// directory: <network>.json, its run lock <network>.json.lock and the last
// verification report <network>.verify.json.
type ManifestStore struct {
	dir string
	log *slog.Logger
}

// NewManifestStore creates a store rooted at cfg.DeploymentsDir
func NewManifestStore(cfg *config.RuntimeConfig, log *slog.Logger) *ManifestStore {
	return &ManifestStore{dir: cfg.DeploymentsDir, log: log.With("component", "manifest")}
}

// Path returns the manifest file for network
func (s *ManifestStore) Path(network string) string {
	return filepath.Join(s.dir, network+".json")
}

func (s *ManifestStore) reportPath(network string) string {
	return filepath.Join(s.dir, network+".verify.json")
}

// Load reads the manifest of network. Numbers in constructor args are kept
// as json.Number so large integers survive the round trip.
func (s *ManifestStore) Load(_ context.Context, network string) (*domain.Manifest, error) {
	path := s.Path(network)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var manifest domain.Manifest
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if manifest.Entries == nil {
		manifest.Entries = make(map[string]*domain.ManifestEntry)
	}
	if manifest.Network != "" && manifest.Network != network {
		return nil, fmt.Errorf("manifest %s belongs to network %s: %w", path, manifest.Network, domain.ErrNetworkMismatch)
	}
	return &manifest, nil
}

// Save atomically replaces the manifest file
func (s *ManifestStore) Save(_ context.Context, manifest *domain.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeFileAtomic(s.Path(manifest.Network), append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	s.log.Debug("manifest saved", "network", manifest.Network, "entries", manifest.Len())
	return nil
}

// SaveReport writes the verification report next to the manifest
func (s *ManifestStore) SaveReport(_ context.Context, report *domain.VerificationReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal verification report: %w", err)
	}
	if err := writeFileAtomic(s.reportPath(report.Network), append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write verification report: %w", err)
	}
	return nil
}

// Lock takes an advisory lock on <network>.json.lock for the length of a
// run. The kernel drops the lock when the process exits, so a crashed run
// never blocks the next one. The holder's pid is written into the file for
// the error message.
func (s *ManifestStore) Lock(_ context.Context, network string) (func() error, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create deployments directory: %w", err)
	}
	path := s.Path(network) + ".lock"

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock manifest: %w", err)
	}
	if !ok {
		if pid := lockHolder(path); pid > 0 {
			return nil, fmt.Errorf("%w: %s is held by pid %d", domain.ErrManifestLocked, path, pid)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrManifestLocked, path)
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))), 0o644); err != nil {
		s.log.Warn("failed to record lock holder", "path", path, "error", err)
	}
	return func() error {
		if err := lock.Unlock(); err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}
		return nil
	}, nil
}

// lockHolder reads the pid recorded in a lock file, zero when there is none
func lockHolder(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	first, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so readers never observe a partial manifest.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ usecase.ManifestStore = (*ManifestStore)(nil)
