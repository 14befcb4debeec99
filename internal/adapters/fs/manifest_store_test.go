package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*ManifestStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "deployments")
	return NewManifestStore(&config.RuntimeConfig{DeploymentsDir: dir}, testLogger()), dir
}

func TestManifestStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), "sepolia")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManifestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestStore(t)

	manifest := domain.NewManifest("launch", "sepolia", 11155111)
	require.NoError(t, manifest.RecordPending(domain.ManifestEntry{
		Unit:            "StreamETH",
		Contract:        "contracts/StreamETH.sol:StreamETH",
		Address:         "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		TransactionHash: "0xabc",
		Args:            []any{"115792089237316195423570985008687907853269984665640564039457584007913129639935", 7},
		SubmittedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}))
	require.NoError(t, manifest.Confirm("StreamETH", 12, 3, time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)))
	require.NoError(t, store.Save(ctx, manifest))

	assert.Equal(t, filepath.Join(dir, "sepolia.json"), store.Path("sepolia"))
	assert.FileExists(t, store.Path("sepolia"))

	loaded, err := store.Load(ctx, "sepolia")
	require.NoError(t, err)
	assert.Equal(t, "launch", loaded.Plan)
	assert.Equal(t, uint64(11155111), loaded.ChainID)
	assert.Equal(t, []string{"StreamETH"}, loaded.Order)

	entry := loaded.Entries["StreamETH"]
	require.NotNil(t, entry)
	assert.True(t, entry.IsConfirmed())
	assert.Equal(t, uint64(12), entry.ConfirmedAtBlock)
	assert.Equal(t, json.Number("7"), entry.Args[1])

	// no temp files are left behind
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestManifestStore_LoadInitializesEntries(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.json"), []byte(`{"plan":"p","network":"local"}`), 0o644))

	loaded, err := store.Load(context.Background(), "local")
	require.NoError(t, err)
	assert.NotNil(t, loaded.Entries)
	assert.Equal(t, 0, loaded.Len())
}

func TestManifestStore_LoadRejectsForeignNetwork(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.json"), []byte(`{"network":"mainnet","entries":{}}`), 0o644))

	_, err := store.Load(context.Background(), "local")
	assert.ErrorIs(t, err, domain.ErrNetworkMismatch)
}

func TestManifestStore_LoadCorrupt(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.json"), []byte(`{"network":`), 0o644))

	_, err := store.Load(context.Background(), "local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse manifest")
}

func TestManifestStore_Lock(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	unlock, err := store.Lock(ctx, "sepolia")
	require.NoError(t, err)
	assert.FileExists(t, store.Path("sepolia")+".lock")

	_, err = store.Lock(ctx, "sepolia")
	assert.ErrorIs(t, err, domain.ErrManifestLocked)
	assert.Contains(t, err.Error(), fmt.Sprintf("pid %d", os.Getpid()))

	// other networks are independent
	unlockOther, err := store.Lock(ctx, "mainnet")
	require.NoError(t, err)
	require.NoError(t, unlockOther())

	require.NoError(t, unlock())

	unlock, err = store.Lock(ctx, "sepolia")
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestManifestStore_LeftoverLockFileIsFree(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// a run that crashed leaves the file but no lock on it
	lockPath := store.Path("sepolia") + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("99999999\n"), 0o644))

	unlock, err := store.Lock(context.Background(), "sepolia")
	require.NoError(t, err)

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), fmt.Sprint(os.Getpid()))
	require.NoError(t, unlock())
}

func TestManifestStore_SaveReport(t *testing.T) {
	store, dir := newTestStore(t)

	report := domain.NewVerificationReport("sepolia")
	report.Set(domain.VerificationResult{Unit: "StreamETH", Status: domain.VerificationVerified, Attempts: 2})
	require.NoError(t, store.SaveReport(context.Background(), report))

	data, err := os.ReadFile(filepath.Join(dir, "sepolia.verify.json"))
	require.NoError(t, err)

	var decoded struct {
		Network string                                `json:"network"`
		Results map[string]*domain.VerificationResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sepolia", decoded.Network)
	require.Contains(t, decoded.Results, "StreamETH")
	assert.Equal(t, domain.VerificationVerified, decoded.Results["StreamETH"].Status)
	assert.Equal(t, 2, decoded.Results["StreamETH"].Attempts)
}
