package contracts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
)

const streamABI = `[{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address[]","name":"recipients","type":"address[]"},{"internalType":"uint256[]","name":"shareBPS","type":"uint256[]"}],"stateMutability":"nonpayable","type":"constructor"}]`

const tulipABI = `[{"inputs":[{"internalType":"address payable","name":"stream","type":"address"}],"stateMutability":"nonpayable","type":"constructor"}]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// hardhatProject lays out artifacts/ the way hardhat compile does
func hardhatProject(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "artifacts")

	writeFile(t, filepath.Join(root, "contracts/StreamETH.sol/StreamETH.json"), `{
		"_format": "hh-sol-artifact-1",
		"contractName": "StreamETH",
		"sourceName": "contracts/StreamETH.sol",
		"abi": `+streamABI+`,
		"bytecode": "0x6080604052"
	}`)
	writeFile(t, filepath.Join(root, "contracts/StreamETH.sol/StreamETH.dbg.json"), `{
		"_format": "hh-sol-dbg-1",
		"buildInfo": "../../build-info/abc123.json"
	}`)
	writeFile(t, filepath.Join(root, "contracts/EtherTulip.sol/EtherTulip.json"), `{
		"_format": "hh-sol-artifact-1",
		"contractName": "EtherTulip",
		"sourceName": "contracts/EtherTulip.sol",
		"abi": `+tulipABI+`,
		"bytecode": "0x60806040"
	}`)
	writeFile(t, filepath.Join(root, "contracts/IStream.sol/IStream.json"), `{
		"_format": "hh-sol-artifact-1",
		"contractName": "IStream",
		"sourceName": "contracts/IStream.sol",
		"abi": [],
		"bytecode": "0x"
	}`)
	writeFile(t, filepath.Join(root, "build-info/abc123.json"), `{
		"_format": "hh-sol-build-info-1",
		"solcVersion": "0.8.4",
		"solcLongVersion": "0.8.4+commit.c7e474f2",
		"input": {"language":"Solidity","sources":{"contracts/StreamETH.sol":{"content":"contract StreamETH {}"}}}
	}`)
	return root
}

func newTestIndexer(root string) *Indexer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIndexer(&config.RuntimeConfig{ArtifactsDir: root}, log)
}

func TestIndexer_HardhatArtifact(t *testing.T) {
	idx := newTestIndexer(hardhatProject(t))

	artifact, err := idx.Artifact(context.Background(), "StreamETH")
	require.NoError(t, err)

	assert.Equal(t, "StreamETH", artifact.Name)
	assert.Equal(t, "contracts/StreamETH.sol:StreamETH", artifact.FullyQualifiedName())
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, artifact.Bytecode)
	assert.Len(t, artifact.ABI.Constructor.Inputs, 3)
	assert.Equal(t, "v0.8.4+commit.c7e474f2", artifact.CompilerVersion)
	assert.JSONEq(t, `{"language":"Solidity","sources":{"contracts/StreamETH.sol":{"content":"contract StreamETH {}"}}}`,
		string(artifact.StandardJSONInput))
	assert.True(t, artifact.Verifiable())
}

func TestIndexer_WithoutBuildInfo(t *testing.T) {
	idx := newTestIndexer(hardhatProject(t))

	artifact, err := idx.Artifact(context.Background(), "contracts/EtherTulip.sol:EtherTulip")
	require.NoError(t, err)
	assert.False(t, artifact.Verifiable())
}

func TestIndexer_NotFound(t *testing.T) {
	idx := newTestIndexer(hardhatProject(t))

	_, err := idx.Artifact(context.Background(), "Missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = idx.Artifact(context.Background(), "contracts/Other.sol:StreamETH")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexer_InterfaceIsNotDeployable(t *testing.T) {
	idx := newTestIndexer(hardhatProject(t))

	_, err := idx.Artifact(context.Background(), "IStream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no bytecode")
}

func TestIndexer_AmbiguousName(t *testing.T) {
	root := hardhatProject(t)
	writeFile(t, filepath.Join(root, "contracts/legacy/StreamETH.sol/StreamETH.json"), `{
		"contractName": "StreamETH",
		"sourceName": "contracts/legacy/StreamETH.sol",
		"abi": `+streamABI+`,
		"bytecode": "0x00"
	}`)
	idx := newTestIndexer(root)

	_, err := idx.Artifact(context.Background(), "StreamETH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contracts/StreamETH.sol:StreamETH, contracts/legacy/StreamETH.sol:StreamETH")

	names, err := idx.Contracts()
	require.NoError(t, err)
	assert.Contains(t, names, "contracts/legacy/StreamETH.sol:StreamETH")
}

func TestIndexer_FoundryArtifact(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(root, "EtherTulip.sol/EtherTulip.json"), `{
		"abi": `+tulipABI+`,
		"bytecode": {"object": "0x60806040", "linkReferences": {}},
		"metadata": {
			"compiler": {"version": "0.8.4+commit.c7e474f2"},
			"settings": {"compilationTarget": {"src/EtherTulip.sol": "EtherTulip"}}
		}
	}`)
	writeFile(t, filepath.Join(root, "build-info/f00.json"), `{
		"solcLongVersion": "0.8.4+commit.c7e474f2",
		"input": {"language":"Solidity","sources":{"src/EtherTulip.sol":{}}}
	}`)
	idx := newTestIndexer(root)

	artifact, err := idx.Artifact(context.Background(), "EtherTulip")
	require.NoError(t, err)
	assert.Equal(t, "src/EtherTulip.sol", artifact.SourceName)
	assert.Equal(t, "v0.8.4+commit.c7e474f2", artifact.CompilerVersion)
	assert.True(t, artifact.Verifiable())
}

func TestIndexer_UnlinkedLibrary(t *testing.T) {
	root := filepath.Join(t.TempDir(), "artifacts")
	writeFile(t, filepath.Join(root, "contracts/Linked.sol/Linked.json"), `{
		"contractName": "Linked",
		"sourceName": "contracts/Linked.sol",
		"abi": [],
		"bytecode": "0x6080__$1234567890abcdef$__6040"
	}`)
	idx := newTestIndexer(root)

	_, err := idx.Artifact(context.Background(), "Linked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unlinked library")
}

func TestIndexer_MissingDirectory(t *testing.T) {
	idx := newTestIndexer(filepath.Join(t.TempDir(), "nope"))

	_, err := idx.Artifact(context.Background(), "StreamETH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile the contracts first")
}
