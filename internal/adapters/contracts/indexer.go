package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"

	"github.com/ethertulip/tulip-deployer/internal/domain"
	"github.com/ethertulip/tulip-deployer/internal/domain/config"
	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// artifactFile covers both hardhat (artifacts/) and foundry (out/) layouts
type artifactFile struct {
	Format       string          `json:"_format"`
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	Metadata     json.RawMessage `json:"metadata"`
}

type foundryMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

type debugFile struct {
	BuildInfo string `json:"buildInfo"`
}

type buildInfo struct {
	SolcLongVersion string          `json:"solcLongVersion"`
	SolcVersion     string          `json:"solcVersion"`
	Input           json.RawMessage `json:"input"`
}

// indexEntry is an artifact found on disk, parsed on first use
type indexEntry struct {
	name       string
	sourceName string
	path       string
	artifact   *domain.Artifact
}

func (e *indexEntry) key() string { return e.sourceName + ":" + e.name }

// Indexer discovers compiled contracts under the artifacts directory and
// implements usecase.ArtifactSource.
type Indexer struct {
	root string
	log  *slog.Logger

	once     sync.Once
	indexErr error

	mu        sync.Mutex
	byKey     map[string]*indexEntry   // source:Name
	byName    map[string][]*indexEntry // Name
	buildInfo map[string]*buildInfo    // build-info path
}

// NewIndexer creates an indexer over cfg.ArtifactsDir
func NewIndexer(cfg *config.RuntimeConfig, log *slog.Logger) *Indexer {
	return &Indexer{
		root:      cfg.ArtifactsDir,
		log:       log.With("component", "artifacts"),
		byKey:     make(map[string]*indexEntry),
		byName:    make(map[string][]*indexEntry),
		buildInfo: make(map[string]*buildInfo),
	}
}

// Index walks the artifacts directory once
func (i *Indexer) Index() error {
	i.once.Do(func() { i.indexErr = i.index() })
	return i.indexErr
}

func (i *Indexer) index() error {
	if i.root == "" {
		return fmt.Errorf("no artifacts directory configured")
	}
	if _, err := os.Stat(i.root); err != nil {
		return fmt.Errorf("artifacts directory %s: %w (compile the contracts first)", i.root, err)
	}

	err := filepath.WalkDir(i.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}
		entry, err := i.peek(path)
		if err != nil {
			i.log.Debug("skipping artifact", "path", path, "error", err)
			return nil
		}
		if entry != nil {
			i.add(entry)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index artifacts: %w", err)
	}

	i.log.Debug("indexed artifacts", "root", i.root, "contracts", len(i.byKey))
	return nil
}

// peek reads just enough of a file to learn the contract it describes
func (i *Indexer) peek(path string) (*indexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.ABI) == 0 || len(file.Bytecode) == 0 {
		return nil, nil
	}

	name, source := file.ContractName, file.SourceName
	if name == "" && len(file.Metadata) > 0 {
		var meta foundryMetadata
		if err := json.Unmarshal(file.Metadata, &meta); err == nil {
			for src, n := range meta.Settings.CompilationTarget {
				source, name = src, n
			}
		}
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if source == "" {
		source = filepath.Base(filepath.Dir(path))
	}
	return &indexEntry{name: name, sourceName: source, path: path}, nil
}

func (i *Indexer) add(e *indexEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.byKey[e.key()]; exists {
		return
	}
	i.byKey[e.key()] = e
	i.byName[e.name] = append(i.byName[e.name], e)
}

// Contracts returns the fully qualified names of every indexed contract
func (i *Indexer) Contracts() ([]string, error) {
	if err := i.Index(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	keys := lo.Keys(i.byKey)
	sort.Strings(keys)
	return keys, nil
}

// Artifact returns the contract by name or by source:Name
func (i *Indexer) Artifact(_ context.Context, contract string) (*domain.Artifact, error) {
	if err := i.Index(); err != nil {
		return nil, err
	}

	entry, err := i.lookup(contract)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if entry.artifact == nil {
		artifact, err := i.load(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to load artifact %s: %w", entry.path, err)
		}
		entry.artifact = artifact
	}
	return entry.artifact, nil
}

func (i *Indexer) lookup(contract string) (*indexEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if strings.Contains(contract, ":") {
		if e, ok := i.byKey[contract]; ok {
			return e, nil
		}
		return nil, fmt.Errorf("contract %s: %w", contract, domain.ErrNotFound)
	}

	matches := i.byName[contract]
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("contract %s: %w", contract, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		keys := lo.Map(matches, func(e *indexEntry, _ int) string { return e.key() })
		sort.Strings(keys)
		return nil, fmt.Errorf("contract %s is ambiguous, use one of: %s", contract, strings.Join(keys, ", "))
	}
}

func (i *Indexer) load(e *indexEntry) (*domain.Artifact, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("invalid ABI: %w", err)
	}

	code, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s has no bytecode (abstract contract or interface)", e.key())
	}

	artifact := &domain.Artifact{
		Name:       e.name,
		SourceName: e.sourceName,
		ABI:        parsed,
		Bytecode:   code,
		Path:       e.path,
	}

	if len(file.Metadata) > 0 {
		var meta foundryMetadata
		if err := json.Unmarshal(file.Metadata, &meta); err == nil {
			artifact.CompilerVersion = normalizeVersion(meta.Compiler.Version)
		}
	}

	info, err := i.findBuildInfo(e)
	if err != nil {
		i.log.Debug("no build info", "contract", e.key(), "error", err)
	}
	if info != nil {
		artifact.StandardJSONInput = info.Input
		if v := lo.CoalesceOrEmpty(info.SolcLongVersion, info.SolcVersion); v != "" {
			artifact.CompilerVersion = normalizeVersion(v)
		}
	}
	return artifact, nil
}

// decodeBytecode accepts the hardhat string form and the foundry {object} form
func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("unrecognised bytecode field")
		}
		hex = obj.Object
	}
	if strings.Contains(hex, "__") {
		return nil, fmt.Errorf("bytecode has unlinked library references")
	}
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	code, err := hexutil.Decode(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return code, nil
}

// findBuildInfo follows a hardhat .dbg.json pointer, falling back to a scan of
// build-info files whose input compiled the contract's source.
func (i *Indexer) findBuildInfo(e *indexEntry) (*buildInfo, error) {
	dbgPath := strings.TrimSuffix(e.path, ".json") + ".dbg.json"
	if data, err := os.ReadFile(dbgPath); err == nil {
		var dbg debugFile
		if err := json.Unmarshal(data, &dbg); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", dbgPath, err)
		}
		if dbg.BuildInfo != "" {
			return i.readBuildInfo(filepath.Join(filepath.Dir(dbgPath), dbg.BuildInfo))
		}
	}

	dir := filepath.Join(i.root, "build-info")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := i.readBuildInfo(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var input struct {
			Sources map[string]json.RawMessage `json:"sources"`
		}
		if err := json.Unmarshal(info.Input, &input); err != nil {
			continue
		}
		if _, ok := input.Sources[e.sourceName]; ok {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no build info compiles %s", e.sourceName)
}

// readBuildInfo is called with i.mu held
func (i *Indexer) readBuildInfo(path string) (*buildInfo, error) {
	path = filepath.Clean(path)
	if info, ok := i.buildInfo[path]; ok {
		return info, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info buildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid build info %s: %w", path, err)
	}
	i.buildInfo[path] = &info
	return &info, nil
}

// normalizeVersion renders a solc version the way explorers expect it
func normalizeVersion(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

var _ usecase.ArtifactSource = (*Indexer)(nil)
