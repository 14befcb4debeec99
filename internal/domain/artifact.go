package domain

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Artifact is a compiled contract: deployable bytecode plus what the explorer
// needs to reproduce the build.
type Artifact struct {
	Name       string
	SourceName string
	ABI        abi.ABI
	Bytecode   []byte
	// Path is the artifact file the contract was loaded from
	Path string

	// CompilerVersion is the full solc version, e.g. v0.8.4+commit.c7e474f2
	CompilerVersion string
	// StandardJSONInput is the solc standard JSON input of the build, if known
	StandardJSONInput []byte
}

// FullyQualifiedName returns "source:Name" when the source is known.
func (a *Artifact) FullyQualifiedName() string {
	if a.SourceName == "" {
		return a.Name
	}
	return a.SourceName + ":" + a.Name
}

// Verifiable reports whether the artifact carries enough build metadata for
// source verification.
func (a *Artifact) Verifiable() bool {
	return a.CompilerVersion != "" && len(a.StandardJSONInput) > 0
}
