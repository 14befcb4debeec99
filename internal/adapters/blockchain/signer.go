package blockchain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// KeySigner signs transactions locally with a private key
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex private key, with or without 0x prefix
func NewKeySigner(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *KeySigner) Address() string { return s.address.Hex() }

// NodeSigner is an account the node signs for: an unlocked dev account or an
// impersonated address on a devnet. Transactions go through eth_sendTransaction.
type NodeSigner struct {
	address common.Address
}

// NewNodeSigner returns a signer for an address managed by the node
func NewNodeSigner(address string) (*NodeSigner, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid signer address %q", address)
	}
	return &NodeSigner{address: common.HexToAddress(address)}, nil
}

func (s *NodeSigner) Address() string { return s.address.Hex() }

var (
	_ usecase.Signer = (*KeySigner)(nil)
	_ usecase.Signer = (*NodeSigner)(nil)
)
