package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First default anvil/hardhat account
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewKeySigner(t *testing.T) {
	for _, key := range []string{devKey, devKey[2:], " " + devKey + "\n"} {
		signer, err := NewKeySigner(key)
		require.NoError(t, err)
		assert.Equal(t, devAddress, signer.Address())
	}
}

func TestNewKeySigner_Invalid(t *testing.T) {
	_, err := NewKeySigner("0x1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid private key")
}

func TestNewNodeSigner(t *testing.T) {
	signer, err := NewNodeSigner("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	require.NoError(t, err)
	assert.Equal(t, devAddress, signer.Address())

	_, err = NewNodeSigner("not-an-address")
	assert.Error(t, err)
}
