// Package testing provides test utilities, an RPC mock and an in-memory chain for harness tests.
package testing

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TestPrivateKey is a well-known test private key (DO NOT use in production)
const TestPrivateKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// TestChainID is the default chain ID for tests
var TestChainID = big.NewInt(1337)

// GenerateTestKey generates a random private key for testing
func GenerateTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return key
}

// MustParseKey parses a hex private key or fails the test
func MustParseKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	return key
}

// AddressFromKey returns the address for a private key
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// RandomAddress generates a random address for testing
func RandomAddress(t *testing.T) common.Address {
	t.Helper()
	return AddressFromKey(GenerateTestKey(t))
}

// Ether converts ether to wei
func Ether(n int64) *big.Int {
	wei := big.NewInt(n)
	return wei.Mul(wei, big.NewInt(1e18))
}

// Gwei converts gwei to wei
func Gwei(n int64) *big.Int {
	wei := big.NewInt(n)
	return wei.Mul(wei, big.NewInt(1e9))
}
