package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

var ErrNoAccount = errors.New("account index out of range")

// DefaultMnemonic is the well-known development mnemonic used by local nodes
const DefaultMnemonic = "test test test test test test test test test test test junk"

// Signer is an account with signing capability
type Signer struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewSigner wraps a private key
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		Key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Wallet holds the named accounts of a run.
// Index 0 is the deployer; indices 1.. are the additional signers.
type Wallet struct {
	signers     []*Signer
	useMnemonic bool
}

// NewFromPrivateKeys creates a wallet from hex private keys, in order
func NewFromPrivateKeys(privateKeyHexes []string) (*Wallet, error) {
	if len(privateKeyHexes) == 0 {
		return nil, errors.New("no private keys provided")
	}

	signers := make([]*Signer, len(privateKeyHexes))
	for i, privateKeyHex := range privateKeyHexes {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key %d: %w", i, err)
		}
		signers[i] = NewSigner(key)
	}

	return &Wallet{signers: signers}, nil
}

// NewFromMnemonic derives count accounts from a BIP39 mnemonic
// along m/44'/60'/0'/0/i
func NewFromMnemonic(mnemonic string, count int) (*Wallet, error) {
	if count <= 0 {
		return nil, errors.New("account count must be greater than 0")
	}

	hd, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	signers := make([]*Signer, count)
	for i := 0; i < count; i++ {
		path := hdwallet.MustParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", i))
		account, err := hd.Derive(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to derive account %d: %w", i, err)
		}

		key, err := hd.PrivateKey(account)
		if err != nil {
			return nil, fmt.Errorf("failed to get account %d private key: %w", i, err)
		}
		signers[i] = NewSigner(key)
	}

	return &Wallet{signers: signers, useMnemonic: true}, nil
}

// Deployer returns the named "deployer" account (index 0)
func (w *Wallet) Deployer() *Signer {
	return w.signers[0]
}

// Signer returns the account at index i
func (w *Wallet) Signer(i int) (*Signer, error) {
	if i < 0 || i >= len(w.signers) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrNoAccount, i, len(w.signers))
	}
	return w.signers[i], nil
}

// Signers returns all accounts, deployer first
func (w *Wallet) Signers() []*Signer {
	out := make([]*Signer, len(w.signers))
	copy(out, w.signers)
	return out
}

// Addresses returns all account addresses, deployer first
func (w *Wallet) Addresses() []common.Address {
	addresses := make([]common.Address, len(w.signers))
	for i, s := range w.signers {
		addresses[i] = s.Address
	}
	return addresses
}

// Len returns the number of accounts
func (w *Wallet) Len() int {
	return len(w.signers)
}

// FromMnemonic reports whether the accounts were derived from a mnemonic
func (w *Wallet) FromMnemonic() bool {
	return w.useMnemonic
}
