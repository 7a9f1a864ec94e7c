package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xmhha/fundme-harness/internal/util/mathutil"
)

// TransferGas is the intrinsic gas of a plain value transfer
const TransferGas uint64 = 21000

// GasEstimator interface for gas price suggestion
type GasEstimator interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// BuilderConfig holds configuration for transaction building
type BuilderConfig struct {
	ChainID   *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int

	// Extra gas added on top of estimates, in percent
	GasBufferPercent int
}

// TxRequest describes one transaction to build
type TxRequest struct {
	To    *common.Address // nil for contract creation
	Value *big.Int
	Data  []byte
	Nonce uint64
	Gas   uint64
}

// SignedTx represents a signed transaction ready to send
type SignedTx struct {
	Tx       *types.Transaction
	RawTx    []byte
	Hash     common.Hash
	From     common.Address
	Nonce    uint64
	GasLimit uint64
}

// BaseBuilder provides gas pricing and signing for all transactions
type BaseBuilder struct {
	config    *BuilderConfig
	estimator GasEstimator
}

// NewBaseBuilder creates a new base builder
func NewBaseBuilder(config *BuilderConfig, estimator GasEstimator) *BaseBuilder {
	return &BaseBuilder{
		config:    config,
		estimator: estimator,
	}
}

// ChainID returns the configured chain ID
func (b *BaseBuilder) ChainID() *big.Int {
	return b.config.ChainID
}

// GetGasSettings returns gas settings, fetching from network if not configured
func (b *BaseBuilder) GetGasSettings(ctx context.Context) (*big.Int, *big.Int, error) {
	gasTipCap := b.config.GasTipCap
	gasFeeCap := b.config.GasFeeCap

	if gasTipCap == nil && b.estimator != nil {
		tip, err := b.estimator.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
		}
		gasTipCap = tip
	}

	if gasFeeCap == nil && b.estimator != nil {
		price, err := b.estimator.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		// gasFeeCap = baseFee + gasTipCap (approximate with 2x suggested price)
		gasFeeCap = new(big.Int).Mul(price, big.NewInt(2))
	}

	if gasTipCap == nil || gasFeeCap == nil {
		return nil, nil, errors.New("gas settings unavailable: no estimator and no configured caps")
	}

	// Ensure gasTipCap is not greater than gasFeeCap
	if gasTipCap.Cmp(gasFeeCap) > 0 {
		gasTipCap = gasFeeCap
	}

	return gasTipCap, gasFeeCap, nil
}

// WithBuffer adds the configured buffer percentage to a gas estimate
func (b *BaseBuilder) WithBuffer(gas uint64) uint64 {
	return gas + mathutil.PercentOf(gas, b.config.GasBufferPercent)
}

// Build creates and signs a dynamic fee transaction for req
func (b *BaseBuilder) Build(ctx context.Context, key *ecdsa.PrivateKey, req *TxRequest) (*SignedTx, error) {
	if key == nil {
		return nil, errors.New("no key provided")
	}
	if req.Gas == 0 {
		return nil, errors.New("gas limit is required")
	}

	gasTipCap, gasFeeCap, err := b.GetGasSettings(ctx)
	if err != nil {
		return nil, err
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.config.ChainID,
		Nonce:     req.Nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       req.Gas,
		To:        req.To,
		Value:     value,
		Data:      req.Data,
	})

	signedTx, err := SignTransaction(tx, b.config.ChainID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	return &SignedTx{
		Tx:       signedTx,
		RawTx:    rawTx,
		Hash:     signedTx.Hash(),
		From:     AddressFromKey(key),
		Nonce:    req.Nonce,
		GasLimit: req.Gas,
	}, nil
}

// SignTransaction signs a transaction with the given private key
func SignTransaction(tx *types.Transaction, chainID *big.Int, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.NewLondonSigner(chainID)
	return types.SignTx(tx, signer, key)
}

// AddressFromKey returns the address for a private key
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
