package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BuildTransfer creates a signed native coin transfer (EIP-1559)
func (b *BaseBuilder) BuildTransfer(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	to common.Address,
	value *big.Int,
	nonce uint64,
) (*SignedTx, error) {
	if value == nil || value.Sign() <= 0 {
		return nil, errors.New("transfer value must be positive")
	}
	return b.Build(ctx, key, &TxRequest{
		To:    &to,
		Value: value,
		Nonce: nonce,
		Gas:   TransferGas,
	})
}
