package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PackCall builds call data for method with args
func PackCall(parsed *abi.ABI, method string, args ...interface{}) ([]byte, error) {
	if _, ok := parsed.Methods[method]; !ok {
		return nil, fmt.Errorf("method %s not found in ABI", method)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// PackDeploy builds creation code: bytecode followed by packed constructor args
func PackDeploy(parsed *abi.ABI, bytecode []byte, args ...interface{}) ([]byte, error) {
	if len(bytecode) == 0 {
		return nil, errors.New("bytecode is empty")
	}

	// Pack with an empty name encodes constructor arguments only
	input, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor arguments: %w", err)
	}

	data := make([]byte, 0, len(bytecode)+len(input))
	data = append(data, bytecode...)
	data = append(data, input...)
	return data, nil
}

// BuildCall creates a signed contract call transaction carrying value
func (b *BaseBuilder) BuildCall(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	contractAddr common.Address,
	callData []byte,
	value *big.Int,
	nonce, gas uint64,
) (*SignedTx, error) {
	if contractAddr == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}
	return b.Build(ctx, key, &TxRequest{
		To:    &contractAddr,
		Value: value,
		Data:  callData,
		Nonce: nonce,
		Gas:   gas,
	})
}

// BuildDeploy creates a signed contract creation transaction
func (b *BaseBuilder) BuildDeploy(ctx context.Context, key *ecdsa.PrivateKey, code []byte, nonce, gas uint64) (*SignedTx, error) {
	if len(code) == 0 {
		return nil, errors.New("creation code is empty")
	}
	return b.Build(ctx, key, &TxRequest{
		To:    nil, // Contract creation
		Data:  code,
		Nonce: nonce,
		Gas:   gas,
	})
}
