package fundme

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xmhha/fundme-harness/internal/contract"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// RoundData is the latest answer of a price feed
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// Aggregator is a typed handle on a MockV3Aggregator
type Aggregator struct {
	bound *contract.BoundContract
}

// NewAggregator binds the aggregator at address for signer
func NewAggregator(address common.Address, backend contract.Backend, signer *wallet.Signer) *Aggregator {
	return &Aggregator{
		bound: contract.NewBoundContract(AggregatorName, address, ParsedAggregatorABI(), backend, signer),
	}
}

// WrapAggregator wraps an existing handle
func WrapAggregator(bound *contract.BoundContract) *Aggregator {
	return &Aggregator{bound: bound}
}

// Address returns the contract address
func (a *Aggregator) Address() common.Address {
	return a.bound.Address()
}

// Decimals returns the answer precision
func (a *Aggregator) Decimals(ctx context.Context) (uint8, error) {
	out, err := a.bound.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals output type %T", out[0])
	}
	return d, nil
}

// LatestRoundData returns the current round
func (a *Aggregator) LatestRoundData(ctx context.Context) (*RoundData, error) {
	out, err := a.bound.Call(ctx, "latestRoundData")
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("latestRoundData returned %d values, want 5", len(out))
	}

	fields := make([]*big.Int, len(out))
	for i, v := range out {
		n, err := toBig("latestRoundData", v)
		if err != nil {
			return nil, err
		}
		fields[i] = n
	}

	return &RoundData{
		RoundID:         fields[0],
		Answer:          fields[1],
		StartedAt:       fields[2],
		UpdatedAt:       fields[3],
		AnsweredInRound: fields[4],
	}, nil
}

// UpdateAnswer sets a new answer on the mock feed
func (a *Aggregator) UpdateAnswer(ctx context.Context, answer *big.Int) (*types.Transaction, error) {
	return a.bound.Transact(ctx, nil, "updateAnswer", answer)
}
