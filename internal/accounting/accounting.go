package accounting

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrBalanceMismatch is returned when value was created or destroyed
	// across a withdrawal
	ErrBalanceMismatch = errors.New("balances do not reconcile")

	// ErrContractNotEmpty is returned when a withdrawal left funds behind
	ErrContractNotEmpty = errors.New("contract balance is not zero")
)

// BalanceReader reads native balances
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Snapshot holds the contract and owner balances at one point in time
type Snapshot struct {
	Contract *big.Int
	Owner    *big.Int
}

// Take reads the current balances of contractAddr and owner
func Take(ctx context.Context, reader BalanceReader, contractAddr, owner common.Address) (*Snapshot, error) {
	contractBalance, err := reader.BalanceAt(ctx, contractAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contract balance: %w", err)
	}
	ownerBalance, err := reader.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner balance: %w", err)
	}
	return &Snapshot{Contract: contractBalance, Owner: ownerBalance}, nil
}

// Total returns Contract + Owner
func (s *Snapshot) Total() *big.Int {
	return new(big.Int).Add(s.Contract, s.Owner)
}

// Result is the outcome of a reconciliation
type Result struct {
	Before    *Snapshot
	After     *Snapshot
	GasCost   *big.Int
	Withdrawn *big.Int // owner gain before gas
	Delta     *big.Int // (before total) - (after owner + gas), zero when balanced
}

// Reconcile checks a withdrawal paid for by the owner:
//
//	before.Contract + before.Owner == after.Owner + gasCost
//	after.Contract == 0
func Reconcile(before, after *Snapshot, gasCost *big.Int) (*Result, error) {
	if before == nil || after == nil {
		return nil, errors.New("both snapshots are required")
	}
	if gasCost == nil {
		gasCost = big.NewInt(0)
	}

	right := new(big.Int).Add(after.Owner, gasCost)
	res := &Result{
		Before:    before,
		After:     after,
		GasCost:   gasCost,
		Withdrawn: new(big.Int).Sub(right, before.Owner),
		Delta:     new(big.Int).Sub(before.Total(), right),
	}

	if after.Contract.Sign() != 0 {
		return res, fmt.Errorf("%w: %s wei left", ErrContractNotEmpty, after.Contract)
	}
	if res.Delta.Sign() != 0 {
		return res, fmt.Errorf("%w: contract %s + owner %s != owner after %s + gas %s (delta %s)",
			ErrBalanceMismatch, before.Contract, before.Owner, after.Owner, gasCost, res.Delta)
	}
	return res, nil
}
