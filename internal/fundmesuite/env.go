// Package fundmesuite holds the FundMe unit and staging suites.
package fundmesuite

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xmhha/fundme-harness/internal/accounting"
	"github.com/0xmhha/fundme-harness/internal/collector"
	"github.com/0xmhha/fundme-harness/internal/contract"
	"github.com/0xmhha/fundme-harness/internal/deploy"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/network"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// Suite names
const (
	UnitSuiteName    = "FundMe"
	StagingSuiteName = "FundMe Staging Tests"
)

// Backend is the chain access the suites need
type Backend interface {
	contract.Backend
	accounting.BalanceReader
}

// Env is everything a suite needs from the surrounding run
type Env struct {
	Backend Backend
	Wallet  *wallet.Wallet
	Network *network.Network

	// Deployer redeploys the "all" fixture before each unit case
	Deployer *deploy.Deployer

	// Waiter settles transactions; usually a *collector.Collector
	Waiter deploy.Waiter

	// SendValue is the amount every funder sends
	SendValue *big.Int

	// Funders is the number of extra accounts in multi-funder cases
	Funders int

	// Confirmations for suite transactions; 0 means 1
	Confirmations uint64

	// Staging binds to FundMeAddress, or to the deployment recorded under
	// DeploymentsDir when the address is zero
	FundMeAddress  common.Address
	DeploymentsDir string
}

// Validate checks the fields shared by both suites
func (e *Env) Validate() error {
	if e.Backend == nil {
		return errors.New("backend is required")
	}
	if e.Wallet == nil || e.Wallet.Len() == 0 {
		return errors.New("at least one account is required")
	}
	if e.Network == nil {
		return errors.New("network is required")
	}
	if e.Waiter == nil {
		return errors.New("waiter is required")
	}
	if e.SendValue == nil || e.SendValue.Sign() <= 0 {
		return errors.New("send value must be positive")
	}
	return nil
}

// confirmations is the depth suite transactions wait for. It defaults to
// one block whatever the network's deploy confirmations are.
func (e *Env) confirmations() uint64 {
	if e.Confirmations > 0 {
		return e.Confirmations
	}
	return 1
}

func (e *Env) funders() ([]*wallet.Signer, error) {
	n := e.Funders
	if n <= 0 {
		n = 5
	}
	out := make([]*wallet.Signer, 0, n)
	for i := 1; i <= n; i++ {
		signer, err := e.Wallet.Signer(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get funder %d: %w", i, err)
		}
		out = append(out, signer)
	}
	return out, nil
}

// settle waits for tx and fails on a reverted receipt
func (e *Env) settle(ctx context.Context, tx *types.Transaction, method string) (*types.Receipt, error) {
	receipt, err := e.Waiter.WaitMethod(ctx, tx, method, e.confirmations())
	if err != nil {
		return receipt, fmt.Errorf("failed to settle %s: %w", method, err)
	}
	return receipt, nil
}

// fund sends SendValue from fm's signer and waits for it
func (e *Env) fund(ctx context.Context, fm *fundme.FundMe) error {
	tx, err := fm.Fund(ctx, e.SendValue)
	if err != nil {
		return err
	}
	_, err = e.settle(ctx, tx, "fund")
	return err
}

// withdrawFunc is FundMe.Withdraw or FundMe.CheaperWithdraw
type withdrawFunc func(ctx context.Context) (*types.Transaction, error)

// withdrawAndReconcile snapshots contract and owner balances around a
// withdrawal and checks that the owner alone paid for it
func (e *Env) withdrawAndReconcile(ctx context.Context, fm *fundme.FundMe, method string, withdraw withdrawFunc) (*accounting.Result, error) {
	owner := fm.Signer().Address

	before, err := accounting.Take(ctx, e.Backend, fm.Address(), owner)
	if err != nil {
		return nil, err
	}

	tx, err := withdraw(ctx)
	if err != nil {
		return nil, err
	}
	receipt, err := e.settle(ctx, tx, method)
	if err != nil {
		return nil, err
	}

	after, err := accounting.Take(ctx, e.Backend, fm.Address(), owner)
	if err != nil {
		return nil, err
	}
	return accounting.Reconcile(before, after, collector.GasCost(receipt))
}
