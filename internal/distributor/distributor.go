// Package distributor tops up the extra funder accounts from the deployer.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/fundme-harness/internal/txbuilder"
	"github.com/0xmhha/fundme-harness/internal/util/progress"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

var (
	ErrInsufficientFunds = errors.New("insufficient distributor funds")
	ErrNoAccountsToFund  = errors.New("no accounts to fund")
)

// Client interface for blockchain operations
type Client interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
}

// Distributor moves funds from the deployer to funder accounts
type Distributor struct {
	client  Client
	config  *Config
	chainID *big.Int
}

// New creates a new Distributor instance
func New(client Client, config *Config) *Distributor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Out == nil {
		config.Out = io.Discard
	}
	return &Distributor{
		client: client,
		config: config,
	}
}

// Distribute makes sure every account can afford its fund() calls,
// transferring the shortfall from master
func (d *Distributor) Distribute(ctx context.Context, master *wallet.Signer, accounts []common.Address) (*DistributionResult, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccountsToFund
	}
	out := d.config.Out
	fmt.Fprintf(out, "\nTopping up %d funder accounts\n\n", len(accounts))

	if d.chainID == nil {
		chainID, err := d.client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
		d.chainID = chainID
	}

	gasPrice, err := d.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	requiredFund := d.config.RequiredFund(gasPrice)
	fmt.Fprintf(out, "Required fund per account: %s wei\n", requiredFund.String())
	fmt.Fprintf(out, "  Fund calls per account: %d\n", d.config.FundCalls)
	fmt.Fprintf(out, "  Buffer: %d%%\n\n", d.config.BufferPercent)

	statuses, err := d.checkBalances(ctx, accounts, requiredFund)
	if err != nil {
		return nil, fmt.Errorf("failed to check balances: %w", err)
	}

	var funded, unfunded []*AccountStatus
	for _, status := range statuses {
		if status.IsFunded {
			funded = append(funded, status)
		} else {
			unfunded = append(unfunded, status)
		}
	}

	if len(unfunded) == 0 {
		fmt.Fprintf(out, "[OK] All %d accounts are already funded\n", len(funded))
		return &DistributionResult{
			ReadyAccounts:    funded,
			TotalDistributed: big.NewInt(0),
		}, nil
	}

	// smallest shortfall first, so a poor master funds as many as it can
	sort.Slice(unfunded, func(i, j int) bool {
		return unfunded[i].MissingFund.Cmp(unfunded[j].MissingFund) < 0
	})

	result, err := d.fundAccounts(ctx, master, unfunded, gasPrice)
	if err != nil {
		return nil, err
	}
	result.ReadyAccounts = append(funded, result.ReadyAccounts...)
	return result, nil
}

func (d *Distributor) gasPrice(ctx context.Context) (*big.Int, error) {
	if d.config.GasPrice != nil && d.config.GasPrice.Sign() > 0 {
		return new(big.Int).Set(d.config.GasPrice), nil
	}
	price, err := d.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	// matches the fee cap the transaction builder signs with
	return new(big.Int).Mul(price, big.NewInt(2)), nil
}

// checkBalances reads every balance concurrently and determines funding needs
func (d *Distributor) checkBalances(ctx context.Context, accounts []common.Address, requiredFund *big.Int) ([]*AccountStatus, error) {
	fmt.Fprintf(d.config.Out, "Checking balances of %d accounts...\n", len(accounts))
	bar := progress.New(d.config.Out, len(accounts), "checking balances", d.config.ShowProgress)

	statuses := make([]*AccountStatus, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	if d.config.Concurrency > 0 {
		g.SetLimit(d.config.Concurrency)
	}

	for i, addr := range accounts {
		g.Go(func() error {
			balance, err := d.client.BalanceAt(gctx, addr, nil)
			if err != nil {
				return fmt.Errorf("failed to get balance for %s: %w", addr.Hex(), err)
			}

			status := &AccountStatus{
				Address:      addr,
				Balance:      balance,
				RequiredFund: requiredFund,
				MissingFund:  big.NewInt(0),
			}
			if balance.Cmp(requiredFund) >= 0 {
				status.IsFunded = true
			} else {
				status.MissingFund = new(big.Int).Sub(requiredFund, balance)
			}

			statuses[i] = status
			progress.Add(bar, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress.Finish(bar)
	return statuses, nil
}

// fundAccounts sends the shortfall to each account the master can afford
func (d *Distributor) fundAccounts(ctx context.Context, master *wallet.Signer, unfunded []*AccountStatus, gasPrice *big.Int) (*DistributionResult, error) {
	out := d.config.Out

	masterBalance, err := d.client.BalanceAt(ctx, master.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get master balance: %w", err)
	}

	fmt.Fprintf(out, "Master account: %s\n", master.Address.Hex())
	fmt.Fprintf(out, "Master balance: %s wei\n\n", masterBalance.String())

	transferCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(txbuilder.TransferGas))

	fundable := make([]*AccountStatus, 0, len(unfunded))
	remaining := new(big.Int).Set(masterBalance)
	total := big.NewInt(0)

	for _, account := range unfunded {
		cost := new(big.Int).Add(account.MissingFund, transferCost)
		if remaining.Cmp(cost) < 0 {
			break
		}
		fundable = append(fundable, account)
		remaining.Sub(remaining, cost)
		total.Add(total, account.MissingFund)
	}

	if len(fundable) == 0 {
		fmt.Fprintf(out, "[FAIL] Master account cannot fund any funder account\n")
		fmt.Fprintf(out, "   Master balance: %s wei\n", masterBalance.String())
		fmt.Fprintf(out, "   Minimum needed: %s wei\n", unfunded[0].MissingFund.String())
		return nil, ErrInsufficientFunds
	}

	nonce, err := d.client.PendingNonceAt(ctx, master.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get master nonce: %w", err)
	}

	builder := txbuilder.NewBaseBuilder(&txbuilder.BuilderConfig{
		ChainID:   d.chainID,
		GasFeeCap: gasPrice,
	}, d.client)

	fmt.Fprintf(out, "Funding %d accounts...\n", len(fundable))
	bar := progress.New(out, len(fundable), "funding accounts", d.config.ShowProgress)

	ready := make([]*AccountStatus, 0, len(fundable))
	txs := make([]*types.Transaction, 0, len(fundable))

	for _, account := range fundable {
		signed, err := builder.BuildTransfer(ctx, master.Key, account.Address, account.MissingFund, nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to build transfer tx: %w", err)
		}
		if err := d.client.SendTransaction(ctx, signed.Tx); err != nil {
			return nil, fmt.Errorf("failed to send transfer tx to %s: %w", account.Address.Hex(), err)
		}

		nonce++
		txs = append(txs, signed.Tx)

		account.IsFunded = true
		account.Balance = new(big.Int).Add(account.Balance, account.MissingFund)
		ready = append(ready, account)
		progress.Add(bar, 1)
	}
	progress.Finish(bar)

	fmt.Fprintf(out, "\n[OK] Successfully funded %d accounts\n", len(ready))
	fmt.Fprintf(out, "   Total distributed: %s wei\n", total.String())

	left := unfunded[len(fundable):]
	if len(left) > 0 {
		fmt.Fprintf(out, "   [WARN] %d accounts could not be funded (insufficient master balance)\n", len(left))
	}

	return &DistributionResult{
		ReadyAccounts:    ready,
		UnfundedAccounts: left,
		TotalDistributed: total,
		Txs:              txs,
	}, nil
}

// WaitForFunding polls until every account holds its required fund
func (d *Distributor) WaitForFunding(ctx context.Context, accounts []*AccountStatus, timeout time.Duration) error {
	fmt.Fprintf(d.config.Out, "\nWaiting for funding confirmations...\n")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := d.config.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bar := progress.New(d.config.Out, len(accounts), "confirming", d.config.ShowProgress)

	for _, account := range accounts {
		for {
			balance, err := d.client.BalanceAt(ctx, account.Address, nil)
			if err != nil {
				return fmt.Errorf("failed to check balance: %w", err)
			}
			if balance.Cmp(account.RequiredFund) >= 0 {
				account.Balance = balance
				progress.Add(bar, 1)
				break
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("timeout waiting for funding confirmation of %s", account.Address.Hex())
			case <-ticker.C:
			}
		}
	}
	progress.Finish(bar)

	fmt.Fprintf(d.config.Out, "[OK] All funding transactions confirmed\n")
	return nil
}
