package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrConfirmTimeout is returned when a transaction does not reach the
	// requested confirmation depth in time
	ErrConfirmTimeout = errors.New("timed out waiting for confirmation")

	// ErrTxFailed is returned when a transaction settles with status 0
	ErrTxFailed = errors.New("transaction failed")
)

// Client interface for collector operations
type Client interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Collector waits for transactions to settle and keeps a ledger of them
type Collector struct {
	client Client
	config *Config

	mu     sync.RWMutex
	txs    []*TxInfo
	txCase string

	onSettled func(*TxInfo)
}

// New creates a new Collector instance
func New(client Client, config *Config) *Collector {
	if config == nil {
		config = DefaultConfig()
	}

	return &Collector{
		client: client,
		config: config,
		txs:    make([]*TxInfo, 0),
	}
}

// SetCase labels transactions tracked from now on with the given case name
func (c *Collector) SetCase(name string) {
	c.mu.Lock()
	c.txCase = name
	c.mu.Unlock()
}

// OnSettled registers a callback invoked for every settled transaction
func (c *Collector) OnSettled(fn func(*TxInfo)) {
	c.mu.Lock()
	c.onSettled = fn
	c.mu.Unlock()
}

// GasCost returns the fee paid by a settled transaction
func GasCost(receipt *types.Receipt) *big.Int {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
}

// Wait blocks until tx is mined with the given number of confirmations
// and returns its receipt. A reverted transaction returns its receipt
// together with ErrTxFailed.
func (c *Collector) Wait(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	return c.WaitMethod(ctx, tx, "", confirmations)
}

// WaitMethod is Wait with the called method recorded in the ledger
func (c *Collector) WaitMethod(ctx context.Context, tx *types.Transaction, method string, confirmations uint64) (*types.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	info := c.track(tx, method)

	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmTimeout)
	defer cancel()

	receipt, err := c.pollReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, c.settleError(info, err)
	}

	if confirmations > 1 {
		target := receipt.BlockNumber.Uint64() + confirmations - 1
		if err := c.pollHead(ctx, target); err != nil {
			return nil, c.settleError(info, err)
		}
	}

	c.settle(info, receipt)

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTxFailed, tx.Hash().Hex())
	}
	return receipt, nil
}

func (c *Collector) track(tx *types.Transaction, method string) *TxInfo {
	info := &TxInfo{
		Hash:     tx.Hash(),
		To:       tx.To(),
		Method:   method,
		Nonce:    tx.Nonce(),
		GasLimit: tx.Gas(),
		SentAt:   time.Now(),
		Status:   TxConfirmPending,
		GasCost:  big.NewInt(0),
	}
	if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		info.From = from
	}

	c.mu.Lock()
	info.Case = c.txCase
	c.txs = append(c.txs, info)
	c.mu.Unlock()

	return info
}

// pollReceipt polls until the receipt is available
func (c *Collector) pollReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, waitError(ctx)
		case <-ticker.C:
		}
	}
}

// pollHead polls until the chain head reaches target
func (c *Collector) pollHead(ctx context.Context, target uint64) error {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		head, err := c.client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		if head >= target {
			return nil
		}

		select {
		case <-ctx.Done():
			return waitError(ctx)
		case <-ticker.C:
		}
	}
}

func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrConfirmTimeout
	}
	return ctx.Err()
}

func (c *Collector) settle(info *TxInfo, receipt *types.Receipt) {
	c.mu.Lock()
	info.ConfirmedAt = time.Now()
	info.Latency = info.ConfirmedAt.Sub(info.SentAt)
	info.Receipt = receipt
	info.GasUsed = receipt.GasUsed
	info.GasCost = GasCost(receipt)
	if receipt.Status == types.ReceiptStatusSuccessful {
		info.Status = TxConfirmSuccess
	} else {
		info.Status = TxConfirmFailed
		info.Error = ErrTxFailed
	}
	onSettled := c.onSettled
	c.mu.Unlock()

	if onSettled != nil {
		onSettled(info)
	}
}

func (c *Collector) settleError(info *TxInfo, err error) error {
	c.mu.Lock()
	info.Error = err
	if errors.Is(err, ErrConfirmTimeout) {
		info.Status = TxConfirmTimeout
	}
	c.mu.Unlock()
	return err
}

// Transactions returns a copy of the ledger in send order
func (c *Collector) Transactions() []*TxInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*TxInfo, len(c.txs))
	copy(out, c.txs)
	return out
}

// Summary aggregates the ledger
func (c *Collector) Summary() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Summary{
		TotalSent:    len(c.txs),
		TotalGasCost: big.NewInt(0),
	}

	var totalLatency time.Duration
	settled := 0
	for _, tx := range c.txs {
		switch tx.Status {
		case TxConfirmSuccess:
			s.TotalConfirmed++
		case TxConfirmFailed:
			s.TotalFailed++
		case TxConfirmTimeout:
			s.TotalTimeout++
		case TxConfirmPending:
			s.TotalPending++
		}

		if tx.Receipt == nil {
			continue
		}
		settled++
		s.TotalGasUsed += tx.GasUsed
		s.TotalGasCost.Add(s.TotalGasCost, tx.GasCost)
		totalLatency += tx.Latency
		if tx.Latency > s.MaxLatency {
			s.MaxLatency = tx.Latency
		}
	}

	if settled > 0 {
		s.AvgLatency = totalLatency / time.Duration(settled)
	}
	return s
}

// PrintSummary writes the ledger summary
func (c *Collector) PrintSummary(w io.Writer) {
	s := c.Summary()

	fmt.Fprintf(w, "\nTransactions:\n")
	fmt.Fprintf(w, "  Total Sent:      %d\n", s.TotalSent)
	fmt.Fprintf(w, "  Confirmed:       %d\n", s.TotalConfirmed)
	fmt.Fprintf(w, "  Failed:          %d\n", s.TotalFailed)
	fmt.Fprintf(w, "  Timeout:         %d\n", s.TotalTimeout)
	if s.TotalPending > 0 {
		fmt.Fprintf(w, "  Pending:         %d\n", s.TotalPending)
	}

	if s.TotalGasUsed > 0 {
		fmt.Fprintf(w, "\nGas:\n")
		fmt.Fprintf(w, "  Total Used:      %d\n", s.TotalGasUsed)
		fmt.Fprintf(w, "  Total Cost:      %s wei\n", s.TotalGasCost.String())
		fmt.Fprintf(w, "  Avg Latency:     %s\n", s.AvgLatency)
	}
}

// Reset clears the ledger
func (c *Collector) Reset() {
	c.mu.Lock()
	c.txs = make([]*TxInfo, 0)
	c.txCase = ""
	c.mu.Unlock()
}
