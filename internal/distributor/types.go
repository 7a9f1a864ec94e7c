package distributor

import (
	"io"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// AccountStatus represents the funding status of a funder account
type AccountStatus struct {
	Address      common.Address
	Balance      *big.Int
	RequiredFund *big.Int
	MissingFund  *big.Int
	IsFunded     bool
}

// DistributionResult holds the result of a top-up
type DistributionResult struct {
	// Accounts that can afford their fund() calls
	ReadyAccounts []*AccountStatus

	// Accounts that could not be topped up
	UnfundedAccounts []*AccountStatus

	// Total amount transferred
	TotalDistributed *big.Int

	// Transfers sent, in nonce order
	Txs []*types.Transaction
}

// Config holds distribution configuration
type Config struct {
	// Value each funder sends per fund() call
	SendValue *big.Int

	// Number of fund() calls each funder makes during the run
	FundCalls int

	// Gas limit budgeted per fund() call
	GasPerFund uint64

	// Max fee per gas for calculations; nil uses twice the suggested price
	GasPrice *big.Int

	// Extra buffer percentage (e.g., 10 for 10% extra)
	BufferPercent int

	// Concurrent balance reads
	Concurrency int

	// Interval between balance polls in WaitForFunding
	PollInterval time.Duration

	Out          io.Writer
	ShowProgress bool
}

// DefaultConfig returns default distribution configuration
func DefaultConfig() *Config {
	return &Config{
		SendValue:     new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), // 1 ETH
		FundCalls:     2,
		GasPerFund:    150000,
		BufferPercent: 20,
		Concurrency:   8,
		PollInterval:  500 * time.Millisecond,
		Out:           os.Stdout,
		ShowProgress:  true,
	}
}

// RequiredFund returns what one funder needs at gasPrice:
// fundCalls * (sendValue + gasPerFund * gasPrice) * (1 + buffer/100)
func (c *Config) RequiredFund(gasPrice *big.Int) *big.Int {
	perCall := new(big.Int).Mul(new(big.Int).SetUint64(c.GasPerFund), gasPrice)
	if c.SendValue != nil {
		perCall.Add(perCall, c.SendValue)
	}

	calls := c.FundCalls
	if calls <= 0 {
		calls = 1
	}
	required := new(big.Int).Mul(perCall, big.NewInt(int64(calls)))

	if c.BufferPercent > 0 {
		buffer := new(big.Int).Mul(required, big.NewInt(int64(c.BufferPercent)))
		buffer.Div(buffer, big.NewInt(100))
		required.Add(required, buffer)
	}

	return required
}
