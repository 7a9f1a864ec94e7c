package collector

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxConfirmStatus represents the confirmation status of a transaction
type TxConfirmStatus int

const (
	TxConfirmPending TxConfirmStatus = iota
	TxConfirmSuccess
	TxConfirmFailed
	TxConfirmTimeout
)

func (s TxConfirmStatus) String() string {
	switch s {
	case TxConfirmPending:
		return "PENDING"
	case TxConfirmSuccess:
		return "SUCCESS"
	case TxConfirmFailed:
		return "FAILED"
	case TxConfirmTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// TxInfo is one transaction sent during a run
type TxInfo struct {
	Hash        common.Hash
	From        common.Address
	To          *common.Address
	Case        string // test case that sent it
	Method      string
	Nonce       uint64
	GasLimit    uint64
	SentAt      time.Time
	ConfirmedAt time.Time
	Status      TxConfirmStatus
	Receipt     *types.Receipt
	GasUsed     uint64
	GasCost     *big.Int
	Latency     time.Duration
	Error       error
}

// Summary aggregates the ledger of a run
type Summary struct {
	TotalSent      int
	TotalConfirmed int
	TotalFailed    int
	TotalTimeout   int
	TotalPending   int

	TotalGasUsed uint64
	TotalGasCost *big.Int
	AvgLatency   time.Duration
	MaxLatency   time.Duration
}

// Config holds collector configuration
type Config struct {
	// PollInterval is the interval for polling receipts and blocks
	PollInterval time.Duration

	// ConfirmTimeout bounds a single Wait
	ConfirmTimeout time.Duration
}

// DefaultConfig returns default collector configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   500 * time.Millisecond,
		ConfirmTimeout: 5 * time.Minute,
	}
}
