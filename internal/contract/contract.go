package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xmhha/fundme-harness/internal/txbuilder"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// DefaultGasBufferPercent is added on top of every gas estimate
const DefaultGasBufferPercent = 20

// ErrNotDeployed is returned when a call targets an address without code
var ErrNotDeployed = errors.New("no contract code at address")

// Backend is the chain access a contract handle needs
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg *ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg *ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TransactOpts customises a state-changing call
type TransactOpts struct {
	Value    *big.Int
	GasLimit uint64 // 0 estimates
}

// BoundContract is a deployed contract bound to a calling account
type BoundContract struct {
	name    string
	address common.Address
	abi     *abi.ABI
	backend Backend
	signer  *wallet.Signer
}

// NewBoundContract creates a handle for the contract at address
func NewBoundContract(name string, address common.Address, parsed *abi.ABI, backend Backend, signer *wallet.Signer) *BoundContract {
	return &BoundContract{
		name:    name,
		address: address,
		abi:     parsed,
		backend: backend,
		signer:  signer,
	}
}

// Name returns the contract name
func (c *BoundContract) Name() string {
	return c.name
}

// Address returns the contract address
func (c *BoundContract) Address() common.Address {
	return c.address
}

// ABI returns the contract ABI
func (c *BoundContract) ABI() *abi.ABI {
	return c.abi
}

// Signer returns the connected account
func (c *BoundContract) Signer() *wallet.Signer {
	return c.signer
}

// Connect returns a handle on the same contract for another account
func (c *BoundContract) Connect(signer *wallet.Signer) *BoundContract {
	clone := *c
	clone.signer = signer
	return &clone
}

// Call performs a read-only call from the connected account and
// returns the unpacked outputs
func (c *BoundContract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := txbuilder.PackCall(c.abi, method, args...)
	if err != nil {
		return nil, err
	}

	msg := &ethereum.CallMsg{To: &c.address, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address
	}

	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		if revert := DecodeRevert(c.abi, method, err); revert != nil {
			return nil, revert
		}
		return nil, fmt.Errorf("failed to call %s.%s: %w", c.name, method, err)
	}

	if len(out) == 0 && len(c.abi.Methods[method].Outputs) > 0 {
		code, err := c.backend.CodeAt(ctx, c.address, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get code: %w", err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s at %s", ErrNotDeployed, c.name, c.address.Hex())
		}
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s.%s: %w", c.name, method, err)
	}
	return values, nil
}

// Transact sends a state-changing call signed by the connected account.
// Reverts detected during gas estimation are returned as *RevertError
// without sending anything.
func (c *BoundContract) Transact(ctx context.Context, opts *TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no signer connected to %s", c.name)
	}
	if opts == nil {
		opts = &TransactOpts{}
	}

	data, err := txbuilder.PackCall(c.abi, method, args...)
	if err != nil {
		return nil, err
	}

	return c.send(ctx, method, &c.address, opts, data)
}

func (c *BoundContract) send(ctx context.Context, method string, to *common.Address, opts *TransactOpts, data []byte) (*types.Transaction, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	builder := txbuilder.NewBaseBuilder(&txbuilder.BuilderConfig{
		ChainID:          chainID,
		GasBufferPercent: DefaultGasBufferPercent,
	}, c.backend)

	value := opts.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gas := opts.GasLimit
	if gas == 0 {
		estimated, err := c.backend.EstimateGas(ctx, &ethereum.CallMsg{
			From:  c.signer.Address,
			To:    to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			if revert := DecodeRevert(c.abi, method, err); revert != nil {
				return nil, revert
			}
			return nil, fmt.Errorf("failed to estimate gas for %s: %w", method, err)
		}
		gas = builder.WithBuffer(estimated)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.signer.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	var signed *txbuilder.SignedTx
	if to == nil {
		signed, err = builder.BuildDeploy(ctx, c.signer.Key, data, nonce, gas)
	} else {
		signed, err = builder.BuildCall(ctx, c.signer.Key, *to, data, value, nonce, gas)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transaction: %w", method, err)
	}

	if err := c.backend.SendTransaction(ctx, signed.Tx); err != nil {
		if revert := DecodeRevert(c.abi, method, err); revert != nil {
			return nil, revert
		}
		return nil, fmt.Errorf("failed to send %s transaction: %w", method, err)
	}

	return signed.Tx, nil
}

// Deploy sends the creation transaction for bytecode with constructor
// args. The returned handle is usable once the transaction settles.
func Deploy(
	ctx context.Context,
	backend Backend,
	signer *wallet.Signer,
	name string,
	parsed *abi.ABI,
	bytecode []byte,
	args ...interface{},
) (*BoundContract, *types.Transaction, error) {
	code, err := txbuilder.PackDeploy(parsed, bytecode, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack %s deployment: %w", name, err)
	}

	c := NewBoundContract(name, common.Address{}, parsed, backend, signer)
	tx, err := c.send(ctx, "constructor", nil, &TransactOpts{}, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to deploy %s: %w", name, err)
	}

	c.address = crypto.CreateAddress(signer.Address, tx.Nonce())
	return c, tx, nil
}
