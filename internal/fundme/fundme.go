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

// Revert reasons and custom errors raised by FundMe
const (
	ReasonNotEnoughETH = "You need to spend more ETH!"
	ErrorNotOwner      = "FundMe__NotOwner"
)

// FundMe is a typed handle on a deployed FundMe contract
type FundMe struct {
	bound *contract.BoundContract
}

// NewFundMe binds the FundMe at address for signer
func NewFundMe(address common.Address, backend contract.Backend, signer *wallet.Signer) *FundMe {
	return &FundMe{
		bound: contract.NewBoundContract(FundMeName, address, ParsedFundMeABI(), backend, signer),
	}
}

// WrapFundMe wraps an existing handle, e.g. one returned by contract.Deploy
func WrapFundMe(bound *contract.BoundContract) *FundMe {
	return &FundMe{bound: bound}
}

// Address returns the contract address
func (f *FundMe) Address() common.Address {
	return f.bound.Address()
}

// Signer returns the connected account
func (f *FundMe) Signer() *wallet.Signer {
	return f.bound.Signer()
}

// Connect returns a handle on the same FundMe for another account
func (f *FundMe) Connect(signer *wallet.Signer) *FundMe {
	return &FundMe{bound: f.bound.Connect(signer)}
}

// Fund sends value to fund(); a nil value funds nothing
func (f *FundMe) Fund(ctx context.Context, value *big.Int) (*types.Transaction, error) {
	return f.bound.Transact(ctx, &contract.TransactOpts{Value: value}, "fund")
}

// Withdraw calls withdraw()
func (f *FundMe) Withdraw(ctx context.Context) (*types.Transaction, error) {
	return f.bound.Transact(ctx, nil, "withdraw")
}

// CheaperWithdraw calls cheaperWithdraw()
func (f *FundMe) CheaperWithdraw(ctx context.Context) (*types.Transaction, error) {
	return f.bound.Transact(ctx, nil, "cheaperWithdraw")
}

// GetFunder returns the funder at index
func (f *FundMe) GetFunder(ctx context.Context, index int64) (common.Address, error) {
	return f.callAddress(ctx, "getFunder", big.NewInt(index))
}

// GetAddressToAmountFunded returns the cumulative amount funded by addr
func (f *FundMe) GetAddressToAmountFunded(ctx context.Context, addr common.Address) (*big.Int, error) {
	return f.callUint(ctx, "getAddressToAmountFunded", addr)
}

// GetPriceFeed returns the configured price feed address
func (f *FundMe) GetPriceFeed(ctx context.Context) (common.Address, error) {
	return f.callAddress(ctx, "getPriceFeed")
}

// GetOwner returns the contract owner
func (f *FundMe) GetOwner(ctx context.Context) (common.Address, error) {
	return f.callAddress(ctx, "getOwner")
}

// GetVersion returns the price feed version
func (f *FundMe) GetVersion(ctx context.Context) (*big.Int, error) {
	return f.callUint(ctx, "getVersion")
}

// MinimumUSD returns the funding threshold in 18-decimal USD
func (f *FundMe) MinimumUSD(ctx context.Context) (*big.Int, error) {
	return f.callUint(ctx, "MINIMUM_USD")
}

func (f *FundMe) callAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	out, err := f.bound.Call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return addr, nil
}

func (f *FundMe) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := f.bound.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return toBig(method, out[0])
}

func toBig(method string, v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, v)
	}
	return n, nil
}
