package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xmhha/fundme-harness/internal/fundme"
)

// Creation code markers recognised by SimChain
var (
	FundMeCode     = []byte("simchain:FundMe")
	AggregatorCode = []byte("simchain:MockV3Aggregator")
)

// Gas charged by SimChain per operation
const (
	SimGasTransfer         uint64 = 21000
	SimGasDeployFundMe     uint64 = 850000
	SimGasDeployAggregator uint64 = 390000
	SimGasFund             uint64 = 88000
	SimGasWithdrawBase     uint64 = 32000
	SimGasWithdrawPer      uint64 = 7000
	SimGasCheaperPer       uint64 = 5000
	SimGasUpdateAnswer     uint64 = 34000
	SimGasCall             uint64 = 30000
)

// SimMinimumUSD is FundMe's funding threshold (50 USD, 18 decimals)
var SimMinimumUSD = new(big.Int).Mul(big.NewInt(50), big.NewInt(1e18))

var (
	errorStringSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector       = crypto.Keccak256([]byte("Panic(uint256)"))[:4]
	stringType, _       = abi.NewType("string", "", nil)
	uint256Type, _      = abi.NewType("uint256", "", nil)
)

// SimRevertError is a revert as reported by a JSON-RPC node; it satisfies
// rpc.DataError
type SimRevertError struct {
	Data []byte
}

func (e *SimRevertError) Error() string { return "execution reverted" }

// ErrorData returns the hex-encoded revert data
func (e *SimRevertError) ErrorData() interface{} { return hexutil.Encode(e.Data) }

func revertReason(reason string) *SimRevertError {
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	return &SimRevertError{Data: append(append([]byte{}, errorStringSelector...), packed...)}
}

func revertCustom(parsed *abi.ABI, name string) *SimRevertError {
	id := parsed.Errors[name].ID
	return &SimRevertError{Data: append([]byte{}, id[:4]...)}
}

func revertPanic(code int64) *SimRevertError {
	packed, _ := abi.Arguments{{Type: uint256Type}}.Pack(big.NewInt(code))
	return &SimRevertError{Data: append(append([]byte{}, panicSelector...), packed...)}
}

type simFundMe struct {
	owner     common.Address
	priceFeed common.Address
	amounts   map[common.Address]*big.Int
	funders   []common.Address
}

type simAggregator struct {
	decimals  uint8
	answer    *big.Int
	round     *big.Int
	updatedAt *big.Int
}

type simContract struct {
	code       []byte
	fundMe     *simFundMe
	aggregator *simAggregator
}

// effect is a validated state change, applied only on success
type effect struct {
	gas    uint64
	ret    []byte
	apply  func()
	revert *SimRevertError
}

// SimChain is an in-memory chain executing FundMe and MockV3Aggregator
// semantics behind the RPC client interface. Every transaction mines a
// block.
type SimChain struct {
	mu sync.Mutex

	chainID   *big.Int
	baseFee   *big.Int
	tipCap    *big.Int
	block     uint64
	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	contracts map[common.Address]*simContract
	receipts  map[common.Hash]*types.Receipt

	// HoldReceipts keeps receipts hidden, as if never mined
	HoldReceipts bool

	// SendError, when set, is returned by every SendTransaction
	SendError error

	sent []*types.Transaction
}

// NewSimChain creates a chain where every account in funded holds 10000 ETH
func NewSimChain(chainID *big.Int, funded ...common.Address) *SimChain {
	s := &SimChain{
		chainID:   new(big.Int).Set(chainID),
		baseFee:   Gwei(1),
		tipCap:    Gwei(1),
		block:     1,
		balances:  make(map[common.Address]*big.Int),
		nonces:    make(map[common.Address]uint64),
		contracts: make(map[common.Address]*simContract),
		receipts:  make(map[common.Hash]*types.Receipt),
	}
	for _, addr := range funded {
		s.balances[addr] = Ether(10000)
	}
	return s
}

// SetBalance overrides the balance of addr
func (s *SimChain) SetBalance(addr common.Address, wei *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = new(big.Int).Set(wei)
}

// Sent returns the transactions accepted so far
func (s *SimChain) Sent() []*types.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Transaction, len(s.sent))
	copy(out, s.sent)
	return out
}

// Close is a no-op
func (s *SimChain) Close() {}

// ChainID returns the chain ID
func (s *SimChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.chainID), nil
}

// BlockNumber returns the head block
func (s *SimChain) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block, nil
}

// HeaderByNumber returns a minimal head header
func (s *SimChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &types.Header{
		Number:   new(big.Int).SetUint64(s.block),
		GasLimit: 30000000,
		BaseFee:  new(big.Int).Set(s.baseFee),
	}, nil
}

// BalanceAt returns the current balance of account
func (s *SimChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balanceOf(account)), nil
}

// CodeAt returns the creation marker of a contract, or nil for EOAs
func (s *SimChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contracts[account]; ok {
		return c.code, nil
	}
	return nil, nil
}

// PendingNonceAt returns the next nonce of account
func (s *SimChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[account], nil
}

// SuggestGasPrice returns base fee plus tip
func (s *SimChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Add(s.baseFee, s.tipCap), nil
}

// SuggestGasTipCap returns the tip
func (s *SimChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.tipCap), nil
}

// EstimateGas dry-runs msg and returns its gas, or the revert
func (s *SimChain) EstimateGas(ctx context.Context, msg *ethereum.CallMsg) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eff, err := s.execute(msg.From, msg.To, msg.Value, msg.Data, 0)
	if err != nil {
		return 0, err
	}
	if eff.revert != nil {
		return 0, eff.revert
	}
	return eff.gas, nil
}

// CallContract runs a read-only call
func (s *SimChain) CallContract(ctx context.Context, msg *ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eff, err := s.execute(msg.From, msg.To, msg.Value, msg.Data, 0)
	if err != nil {
		return nil, err
	}
	if eff.revert != nil {
		return nil, eff.revert
	}
	return eff.ret, nil
}

// SendTransaction validates, executes and mines tx
func (s *SimChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if s.SendError != nil {
		return s.SendError
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := types.Sender(types.LatestSignerForChainID(s.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.ChainId().Cmp(s.chainID) != 0 {
		return fmt.Errorf("invalid chain id %s, want %s", tx.ChainId(), s.chainID)
	}
	if want := s.nonces[from]; tx.Nonce() != want {
		return fmt.Errorf("invalid nonce: have %d, want %d", tx.Nonce(), want)
	}
	if tx.GasFeeCap().Cmp(s.baseFee) < 0 {
		return errors.New("max fee per gas less than block base fee")
	}

	maxCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasFeeCap())
	maxCost.Add(maxCost, tx.Value())
	if s.balanceOf(from).Cmp(maxCost) < 0 {
		return errors.New("insufficient funds for gas * price + value")
	}

	eff, err := s.execute(from, tx.To(), tx.Value(), tx.Data(), tx.Nonce())
	if err != nil {
		return err
	}

	status := types.ReceiptStatusSuccessful
	gasUsed := eff.gas
	if eff.revert != nil {
		status = types.ReceiptStatusFailed
		gasUsed = SimGasCall
	}
	if gasUsed > tx.Gas() {
		status = types.ReceiptStatusFailed // out of gas
		gasUsed = tx.Gas()
	}

	price := effectivePrice(tx, s.baseFee)
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), price)

	s.nonces[from]++
	s.debit(from, fee)
	if status == types.ReceiptStatusSuccessful {
		eff.apply()
	}
	s.block++

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: gasUsed,
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		EffectiveGasPrice: price,
		BlockNumber:       new(big.Int).SetUint64(s.block),
	}
	if tx.To() == nil && status == types.ReceiptStatusSuccessful {
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
	}
	s.receipts[tx.Hash()] = receipt
	s.sent = append(s.sent, tx)
	return nil
}

// TransactionReceipt returns the receipt of a mined transaction
func (s *SimChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.receipts[txHash]
	if !ok || s.HoldReceipts {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func effectivePrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price = new(big.Int).Set(tx.GasFeeCap())
	}
	return price
}

func (s *SimChain) balanceOf(addr common.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (s *SimChain) debit(addr common.Address, wei *big.Int) {
	s.balances[addr] = new(big.Int).Sub(s.balanceOf(addr), wei)
}

func (s *SimChain) credit(addr common.Address, wei *big.Int) {
	s.balances[addr] = new(big.Int).Add(s.balanceOf(addr), wei)
}

// transferValue moves value from one account to another as part of apply
func (s *SimChain) transferValue(from, to common.Address, value *big.Int) {
	if value == nil || value.Sign() == 0 {
		return
	}
	s.debit(from, value)
	s.credit(to, value)
}

// execute validates a message against current state and returns the
// effect that would apply it; state is not touched
func (s *SimChain) execute(from common.Address, to *common.Address, value *big.Int, data []byte, nonce uint64) (*effect, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() > 0 && s.balanceOf(from).Cmp(value) < 0 {
		return nil, errors.New("insufficient funds for transfer")
	}

	if to == nil {
		return s.create(from, value, data, nonce)
	}

	c, ok := s.contracts[*to]
	if !ok {
		// plain account: value transfer, calls return nothing
		return &effect{
			gas:   SimGasTransfer,
			apply: func() { s.transferValue(from, *to, value) },
		}, nil
	}

	switch {
	case c.fundMe != nil:
		return s.callFundMe(c.fundMe, *to, from, value, data)
	case c.aggregator != nil:
		return s.callAggregator(c.aggregator, data)
	}
	return &effect{revert: &SimRevertError{}}, nil
}

func (s *SimChain) create(from common.Address, value *big.Int, data []byte, nonce uint64) (*effect, error) {
	addr := crypto.CreateAddress(from, nonce)

	switch {
	case bytes.HasPrefix(data, FundMeCode):
		parsed := fundme.ParsedFundMeABI()
		args, err := parsed.Constructor.Inputs.Unpack(data[len(FundMeCode):])
		if err != nil {
			return nil, fmt.Errorf("invalid FundMe constructor arguments: %w", err)
		}
		feed := args[0].(common.Address)
		return &effect{
			gas: SimGasDeployFundMe,
			apply: func() {
				s.contracts[addr] = &simContract{
					code: FundMeCode,
					fundMe: &simFundMe{
						owner:     from,
						priceFeed: feed,
						amounts:   make(map[common.Address]*big.Int),
					},
				}
			},
		}, nil

	case bytes.HasPrefix(data, AggregatorCode):
		parsed := fundme.ParsedAggregatorABI()
		args, err := parsed.Constructor.Inputs.Unpack(data[len(AggregatorCode):])
		if err != nil {
			return nil, fmt.Errorf("invalid aggregator constructor arguments: %w", err)
		}
		decimals := args[0].(uint8)
		answer := args[1].(*big.Int)
		return &effect{
			gas: SimGasDeployAggregator,
			apply: func() {
				s.contracts[addr] = &simContract{
					code: AggregatorCode,
					aggregator: &simAggregator{
						decimals:  decimals,
						answer:    new(big.Int).Set(answer),
						round:     big.NewInt(1),
						updatedAt: new(big.Int).SetUint64(s.block),
					},
				}
			},
		}, nil
	}

	return nil, errors.New("unsupported creation code")
}

func (s *SimChain) callFundMe(f *simFundMe, self, from common.Address, value *big.Int, data []byte) (*effect, error) {
	parsed := fundme.ParsedFundMeABI()

	// receive() and fallback() route to fund()
	if len(data) < 4 {
		return s.fund(f, self, from, value), nil
	}

	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return s.fund(f, self, from, value), nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("invalid %s arguments: %w", method.Name, err)
	}

	view := func(values ...interface{}) (*effect, error) {
		ret, err := method.Outputs.Pack(values...)
		if err != nil {
			return nil, err
		}
		return &effect{gas: SimGasCall, ret: ret, apply: func() {}}, nil
	}

	switch method.Name {
	case "fund":
		return s.fund(f, self, from, value), nil

	case "withdraw", "cheaperWithdraw":
		if from != f.owner {
			return &effect{revert: revertCustom(parsed, fundme.ErrorNotOwner)}, nil
		}
		per := SimGasWithdrawPer
		if method.Name == "cheaperWithdraw" {
			per = SimGasCheaperPer
		}
		return &effect{
			gas: SimGasWithdrawBase + per*uint64(len(f.funders)),
			apply: func() {
				for _, funder := range f.funders {
					f.amounts[funder] = big.NewInt(0)
				}
				f.funders = nil
				s.transferValue(from, self, value)
				s.transferValue(self, f.owner, new(big.Int).Set(s.balanceOf(self)))
			},
		}, nil

	case "getFunder":
		index := args[0].(*big.Int)
		if !index.IsInt64() || index.Int64() >= int64(len(f.funders)) {
			return &effect{revert: revertPanic(0x32)}, nil
		}
		return view(f.funders[index.Int64()])

	case "getAddressToAmountFunded":
		amount, ok := f.amounts[args[0].(common.Address)]
		if !ok {
			amount = big.NewInt(0)
		}
		return view(amount)

	case "getOwner":
		return view(f.owner)

	case "getPriceFeed":
		return view(f.priceFeed)

	case "getVersion":
		return view(big.NewInt(0))

	case "MINIMUM_USD":
		return view(SimMinimumUSD)
	}

	return nil, fmt.Errorf("unsupported FundMe method %s", method.Name)
}

func (s *SimChain) fund(f *simFundMe, self, from common.Address, value *big.Int) *effect {
	feed, ok := s.contracts[f.priceFeed]
	if !ok || feed.aggregator == nil {
		return &effect{revert: &SimRevertError{}}
	}

	if usdValue(feed.aggregator, value).Cmp(SimMinimumUSD) < 0 {
		return &effect{revert: revertReason(fundme.ReasonNotEnoughETH)}
	}

	return &effect{
		gas: SimGasFund,
		apply: func() {
			s.transferValue(from, self, value)
			prev, ok := f.amounts[from]
			if !ok {
				prev = big.NewInt(0)
			}
			if !containsAddress(f.funders, from) {
				f.funders = append(f.funders, from)
			}
			f.amounts[from] = new(big.Int).Add(prev, value)
		},
	}
}

// usdValue converts wei to 18-decimal USD using the feed answer
func usdValue(a *simAggregator, wei *big.Int) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-int(a.decimals))), nil)
	price := new(big.Int).Mul(a.answer, scale)
	usd := new(big.Int).Mul(price, wei)
	return usd.Div(usd, big.NewInt(1e18))
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func (s *SimChain) callAggregator(a *simAggregator, data []byte) (*effect, error) {
	parsed := fundme.ParsedAggregatorABI()
	if len(data) < 4 {
		return &effect{revert: &SimRevertError{}}, nil
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return &effect{revert: &SimRevertError{}}, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("invalid %s arguments: %w", method.Name, err)
	}

	view := func(values ...interface{}) (*effect, error) {
		ret, err := method.Outputs.Pack(values...)
		if err != nil {
			return nil, err
		}
		return &effect{gas: SimGasCall, ret: ret, apply: func() {}}, nil
	}

	switch method.Name {
	case "decimals":
		return view(a.decimals)
	case "latestAnswer":
		return view(a.answer)
	case "version":
		return view(big.NewInt(0))
	case "latestRoundData":
		return view(a.round, a.answer, a.updatedAt, a.updatedAt, a.round)
	case "updateAnswer":
		answer := args[0].(*big.Int)
		return &effect{
			gas: SimGasUpdateAnswer,
			apply: func() {
				a.answer = new(big.Int).Set(answer)
				a.round = new(big.Int).Add(a.round, big.NewInt(1))
				a.updatedAt = new(big.Int).SetUint64(s.block)
			},
		}, nil
	}

	return nil, fmt.Errorf("unsupported aggregator method %s", method.Name)
}
