package txbuilder

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	testPrivateKey   = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testContractAddr = "0x1234567890123456789012345678901234567890"

	testABI = `[
		{"type":"constructor","inputs":[{"name":"priceFeed","type":"address"}]},
		{"type":"function","name":"fund","inputs":[],"outputs":[],"stateMutability":"payable"},
		{"type":"function","name":"getFunder","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
	]`
)

// mockGasEstimator implements GasEstimator for testing
type mockGasEstimator struct {
	gasPrice  *big.Int
	gasTipCap *big.Int
	err       error
}

func (m *mockGasEstimator) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.gasPrice == nil {
		return big.NewInt(1000000000), nil // 1 Gwei
	}
	return m.gasPrice, nil
}

func (m *mockGasEstimator) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.gasTipCap == nil {
		return big.NewInt(100000000), nil // 0.1 Gwei
	}
	return m.gasTipCap, nil
}

func newTestKey() *ecdsa.PrivateKey {
	key, _ := crypto.HexToECDSA(testPrivateKey)
	return key
}

func newTestBuilder(cfg *BuilderConfig) *BaseBuilder {
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(31337)
	}
	return NewBaseBuilder(cfg, &mockGasEstimator{})
}

func parseTestABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABI))
	if err != nil {
		t.Fatalf("failed to parse ABI: %v", err)
	}
	return &parsed
}

func TestGetGasSettings(t *testing.T) {
	tests := []struct {
		name      string
		config    *BuilderConfig
		estimator GasEstimator
		wantTip   int64
		wantFee   int64
		wantErr   bool
	}{
		{
			name:      "from estimator",
			config:    &BuilderConfig{ChainID: big.NewInt(1)},
			estimator: &mockGasEstimator{},
			wantTip:   100000000,
			wantFee:   2000000000,
		},
		{
			name: "configured caps",
			config: &BuilderConfig{
				ChainID:   big.NewInt(1),
				GasTipCap: big.NewInt(5),
				GasFeeCap: big.NewInt(50),
			},
			wantTip: 5,
			wantFee: 50,
		},
		{
			name: "tip clamped to fee cap",
			config: &BuilderConfig{
				ChainID:   big.NewInt(1),
				GasTipCap: big.NewInt(100),
				GasFeeCap: big.NewInt(50),
			},
			wantTip: 50,
			wantFee: 50,
		},
		{
			name:      "estimator error",
			config:    &BuilderConfig{ChainID: big.NewInt(1)},
			estimator: &mockGasEstimator{err: errors.New("rpc down")},
			wantErr:   true,
		},
		{
			name:    "no estimator and no caps",
			config:  &BuilderConfig{ChainID: big.NewInt(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBaseBuilder(tt.config, tt.estimator)
			tip, fee, err := b.GetGasSettings(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetGasSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tip.Int64() != tt.wantTip {
				t.Errorf("tip = %d, want %d", tip.Int64(), tt.wantTip)
			}
			if fee.Int64() != tt.wantFee {
				t.Errorf("fee = %d, want %d", fee.Int64(), tt.wantFee)
			}
		})
	}
}

func TestWithBuffer(t *testing.T) {
	tests := []struct {
		percent int
		gas     uint64
		want    uint64
	}{
		{0, 100000, 100000},
		{20, 100000, 120000},
		{-5, 100000, 100000},
	}

	for _, tt := range tests {
		b := newTestBuilder(&BuilderConfig{GasBufferPercent: tt.percent})
		if got := b.WithBuffer(tt.gas); got != tt.want {
			t.Errorf("WithBuffer(%d) with %d%% = %d, want %d", tt.gas, tt.percent, got, tt.want)
		}
	}
}

func TestBuild_SignsDynamicFeeTx(t *testing.T) {
	b := newTestBuilder(&BuilderConfig{})
	key := newTestKey()
	to := common.HexToAddress(testContractAddr)

	signed, err := b.Build(context.Background(), key, &TxRequest{
		To:    &to,
		Value: big.NewInt(7),
		Data:  []byte{0xb6, 0x0d, 0x42, 0x88},
		Nonce: 3,
		Gas:   60000,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if signed.Tx.Type() != types.DynamicFeeTxType {
		t.Errorf("tx type = %d, want %d", signed.Tx.Type(), types.DynamicFeeTxType)
	}
	if signed.Nonce != 3 || signed.Tx.Nonce() != 3 {
		t.Errorf("nonce = %d, want 3", signed.Tx.Nonce())
	}
	if signed.GasLimit != 60000 {
		t.Errorf("GasLimit = %d, want 60000", signed.GasLimit)
	}
	if signed.Tx.Value().Int64() != 7 {
		t.Errorf("value = %s, want 7", signed.Tx.Value())
	}
	if signed.Hash != signed.Tx.Hash() {
		t.Error("Hash should match the signed transaction hash")
	}
	if len(signed.RawTx) == 0 {
		t.Error("RawTx should not be empty")
	}

	sender, err := types.Sender(types.NewLondonSigner(big.NewInt(31337)), signed.Tx)
	if err != nil {
		t.Fatalf("failed to recover sender: %v", err)
	}
	if sender != AddressFromKey(key) || signed.From != sender {
		t.Errorf("sender = %s, want %s", sender.Hex(), AddressFromKey(key).Hex())
	}
}

func TestBuild_Validation(t *testing.T) {
	b := newTestBuilder(&BuilderConfig{})

	if _, err := b.Build(context.Background(), nil, &TxRequest{Gas: 21000}); err == nil {
		t.Error("expected error for nil key")
	}
	if _, err := b.Build(context.Background(), newTestKey(), &TxRequest{}); err == nil {
		t.Error("expected error for zero gas")
	}
}

func TestBuildTransfer(t *testing.T) {
	b := newTestBuilder(&BuilderConfig{})
	to := common.HexToAddress(testContractAddr)

	signed, err := b.BuildTransfer(context.Background(), newTestKey(), to, big.NewInt(1e18), 0)
	if err != nil {
		t.Fatalf("BuildTransfer() error: %v", err)
	}
	if signed.GasLimit != TransferGas {
		t.Errorf("GasLimit = %d, want %d", signed.GasLimit, TransferGas)
	}
	if *signed.Tx.To() != to {
		t.Errorf("To = %s, want %s", signed.Tx.To().Hex(), to.Hex())
	}

	if _, err := b.BuildTransfer(context.Background(), newTestKey(), to, big.NewInt(0), 0); err == nil {
		t.Error("expected error for zero value")
	}
}

func TestBuildCallAndDeploy(t *testing.T) {
	b := newTestBuilder(&BuilderConfig{})
	parsed := parseTestABI(t)

	data, err := PackCall(parsed, "fund")
	if err != nil {
		t.Fatalf("PackCall() error: %v", err)
	}

	signed, err := b.BuildCall(context.Background(), newTestKey(), common.HexToAddress(testContractAddr), data, big.NewInt(1), 1, 80000)
	if err != nil {
		t.Fatalf("BuildCall() error: %v", err)
	}
	if string(signed.Tx.Data()) != string(data) {
		t.Error("call data mismatch")
	}

	if _, err := b.BuildCall(context.Background(), newTestKey(), common.Address{}, data, nil, 1, 80000); err == nil {
		t.Error("expected error for zero contract address")
	}

	code, err := PackDeploy(parsed, []byte{0x60, 0x80}, common.HexToAddress(testContractAddr))
	if err != nil {
		t.Fatalf("PackDeploy() error: %v", err)
	}
	deploy, err := b.BuildDeploy(context.Background(), newTestKey(), code, 2, 500000)
	if err != nil {
		t.Fatalf("BuildDeploy() error: %v", err)
	}
	if deploy.Tx.To() != nil {
		t.Error("deploy transaction must not have a recipient")
	}
}

func TestPackCall(t *testing.T) {
	parsed := parseTestABI(t)

	data, err := PackCall(parsed, "getFunder", big.NewInt(0))
	if err != nil {
		t.Fatalf("PackCall() error: %v", err)
	}
	if len(data) != 4+32 {
		t.Errorf("len(data) = %d, want 36", len(data))
	}

	if _, err := PackCall(parsed, "missing"); err == nil {
		t.Error("expected error for unknown method")
	}
	if _, err := PackCall(parsed, "getFunder", "not a number"); err == nil {
		t.Error("expected error for bad argument")
	}
}

func TestPackDeploy(t *testing.T) {
	parsed := parseTestABI(t)
	bytecode := []byte{0x60, 0x80, 0x60, 0x40}
	feed := common.HexToAddress(testContractAddr)

	code, err := PackDeploy(parsed, bytecode, feed)
	if err != nil {
		t.Fatalf("PackDeploy() error: %v", err)
	}
	if len(code) != len(bytecode)+32 {
		t.Fatalf("len(code) = %d, want %d", len(code), len(bytecode)+32)
	}
	if common.BytesToAddress(code[len(bytecode):]) != feed {
		t.Error("constructor argument not appended after bytecode")
	}

	if _, err := PackDeploy(parsed, nil, feed); err == nil {
		t.Error("expected error for empty bytecode")
	}
}
