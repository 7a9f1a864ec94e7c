package distributor

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	th "github.com/0xmhha/fundme-harness/internal/testing"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// mustParseBigInt parses a string to big.Int, panics on error
func mustParseBigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to parse big int: " + s)
	}
	return n
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Out = nil
	cfg.ShowProgress = false
	cfg.PollInterval = time.Millisecond
	return cfg
}

func testAccounts(t *testing.T, n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = th.RandomAddress(t)
	}
	return out
}

func TestConfig_RequiredFund(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		gasPrice *big.Int
		expected *big.Int
	}{
		{
			name:     "default config",
			config:   DefaultConfig(),
			gasPrice: big.NewInt(2000000000),
			// 2 * (1e18 + 150000*2e9) * 1.2
			expected: mustParseBigInt("2400720000000000000"),
		},
		{
			name:     "no buffer",
			config:   &Config{SendValue: big.NewInt(1000), FundCalls: 3, GasPerFund: 10},
			gasPrice: big.NewInt(1),
			expected: big.NewInt(3030),
		},
		{
			name:     "zero fund calls counts as one",
			config:   &Config{SendValue: big.NewInt(1000), GasPerFund: 10, BufferPercent: 10},
			gasPrice: big.NewInt(1),
			expected: big.NewInt(1111),
		},
		{
			name:     "gas only",
			config:   &Config{FundCalls: 1, GasPerFund: 21000},
			gasPrice: big.NewInt(1000000000),
			expected: big.NewInt(21000000000000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.RequiredFund(tt.gasPrice)
			assert.Equal(t, 0, got.Cmp(tt.expected), "got %s want %s", got, tt.expected)
		})
	}
}

func TestDistribute_AllFunded(t *testing.T) {
	client := th.NewMockClient()
	client.BalanceValue = th.Ether(100)
	master := wallet.NewSigner(th.MustParseKey(t, th.TestPrivateKey))

	result, err := New(client, testConfig()).Distribute(context.Background(), master, testAccounts(t, 5))
	require.NoError(t, err)

	assert.Len(t, result.ReadyAccounts, 5)
	assert.Empty(t, result.UnfundedAccounts)
	assert.Empty(t, result.Txs)
	assert.Zero(t, result.TotalDistributed.Sign())
	assert.Zero(t, client.GetCallCount("SendTransaction"))
}

func TestDistribute_TopsUpShortfall(t *testing.T) {
	client := th.NewMockClient()
	client.BalanceValue = big.NewInt(0)
	client.NonceValue = 4
	master := wallet.NewSigner(th.MustParseKey(t, th.TestPrivateKey))
	client.Balances[master.Address] = th.Ether(100)

	accounts := testAccounts(t, 3)
	client.Balances[accounts[1]] = th.Ether(1)

	cfg := testConfig()
	result, err := New(client, cfg).Distribute(context.Background(), master, accounts)
	require.NoError(t, err)

	required := cfg.RequiredFund(big.NewInt(2e9))
	require.Len(t, result.Txs, 3)
	assert.Len(t, result.ReadyAccounts, 3)

	// smallest shortfall goes first
	assert.Equal(t, accounts[1], *result.Txs[0].To())
	assert.Equal(t, 0, result.Txs[0].Value().Cmp(new(big.Int).Sub(required, th.Ether(1))))

	for i, tx := range result.Txs {
		assert.Equal(t, uint64(4+i), tx.Nonce())
		assert.Equal(t, uint64(21000), tx.Gas())
		assert.Equal(t, 0, tx.GasFeeCap().Cmp(big.NewInt(2e9)))
	}

	want := new(big.Int).Mul(required, big.NewInt(3))
	want.Sub(want, th.Ether(1))
	assert.Equal(t, 0, result.TotalDistributed.Cmp(want))
}

func TestDistribute_InsufficientMaster(t *testing.T) {
	client := th.NewMockClient()
	client.BalanceValue = big.NewInt(0)
	master := wallet.NewSigner(th.MustParseKey(t, th.TestPrivateKey))
	client.Balances[master.Address] = th.Ether(1)

	_, err := New(client, testConfig()).Distribute(context.Background(), master, testAccounts(t, 2))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, client.GetCallCount("SendTransaction"))
}

func TestDistribute_Partial(t *testing.T) {
	client := th.NewMockClient()
	client.BalanceValue = big.NewInt(0)
	master := wallet.NewSigner(th.MustParseKey(t, th.TestPrivateKey))
	client.Balances[master.Address] = th.Ether(3)

	result, err := New(client, testConfig()).Distribute(context.Background(), master, testAccounts(t, 3))
	require.NoError(t, err)

	assert.Len(t, result.ReadyAccounts, 1)
	assert.Len(t, result.UnfundedAccounts, 2)
	assert.Len(t, result.Txs, 1)
}

func TestDistribute_Errors(t *testing.T) {
	master := wallet.NewSigner(th.MustParseKey(t, th.TestPrivateKey))

	_, err := New(th.NewMockClient(), testConfig()).Distribute(context.Background(), master, nil)
	assert.ErrorIs(t, err, ErrNoAccountsToFund)

	client := th.NewMockClient()
	client.BalanceError = errors.New("rpc down")
	_, err = New(client, testConfig()).Distribute(context.Background(), master, testAccounts(t, 2))
	assert.ErrorContains(t, err, "rpc down")

	client = th.NewMockClient()
	client.ChainIDError = errors.New("no chain")
	_, err = New(client, testConfig()).Distribute(context.Background(), master, testAccounts(t, 2))
	assert.ErrorContains(t, err, "failed to get chain ID")

	client = th.NewMockClient()
	client.BalanceValue = big.NewInt(0)
	client.Balances[master.Address] = th.Ether(100)
	client.SendTransactionError = errors.New("nonce too low")
	_, err = New(client, testConfig()).Distribute(context.Background(), master, testAccounts(t, 1))
	assert.ErrorContains(t, err, "failed to send transfer tx")
}

func TestDistribute_SimChain(t *testing.T) {
	ctx := context.Background()
	w := th.DevWallet(t, 4)
	chain := th.NewFundedSimChain(w)

	funders := w.Addresses()[1:]
	for _, addr := range funders {
		chain.SetBalance(addr, big.NewInt(0))
	}

	d := New(chain, testConfig())
	result, err := d.Distribute(ctx, w.Deployer(), funders)
	require.NoError(t, err)
	require.Len(t, result.Txs, 3)

	require.NoError(t, d.WaitForFunding(ctx, result.ReadyAccounts, time.Second))
	for _, account := range result.ReadyAccounts {
		balance, err := chain.BalanceAt(ctx, account.Address, nil)
		require.NoError(t, err)
		assert.True(t, balance.Cmp(account.RequiredFund) >= 0)
	}
}

func TestWaitForFunding_Timeout(t *testing.T) {
	client := th.NewMockClient()
	client.BalanceValue = big.NewInt(0)

	accounts := []*AccountStatus{{Address: th.RandomAddress(t), RequiredFund: th.Ether(1)}}
	err := New(client, testConfig()).WaitForFunding(context.Background(), accounts, 20*time.Millisecond)
	assert.Error(t, err)
}
