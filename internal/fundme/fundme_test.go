package fundme_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/fundme-harness/internal/contract"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/network"
	th "github.com/0xmhha/fundme-harness/internal/testing"
)

func TestParsedABIs(t *testing.T) {
	fm := fundme.ParsedFundMeABI()
	for _, m := range []string{"fund", "withdraw", "cheaperWithdraw", "getFunder", "getAddressToAmountFunded", "getPriceFeed", "getOwner", "getVersion", "MINIMUM_USD"} {
		assert.Contains(t, fm.Methods, m)
	}
	assert.Contains(t, fm.Errors, fundme.ErrorNotOwner)
	assert.True(t, fm.HasReceive())
	assert.True(t, fm.HasFallback())

	agg := fundme.ParsedAggregatorABI()
	for _, m := range []string{"decimals", "latestRoundData", "updateAnswer", "version"} {
		assert.Contains(t, agg.Methods, m)
	}
	assert.Same(t, fm, fundme.ParsedFundMeABI())
}

func TestBindings(t *testing.T) {
	ctx := context.Background()
	w := th.DevWallet(t, 2)
	chain := th.NewFundedSimChain(w)
	deployer := w.Deployer()

	aggBound, _, err := contract.Deploy(ctx, chain, deployer, fundme.AggregatorName, fundme.ParsedAggregatorABI(),
		th.AggregatorCode, uint8(network.Decimals), new(big.Int).Set(network.InitialAnswer))
	require.NoError(t, err)
	agg := fundme.NewAggregator(aggBound.Address(), chain, deployer)

	fmBound, _, err := contract.Deploy(ctx, chain, deployer, fundme.FundMeName, fundme.ParsedFundMeABI(),
		th.FundMeCode, agg.Address())
	require.NoError(t, err)
	fm := fundme.NewFundMe(fmBound.Address(), chain, deployer)

	minimum, err := fm.MinimumUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, minimum.Cmp(th.SimMinimumUSD))

	version, err := fm.GetVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version.Sign())

	// halve the price: 0.02 ETH is then worth 20 USD, below the minimum
	_, err = agg.UpdateAnswer(ctx, big.NewInt(100000000000))
	require.NoError(t, err)

	round, err := agg.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), round.RoundID.Int64())
	assert.Equal(t, int64(100000000000), round.Answer.Int64())

	_, err = fm.Fund(ctx, new(big.Int).Div(th.Ether(1), big.NewInt(50)))
	revert, ok := contract.AsRevert(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, fundme.ReasonNotEnoughETH, revert.Reason)

	funder, err := w.Signer(1)
	require.NoError(t, err)
	_, err = fm.Connect(funder).Fund(ctx, th.Ether(1))
	require.NoError(t, err)
	assert.Equal(t, funder, fm.Connect(funder).Signer())

	amount, err := fm.GetAddressToAmountFunded(ctx, funder.Address)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(th.Ether(1)))

	_, err = fm.Withdraw(ctx)
	require.NoError(t, err)

	amount, err = fm.GetAddressToAmountFunded(ctx, funder.Address)
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())
}
