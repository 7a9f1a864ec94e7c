package deploy

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/fundme-harness/internal/artifact"
	"github.com/0xmhha/fundme-harness/internal/collector"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/network"
	th "github.com/0xmhha/fundme-harness/internal/testing"
)

func newTestDeployer(t *testing.T, n *network.Network, dir string) (*Deployer, *th.SimChain, *bytes.Buffer) {
	t.Helper()
	w := th.DevWallet(t, 1)
	chain := th.NewFundedSimChain(w)
	waiter := collector.New(chain, &collector.Config{PollInterval: time.Millisecond, ConfirmTimeout: time.Second})
	out := &bytes.Buffer{}

	d := New(chain, waiter, w.Deployer(), th.SimArtifacts{}, &Config{
		Network:        n,
		DeploymentsDir: dir,
		Out:            out,
		Verbose:        true,
	})
	return d, chain, out
}

func TestFixture_AllOnMockNetwork(t *testing.T) {
	d, chain, out := newTestDeployer(t, th.SimNetwork(), "")
	ctx := context.Background()

	deployments, err := d.Fixture(ctx, TagAll)
	require.NoError(t, err)
	assert.Equal(t, []string{fundme.FundMeName, fundme.AggregatorName}, deployments.Names())

	mock, err := deployments.Get(fundme.AggregatorName)
	require.NoError(t, err)
	fm, err := deployments.Get(fundme.FundMeName)
	require.NoError(t, err)

	feed, err := fundme.WrapFundMe(fm.Contract).GetPriceFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, mock.Address, feed)

	code, err := chain.CodeAt(ctx, fm.Address, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	assert.Contains(t, out.String(), "Deploying mocks")
	assert.Contains(t, out.String(), "deployed at "+fm.Address.Hex())
}

func TestFixture_FreshEachCall(t *testing.T) {
	d, _, _ := newTestDeployer(t, th.SimNetwork(), "")
	ctx := context.Background()

	first, err := d.Fixture(ctx)
	require.NoError(t, err)
	second, err := d.Fixture(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first[fundme.FundMeName].Address, second[fundme.FundMeName].Address)
}

func TestFixture_LiveFeed(t *testing.T) {
	n := th.SimNetwork()
	n.PriceFeed = common.HexToAddress("0x694AA1769357215DE4FAC081bf1f309aDC325306")
	d, _, _ := newTestDeployer(t, n, "")

	deployments, err := d.Fixture(context.Background(), TagAll)
	require.NoError(t, err)

	_, err = deployments.Get(fundme.AggregatorName)
	assert.ErrorIs(t, err, ErrNotDeployed)

	fm, err := deployments.Get(fundme.FundMeName)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{n.PriceFeed}, fm.Args)
}

func TestFixture_FundMeWithoutMocks(t *testing.T) {
	d, _, _ := newTestDeployer(t, th.SimNetwork(), "")

	_, err := d.Fixture(context.Background(), TagFundMe)
	assert.ErrorIs(t, err, ErrNotDeployed)
}

func TestFixture_MocksOnly(t *testing.T) {
	d, _, _ := newTestDeployer(t, th.SimNetwork(), "")

	deployments, err := d.Fixture(context.Background(), TagMocks)
	require.NoError(t, err)
	assert.Equal(t, []string{fundme.AggregatorName}, deployments.Names())
}

func TestFixture_SavesDeployments(t *testing.T) {
	dir := t.TempDir()
	d, _, _ := newTestDeployer(t, th.SimNetwork(), dir)

	deployments, err := d.Fixture(context.Background(), TagAll)
	require.NoError(t, err)

	rec, err := artifact.LoadDeployment(dir, th.SimNetworkName, fundme.FundMeName)
	require.NoError(t, err)
	assert.Equal(t, deployments[fundme.FundMeName].Address, rec.Address)
	assert.Equal(t, []string{deployments[fundme.AggregatorName].Address.Hex()}, rec.Args)
	require.NotNil(t, rec.ABI)
	assert.Contains(t, rec.ABI.Methods, "cheaperWithdraw")

	chainID, err := artifact.ReadChainID(dir, th.SimNetworkName)
	require.NoError(t, err)
	assert.Equal(t, th.TestChainID.Uint64(), chainID)
}

func TestScriptMatches(t *testing.T) {
	s := MocksScript()
	assert.True(t, s.Matches([]string{TagAll}))
	assert.True(t, s.Matches([]string{"other", TagMocks}))
	assert.False(t, s.Matches([]string{TagFundMe}))
}

func TestNeedsMockFeed(t *testing.T) {
	assert.True(t, NeedsMockFeed(&network.Network{Name: "hardhat"}))
	assert.True(t, NeedsMockFeed(&network.Network{Name: "localhost", PriceFeed: common.HexToAddress("0x01")}))
	assert.True(t, NeedsMockFeed(&network.Network{Name: "anvil"}))
	assert.False(t, NeedsMockFeed(&network.Network{Name: "sepolia", PriceFeed: common.HexToAddress("0x01")}))
}
