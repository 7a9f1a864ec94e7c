package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/fundme-harness/internal/config"
	"github.com/0xmhha/fundme-harness/internal/deploy"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/network"
	th "github.com/0xmhha/fundme-harness/internal/testing"
)

var errTestError = errors.New("test error")

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected string
	}{
		{StageInit, "INITIALIZE"},
		{StageFund, "FUND"},
		{StageRun, "RUN"},
		{StageReport, "REPORT"},
		{StageComplete, "COMPLETE"},
		{Stage(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.stage.String())
		})
	}
}

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()

	assert.False(t, cfg.SkipFunding)
	assert.False(t, cfg.ShowProgress)
	assert.Equal(t, 10*time.Minute, cfg.CaseTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
}

func TestNewResult(t *testing.T) {
	result := NewResult()

	assert.NotNil(t, result)
	assert.False(t, result.StartTime.IsZero())
	assert.NotNil(t, result.StageResults)
	assert.NotNil(t, result.Errors)
	assert.Empty(t, result.StageResults)
	assert.Empty(t, result.Errors)
}

func TestResult_AddStageResult(t *testing.T) {
	result := NewResult()

	result.AddStageResult(&StageResult{Stage: StageInit, Success: true, Duration: time.Second})
	assert.Len(t, result.StageResults, 1)
	assert.Empty(t, result.Errors)

	result.AddStageResult(&StageResult{Stage: StageFund, Success: false, Error: errTestError})
	assert.Len(t, result.StageResults, 2)
	assert.Len(t, result.Errors, 1)
}

func TestResult_Success(t *testing.T) {
	tests := []struct {
		name        string
		stages      []bool
		casesFailed int
		expected    bool
	}{
		{"all stages ok", []bool{true, true, true}, 0, true},
		{"failed stage", []bool{true, false}, 0, false},
		{"failed case", []bool{true, true, true}, 1, false},
		{"no stages", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewResult()
			for _, ok := range tt.stages {
				result.AddStageResult(&StageResult{Success: ok})
			}
			result.CasesFailed = tt.casesFailed
			assert.Equal(t, tt.expected, result.Success())
		})
	}
}

func TestResult_Finalize(t *testing.T) {
	result := NewResult()
	result.Finalize()

	assert.False(t, result.EndTime.Before(result.StartTime))
	assert.Equal(t, result.EndTime.Sub(result.StartTime), result.Duration)
}

type simPipeline struct {
	pipeline *Pipeline
	chain    *th.SimChain
	cfg      *config.Config
	out      *bytes.Buffer
}

func newSimPipeline(t *testing.T, cfg *config.Config, n *network.Network) *simPipeline {
	t.Helper()
	require.NoError(t, cfg.Validate())

	w := th.DevWallet(t, int(cfg.Accounts))
	chain := th.NewFundedSimChain(w)
	out := &bytes.Buffer{}

	p := NewWithBackend(cfg, chain, n, w).
		WithArtifacts(th.SimArtifacts{}).
		WithOutput(out).
		WithRunConfig(&RunConfig{
			CaseTimeout:  time.Minute,
			PollInterval: time.Millisecond,
		})

	return &simPipeline{pipeline: p, chain: chain, cfg: cfg, out: out}
}

func TestExecute_Unit(t *testing.T) {
	cfg := th.TestConfig(t)
	cfg.DeploymentsDir = t.TempDir()
	sim := newSimPipeline(t, cfg, th.SimNetwork())

	result, err := sim.pipeline.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success(), sim.out.String())
	assert.False(t, result.Skipped)
	assert.Equal(t, 10, result.CasesPassed)
	assert.Zero(t, result.CasesFailed)
	require.NotNil(t, result.Report)
	assert.NotEmpty(t, result.Report.Transactions)

	// funders already hold enough, so FUND sends nothing
	assert.Len(t, result.StageResults, 4)
	assert.Contains(t, sim.out.String(), "All cases passed")
}

func TestExecute_TopsUpFunders(t *testing.T) {
	cfg := th.TestConfig(t)
	sim := newSimPipeline(t, cfg, th.SimNetwork())

	w := sim.pipeline.wallet
	for _, addr := range w.Addresses()[1:] {
		sim.chain.SetBalance(addr, big.NewInt(0))
	}

	result, err := sim.pipeline.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success(), sim.out.String())

	var stages []Stage
	for _, sr := range result.StageResults {
		stages = append(stages, sr.Stage)
	}
	assert.Equal(t, []Stage{StageInit, StageFund, StageRun, StageReport}, stages)
	assert.Contains(t, sim.out.String(), "Transactions Sent: 5")
}

func TestExecute_SkipFunding(t *testing.T) {
	cfg := th.TestConfig(t)
	sim := newSimPipeline(t, cfg, th.SimNetwork())
	sim.pipeline.runCfg.SkipFunding = true

	result, err := sim.pipeline.Execute(context.Background())
	require.NoError(t, err)

	for _, sr := range result.StageResults {
		assert.NotEqual(t, StageFund, sr.Stage)
	}
}

func TestExecute_DevelopmentNetworkSkipped(t *testing.T) {
	cfg := th.TestConfig(t)
	cfg.Network = "hardhat"
	n := th.SimNetwork()
	n.Name = "hardhat"
	sim := newSimPipeline(t, cfg, n)

	result, err := sim.pipeline.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.True(t, result.Success())
	assert.Zero(t, result.CasesPassed)
	assert.Empty(t, sim.chain.Sent())
	assert.Contains(t, sim.out.String(), "hardhat is a development chain")
}

func TestExecute_StagingAfterDeploy(t *testing.T) {
	cfg := th.TestConfigStaging(t)
	cfg.DeploymentsDir = t.TempDir()
	sim := newSimPipeline(t, cfg, th.SimNetwork())
	ctx := context.Background()

	deployments, err := sim.pipeline.Deploy(ctx, deploy.TagAll)
	require.NoError(t, err)
	_, err = deployments.Get(fundme.FundMeName)
	require.NoError(t, err)

	result, err := sim.pipeline.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success(), sim.out.String())
	assert.Equal(t, 1, result.CasesPassed)
}

func TestExecute_StagingWithoutDeployment(t *testing.T) {
	cfg := th.TestConfigStaging(t)
	cfg.DeploymentsDir = t.TempDir()
	sim := newSimPipeline(t, cfg, th.SimNetwork())

	result, err := sim.pipeline.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 1, result.CasesFailed)
	assert.Contains(t, sim.out.String(), "cases failed")
}

func TestExecute_ExportsReport(t *testing.T) {
	cfg := th.TestConfig(t)
	cfg.Export = true
	cfg.OutputDir = t.TempDir()
	sim := newSimPipeline(t, cfg, th.SimNetwork())

	result, err := sim.pipeline.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Files, 2)
}

func TestExecute_ChainIDFailure(t *testing.T) {
	cfg := th.TestConfig(t)
	require.NoError(t, cfg.Validate())

	mock := th.NewMockClient()
	mock.ChainIDError = errTestError

	p := NewWithBackend(cfg, mock, th.SimNetwork(), th.DevWallet(t, 6)).WithOutput(&bytes.Buffer{})
	result, err := p.Execute(context.Background())
	require.ErrorIs(t, err, errTestError)
	require.Len(t, result.StageResults, 1)
	assert.False(t, result.StageResults[0].Success)
	assert.False(t, result.Success())
}

func TestPipeline_Confirmations(t *testing.T) {
	tests := []struct {
		name       string
		configured uint64
		expected   uint64
	}{
		{"defaults to one block", 0, 1},
		{"explicit depth", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := th.TestConfig(t)
			cfg.Confirmations = tt.configured
			require.NoError(t, cfg.Validate())

			n := th.SimNetwork()
			n.BlockConfirmations = 6

			p := NewWithBackend(cfg, th.NewMockClient(), n, th.DevWallet(t, 6))
			assert.Equal(t, tt.expected, p.confirmations())
		})
	}
}
