package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/0xmhha/fundme-harness/internal/accounting"
	"github.com/0xmhha/fundme-harness/internal/artifact"
	"github.com/0xmhha/fundme-harness/internal/client"
	"github.com/0xmhha/fundme-harness/internal/collector"
	"github.com/0xmhha/fundme-harness/internal/config"
	"github.com/0xmhha/fundme-harness/internal/contract"
	"github.com/0xmhha/fundme-harness/internal/deploy"
	"github.com/0xmhha/fundme-harness/internal/distributor"
	"github.com/0xmhha/fundme-harness/internal/fundmesuite"
	"github.com/0xmhha/fundme-harness/internal/harness"
	"github.com/0xmhha/fundme-harness/internal/metrics"
	"github.com/0xmhha/fundme-harness/internal/network"
	"github.com/0xmhha/fundme-harness/internal/report"
	"github.com/0xmhha/fundme-harness/internal/util/mathutil"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// Backend is the chain access every stage shares
type Backend interface {
	contract.Backend
	accounting.BalanceReader
	collector.Client
}

// Pipeline orchestrates a suite run
type Pipeline struct {
	cfg       *config.Config
	runCfg    *RunConfig
	backend   Backend
	closer    func()
	wallet    *wallet.Wallet
	network   *network.Network
	artifacts artifact.Source
	out       io.Writer
	chainID   *big.Int

	// Components
	collector   *collector.Collector
	deployer    *deploy.Deployer
	distributor *distributor.Distributor
	metrics     *metrics.Metrics
	env         *fundmesuite.Env
	suite       *harness.Suite

	// State
	suiteReport *harness.Report
}

// New creates a pipeline connected over RPC to the configured network
func New(cfg *config.Config) (*Pipeline, error) {
	registry, err := network.LoadRegistry(cfg.NetworksFile)
	if err != nil {
		return nil, err
	}
	n, err := registry.Get(cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.URL != "" {
		n.URL = cfg.URL
	}
	if n.URL == "" {
		return nil, fmt.Errorf("no RPC url for network %s", n.Name)
	}

	cli, err := client.New(n.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	if cfg.RateLimit > 0 {
		cli.WithRateLimit(cfg.RateLimit)
	}

	w, err := newWallet(cfg)
	if err != nil {
		cli.Close()
		return nil, err
	}

	p := NewWithBackend(cfg, cli, n, w)
	p.closer = cli.Close
	return p, nil
}

func newWallet(cfg *config.Config) (*wallet.Wallet, error) {
	var (
		w   *wallet.Wallet
		err error
	)
	if cfg.Mnemonic != "" {
		count, convErr := mathutil.Uint64ToInt(cfg.Accounts)
		if convErr != nil {
			return nil, fmt.Errorf("invalid account count: %w", convErr)
		}
		w, err = wallet.NewFromMnemonic(cfg.Mnemonic, count)
	} else {
		w, err = wallet.NewFromPrivateKeys(cfg.PrivateKeys)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// NewWithBackend creates a pipeline over an existing backend
func NewWithBackend(cfg *config.Config, backend Backend, n *network.Network, w *wallet.Wallet) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		runCfg:    DefaultRunConfig(),
		backend:   backend,
		wallet:    w,
		network:   n,
		artifacts: artifact.Dir(cfg.ArtifactsDir),
		out:       os.Stdout,
	}
}

// WithRunConfig sets the run configuration
func (p *Pipeline) WithRunConfig(runCfg *RunConfig) *Pipeline {
	p.runCfg = runCfg
	return p
}

// WithArtifacts replaces the artifact source
func (p *Pipeline) WithArtifacts(src artifact.Source) *Pipeline {
	p.artifacts = src
	return p
}

// WithOutput redirects console output
func (p *Pipeline) WithOutput(w io.Writer) *Pipeline {
	p.out = w
	return p
}

// Execute runs the configured suite through every stage
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	result := NewResult()

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(p.out, "║                       fundme-harness                         ║")
	fmt.Fprintln(p.out, "║              FundMe contract integration suite               ║")
	fmt.Fprintln(p.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(p.out)

	if err := p.runStage(ctx, result, StageInit, p.initialize); err != nil {
		return result, err
	}
	defer p.stopMetrics()

	if !p.runCfg.SkipFunding && p.needsFunding() {
		if err := p.runStage(ctx, result, StageFund, p.fund); err != nil {
			return result, err
		}
	}

	if err := p.runStage(ctx, result, StageRun, p.run); err != nil {
		return result, err
	}

	if err := p.runStage(ctx, result, StageReport, func(ctx context.Context) error {
		return p.report(ctx, result)
	}); err != nil {
		return result, err
	}

	result.Finalize()
	p.printFinalSummary(result)

	return result, nil
}

// runStage executes a pipeline stage with timing and error handling
func (p *Pipeline) runStage(ctx context.Context, result *Result, stage Stage, fn func(context.Context) error) error {
	fmt.Fprintf(p.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(p.out, "  Stage %d: %s\n", stage+1, stage.String())
	fmt.Fprintf(p.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	sr := &StageResult{
		Stage:    stage,
		Success:  err == nil,
		Duration: duration,
	}

	if err != nil {
		sr.Error = err
		sr.Message = fmt.Sprintf("Failed: %v", err)
		fmt.Fprintf(p.out, "\n[FAIL] Stage %s failed: %v\n", stage.String(), err)
	} else {
		sr.Message = fmt.Sprintf("Completed in %s", duration)
		fmt.Fprintf(p.out, "\n[OK] Stage %s completed in %s\n", stage.String(), duration.Round(time.Millisecond))
	}

	if p.metrics != nil {
		p.metrics.RecordStageDuration(stage.String(), duration)
	}

	result.AddStageResult(sr)
	return err
}

// Stage 1: Initialize
func (p *Pipeline) initialize(ctx context.Context) error {
	if err := p.connect(ctx); err != nil {
		return err
	}

	fmt.Fprintf(p.out, "\nConfiguration:\n")
	fmt.Fprintf(p.out, "  Network:        %s (%s)\n", p.network.Name, p.network.Class())
	fmt.Fprintf(p.out, "  Chain ID:       %d\n", p.chainID.Uint64())
	fmt.Fprintf(p.out, "  Variant:        %s\n", p.cfg.GetVariant())
	fmt.Fprintf(p.out, "  Deployer:       %s\n", p.wallet.Deployer().Address.Hex())
	fmt.Fprintf(p.out, "  Funders:        %d\n", p.cfg.Funders)
	fmt.Fprintf(p.out, "  Send Value:     %s ETH\n", p.cfg.SendValue)
	fmt.Fprintf(p.out, "  Confirmations:  %d\n", p.confirmations())

	balance, err := p.backend.BalanceAt(ctx, p.wallet.Deployer().Address, nil)
	if err != nil {
		return fmt.Errorf("failed to get deployer balance: %w", err)
	}
	fmt.Fprintf(p.out, "\nDeployer Balance: %s ETH\n", report.FormatEther(balance))

	if err := p.initializeComponents(ctx); err != nil {
		return err
	}

	if p.suite.Skipped() {
		fmt.Fprintf(p.out, "\n[SKIP] %s: %s\n", p.suite.Name, p.suite.Gate.Reason)
	} else {
		fmt.Fprintf(p.out, "\nRegistered %d cases\n", len(p.suite.Cases()))
	}
	return nil
}

// connect resolves the chain ID once and checks it against the network
func (p *Pipeline) connect(ctx context.Context) error {
	if p.chainID != nil {
		return nil
	}
	chainID, err := p.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	p.chainID = chainID

	if p.network.ChainID != 0 && p.network.ChainID != chainID.Uint64() {
		fmt.Fprintf(p.out, "[WARN] %s expects chain %d, node reports %d\n", p.network.Name, p.network.ChainID, chainID.Uint64())
	}
	return nil
}

// confirmations is the depth suite transactions wait for. Deploys pass
// cfg.Confirmations through, so 0 gives them the network's depth.
func (p *Pipeline) confirmations() uint64 {
	if p.cfg.Confirmations > 0 {
		return p.cfg.Confirmations
	}
	return 1
}

// initializeComponents wires the collector, deployer, metrics and suite
func (p *Pipeline) initializeComponents(ctx context.Context) error {
	p.collector = collector.New(p.backend, &collector.Config{
		PollInterval:   p.runCfg.PollInterval,
		ConfirmTimeout: p.cfg.Timeout,
	})

	p.deployer = deploy.New(p.backend, p.collector, p.wallet.Deployer(), p.artifacts, &deploy.Config{
		Network:       p.network,
		Confirmations: p.cfg.Confirmations,
		Out:           p.out,
		Verbose:       p.cfg.Verbose,
	})

	if p.cfg.MetricsEnabled {
		p.metrics = metrics.NewMetrics("fundme")
		if err := p.metrics.Start(ctx, p.cfg.MetricsPort); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		p.collector.OnSettled(p.metrics.ObserveTx)
		fmt.Fprintf(p.out, "Metrics: http://localhost:%d/metrics\n", p.cfg.MetricsPort)
	}

	funders, err := mathutil.Uint64ToInt(p.cfg.Funders)
	if err != nil {
		return fmt.Errorf("invalid funder count: %w", err)
	}

	p.env = &fundmesuite.Env{
		Backend:        p.backend,
		Wallet:         p.wallet,
		Network:        p.network,
		Deployer:       p.deployer,
		Waiter:         p.collector,
		SendValue:      p.cfg.SendValueWei(),
		Funders:        funders,
		Confirmations:  p.confirmations(),
		DeploymentsDir: p.cfg.DeploymentsDir,
	}
	if err := p.env.Validate(); err != nil {
		return fmt.Errorf("invalid suite environment: %w", err)
	}

	switch p.cfg.GetVariant() {
	case config.VariantStaging:
		p.suite = fundmesuite.Staging(p.env)
	default:
		p.suite = fundmesuite.Unit(p.env)
	}
	return nil
}

func (p *Pipeline) needsFunding() bool {
	return p.cfg.GetVariant() == config.VariantUnit && !p.suite.Skipped() && p.cfg.Funders > 0
}

// Stage 2: top up the extra funder accounts
func (p *Pipeline) fund(ctx context.Context) error {
	if p.wallet.Len() <= p.env.Funders {
		return fmt.Errorf("wallet has %d accounts, need %d funders plus the deployer", p.wallet.Len(), p.env.Funders)
	}
	funders := p.wallet.Addresses()[1 : p.env.Funders+1]

	p.distributor = distributor.New(p.backend, &distributor.Config{
		SendValue:     p.cfg.SendValueWei(),
		FundCalls:     2, // multi-funder withdraw and cheaperWithdraw
		GasPerFund:    150000,
		BufferPercent: 20,
		Concurrency:   8,
		PollInterval:  p.runCfg.PollInterval,
		Out:           p.out,
		ShowProgress:  p.runCfg.ShowProgress,
	})

	result, err := p.distributor.Distribute(ctx, p.wallet.Deployer(), funders)
	if err != nil {
		return fmt.Errorf("distribution failed: %w", err)
	}

	if len(result.Txs) > 0 {
		if err := p.distributor.WaitForFunding(ctx, result.ReadyAccounts, p.cfg.Timeout); err != nil {
			return fmt.Errorf("failed waiting for funding: %w", err)
		}
	}

	fmt.Fprintf(p.out, "\nDistribution Summary:\n")
	fmt.Fprintf(p.out, "  Ready Accounts:    %d\n", len(result.ReadyAccounts))
	fmt.Fprintf(p.out, "  Unfunded Accounts: %d\n", len(result.UnfundedAccounts))
	fmt.Fprintf(p.out, "  Total Distributed: %s ETH\n", report.FormatEther(result.TotalDistributed))
	fmt.Fprintf(p.out, "  Transactions Sent: %d\n", len(result.Txs))

	if len(result.UnfundedAccounts) > 0 {
		return fmt.Errorf("%w: %d funders left unfunded", distributor.ErrInsufficientFunds, len(result.UnfundedAccounts))
	}
	return nil
}

// Stage 3: run the suite
func (p *Pipeline) run(ctx context.Context) error {
	runner := harness.NewRunner(&harness.RunnerConfig{
		Out:          p.out,
		ShowProgress: p.runCfg.ShowProgress,
		Verbose:      p.cfg.Verbose,
		CaseTimeout:  p.runCfg.CaseTimeout,
		OnCaseStart:  p.collector.SetCase,
		OnCaseEnd: func(res *harness.Result) {
			if p.metrics == nil {
				return
			}
			p.metrics.ObserveCase(res)
			if _, ok := contract.AsRevert(res.Err); ok && res.Status == harness.StatusFailed {
				p.metrics.RecordUnexpectedRevert()
			}
		},
	})

	fmt.Fprintf(p.out, "%s\n", p.suite.Name)
	p.suiteReport = runner.Run(ctx, p.suite)
	p.collector.SetCase("")
	return nil
}

// Stage 4: print and export the report
func (p *Pipeline) report(_ context.Context, result *Result) error {
	rep := report.New(p.network.Name, p.chainID.Uint64(), string(p.cfg.GetVariant()), p.suiteReport, p.collector)
	rep.Print(p.out)

	result.Report = rep
	result.Skipped = p.suiteReport.Skipped
	result.CasesPassed = p.suiteReport.Passed()
	result.CasesFailed = p.suiteReport.Failed()

	if p.cfg.Export && p.cfg.OutputDir != "" {
		files, err := report.NewExporter(p.cfg.OutputDir).ExportAll(rep)
		if err != nil {
			fmt.Fprintf(p.out, "[WARN] Failed to export report: %v\n", err)
		} else {
			result.Files = files
			fmt.Fprintf(p.out, "\nReports exported to:\n")
			for _, f := range files {
				fmt.Fprintf(p.out, "  - %s\n", f)
			}
		}
	}

	return nil
}

// Deploy runs the tagged deploy scripts once and records the deployments
// so a later staging run can bind to them
func (p *Pipeline) Deploy(ctx context.Context, tags ...string) (deploy.Deployments, error) {
	if err := p.connect(ctx); err != nil {
		return nil, err
	}

	waiter := collector.New(p.backend, &collector.Config{
		PollInterval:   p.runCfg.PollInterval,
		ConfirmTimeout: p.cfg.Timeout,
	})
	deployer := deploy.New(p.backend, waiter, p.wallet.Deployer(), p.artifacts, &deploy.Config{
		Network:        p.network,
		Confirmations:  p.cfg.Confirmations,
		DeploymentsDir: p.cfg.DeploymentsDir,
		Out:            p.out,
		Verbose:        true,
	})

	deployments, err := deployer.Fixture(ctx, tags...)
	if err != nil {
		return nil, err
	}
	for _, name := range deployments.Names() {
		fmt.Fprintf(p.out, "[OK] %s: %s\n", name, deployments[name].Address.Hex())
	}
	return deployments, nil
}

// printFinalSummary prints the final execution summary
func (p *Pipeline) printFinalSummary(result *Result) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(p.out, "║                      Execution Summary                       ║")
	fmt.Fprintln(p.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(p.out)

	fmt.Fprintf(p.out, "Stage Results:\n")
	for _, sr := range result.StageResults {
		status := "[OK]"
		if !sr.Success {
			status = "[FAIL]"
		}
		fmt.Fprintf(p.out, "  %s Stage %d (%s): %s\n", status, sr.Stage+1, sr.Stage.String(), sr.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(p.out, "\nTotal Duration: %s\n", result.Duration.Round(time.Millisecond))

	switch {
	case result.Skipped:
		fmt.Fprintln(p.out, "\nSuite skipped on this network")
	case result.Success():
		fmt.Fprintln(p.out, "\nAll cases passed")
	default:
		fmt.Fprintf(p.out, "\n[WARN] %d of %d cases failed\n", result.CasesFailed, result.CasesPassed+result.CasesFailed)
		for _, err := range result.Errors {
			fmt.Fprintf(p.out, "  - %v\n", err)
		}
	}
}

func (p *Pipeline) stopMetrics() {
	if p.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.metrics.Stop(ctx); err != nil {
		fmt.Fprintf(p.out, "[WARN] Failed to stop metrics server: %v\n", err)
	}
}

// Close cleans up pipeline resources
func (p *Pipeline) Close() {
	if p.closer != nil {
		p.closer()
	}
}
