package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/0xmhha/fundme-harness/internal/config"
	"github.com/0xmhha/fundme-harness/internal/deploy"
	"github.com/0xmhha/fundme-harness/internal/network"
	"github.com/0xmhha/fundme-harness/internal/pipeline"
)

var (
	version = "dev"
	cfg     = &config.Config{}
	runCfg  = pipeline.DefaultRunConfig()
	tags    []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "fundme-harness",
		Short:   "FundMe contract integration test harness",
		Long:    `fundme-harness deploys the FundMe contract and runs its unit and staging suites against an EVM network.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindEnv(cmd)
		},
		RunE: runTest,
	}

	registerFlags(rootCmd)

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Run the FundMe suite for the selected variant",
		RunE:  runTest,
	}
	registerRunFlags(testCmd.Flags())

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy FundMe and record it for staging runs",
		RunE:  runDeploy,
	}
	deployCmd.Flags().StringSliceVar(&tags, "tags", []string{deploy.TagAll}, "Deploy script tags to run")

	networksCmd := &cobra.Command{
		Use:   "networks",
		Short: "List known networks",
		RunE:  runNetworks,
	}

	registerRunFlags(rootCmd.Flags())
	rootCmd.AddCommand(testCmd, deployCmd, networksCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	// Network selection
	flags.StringVar(&cfg.Network, "network", "sepolia", "Target network name")
	flags.StringVar(&cfg.NetworksFile, "networks-file", "", "Networks file (yaml, json or toml) extending the built-in table")
	flags.StringVar(&cfg.URL, "url", "", "RPC endpoint URL (overrides the network's)")

	// Accounts
	flags.StringVar(&cfg.Mnemonic, "mnemonic", "", "BIP39 mnemonic for the deployer and funders")
	flags.StringSliceVar(&cfg.PrivateKeys, "private-key", nil, "Private keys (hex); the first one deploys")
	flags.Uint64Var(&cfg.Accounts, "accounts", 0, "Accounts to derive from the mnemonic (default: funders + 1)")

	// Suite configuration
	flags.StringVar(&cfg.Variant, "variant", "UNIT", "Suite variant: UNIT or STAGING")
	flags.StringVar(&cfg.ArtifactsDir, "artifacts", "./artifacts", "Compiled contract artifacts directory")
	flags.StringVar(&cfg.DeploymentsDir, "deployments", "./deployments", "Deployment records directory")
	flags.StringVar(&cfg.SendValue, "send-value", "1", "ETH sent per fund() call")
	flags.Uint64Var(&cfg.Funders, "funders", 5, "Extra funder accounts for the multi-funder cases")
	flags.Uint64Var(&cfg.Confirmations, "confirmations", 0, "Block confirmations for suite transactions (default: 1; deploys use the network's)")

	// Output
	flags.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")

	// Advanced
	flags.DurationVar(&cfg.Timeout, "timeout", 0, "Timeout per transaction confirmation (default: 5m)")
	flags.Float64Var(&cfg.RateLimit, "rate-limit", 0, "Max RPC requests per second (0 = unlimited)")
}

func registerRunFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&runCfg.SkipFunding, "skip-funding", false, "Skip topping up funder accounts")
	flags.BoolVar(&runCfg.ShowProgress, "progress", false, "Show a progress bar instead of per-case lines")
	flags.DurationVar(&runCfg.CaseTimeout, "case-timeout", runCfg.CaseTimeout, "Timeout per case including its hooks")
	flags.DurationVar(&runCfg.PollInterval, "poll-interval", runCfg.PollInterval, "Receipt and balance poll interval")
	flags.BoolVar(&cfg.Export, "export", false, "Export the report as JSON and CSV")
	flags.StringVar(&cfg.OutputDir, "output-dir", "./reports", "Output directory for reports")

	// Prometheus metrics flags
	flags.BoolVar(&cfg.MetricsEnabled, "metrics", false, "Enable Prometheus metrics endpoint")
	flags.IntVar(&cfg.MetricsPort, "metrics-port", 9090, "Port for Prometheus metrics endpoint")
}

// bindEnv fills flags left unset from FUNDME_* environment variables,
// e.g. FUNDME_MNEMONIC or FUNDME_PRIVATE_KEY
func bindEnv(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("FUNDME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("invalid FUNDME_%s: %w", strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
		}
	})
	return errors.Join(errs...)
}

// signalContext cancels on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func runTest(_ *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()

	p.WithRunConfig(runCfg)

	result, err := p.Execute(ctx)
	if err != nil {
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	if !result.Success() {
		return fmt.Errorf("%d cases failed", result.CasesFailed)
	}

	return nil
}

func runDeploy(_ *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()

	if _, err := p.Deploy(ctx, tags...); err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	return nil
}

func runNetworks(_ *cobra.Command, _ []string) error {
	registry, err := network.LoadRegistry(cfg.NetworksFile)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Chain ID", "Class", "Price Feed", "Confirmations", "URL"})
	table.SetBorder(false)

	for _, name := range registry.Names() {
		n, err := registry.Get(name)
		if err != nil {
			return err
		}
		feed := "-"
		if n.HasPriceFeed() {
			feed = n.PriceFeed.Hex()
		}
		url := n.URL
		if url == "" {
			url = "-"
		}
		table.Append([]string{
			n.Name,
			fmt.Sprintf("%d", n.ChainID),
			n.Class().String(),
			feed,
			fmt.Sprintf("%d", n.BlockConfirmations),
			url,
		})
	}

	table.Render()
	return nil
}
